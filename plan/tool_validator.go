package plan

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

const (
	ReasonForbidden      = "forbidden"
	ReasonNotInAllowList = "not in allow-list"
)

type toolMatcher struct {
	raw     string
	pattern glob.Glob
}

func (m toolMatcher) match(name string) bool {
	if m.pattern != nil {
		return m.pattern.Match(name)
	}
	return m.raw == name
}

// ToolValidator answers whether a tool may run under one plan's constraints.
type ToolValidator struct {
	allowed   []toolMatcher
	forbidden []toolMatcher
}

func NewToolValidator(constraints ToolConstraints) (*ToolValidator, error) {
	allowed, err := compileMatchers("allowed", constraints.Allowed)
	if err != nil {
		return nil, err
	}
	forbidden, err := compileMatchers("forbidden", constraints.Forbidden)
	if err != nil {
		return nil, err
	}
	return &ToolValidator{allowed: allowed, forbidden: forbidden}, nil
}

func compileMatchers(field string, entries []string) ([]toolMatcher, error) {
	matchers := make([]toolMatcher, 0, len(entries))
	for i, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, fmt.Errorf("%w: field=constraints.%s[%d] reason=empty", ErrPlanInvalid, field, i)
		}
		matcher := toolMatcher{raw: entry}
		if strings.ContainsAny(entry, "*?[{") {
			pattern, err := glob.Compile(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: field=constraints.%s[%d] reason=bad_pattern pattern=%q: %w", ErrPlanInvalid, field, i, entry, err)
			}
			matcher.pattern = pattern
		}
		matchers = append(matchers, matcher)
	}
	return matchers, nil
}

func (v *ToolValidator) forbids(name string) bool {
	for _, m := range v.forbidden {
		if m.match(name) {
			return true
		}
	}
	return false
}

// IsToolAllowed reports whether name may be invoked and, if not, why.
func (v *ToolValidator) IsToolAllowed(name string) (bool, string) {
	if v.forbids(name) {
		return false, ReasonForbidden
	}
	if len(v.allowed) == 0 {
		return true, ""
	}
	for _, m := range v.allowed {
		if m.match(name) {
			return true, ""
		}
	}
	return false, ReasonNotInAllowList
}
