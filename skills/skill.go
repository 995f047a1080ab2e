// Package skills describes the skill documents a turn can bind to and the
// registries that serve them.
package skills

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

var (
	ErrSkillNotFound = errors.New("skill not found")
	ErrSkillInvalid  = errors.New("skill is invalid")
)

// Invocation modes carried in Metadata.Context.
const (
	ContextInline = "inline"
	ContextFork   = "fork"
)

// Metadata is what the loop needs to know about one skill.
type Metadata struct {
	Name                   string
	Description            string
	Path                   string
	ArgumentHint           string
	AllowedTools           []string
	DisableModelInvocation bool
	UserInvocable          bool
	Context                string
	License                string
	HasScripts             bool
}

// Clone returns a copy of m that shares no slices with it.
func (m Metadata) Clone() Metadata {
	m.AllowedTools = slices.Clone(m.AllowedTools)
	return m
}

// Registry serves skill metadata. Implementations are read-many and change
// only on an explicit reload.
type Registry interface {
	ListAll() []Metadata
	Get(name string) (Metadata, error)
}

// Static is a fixed in-memory Registry.
type Static struct {
	byName map[string]Metadata
	names  []string
}

func NewStatic(skills ...Metadata) (*Static, error) {
	index, names, err := indexSkills(skills)
	if err != nil {
		return nil, err
	}
	return &Static{byName: index, names: names}, nil
}

func (s *Static) ListAll() []Metadata {
	return listSorted(s.byName, s.names)
}

func (s *Static) Get(name string) (Metadata, error) {
	return lookup(s.byName, name)
}

func indexSkills(skills []Metadata) (map[string]Metadata, []string, error) {
	index := make(map[string]Metadata, len(skills))
	names := make([]string, 0, len(skills))
	for i, skill := range skills {
		name := normalizeName(skill.Name)
		if name == "" {
			return nil, nil, fmt.Errorf("%w: index=%d field=name reason=empty", ErrSkillInvalid, i)
		}
		if _, dup := index[name]; dup {
			return nil, nil, fmt.Errorf("%w: field=name reason=duplicate name=%q", ErrSkillInvalid, name)
		}
		skill = skill.Clone()
		skill.Name = name
		if skill.Context == "" {
			skill.Context = ContextInline
		}
		index[name] = skill
		names = append(names, name)
	}
	sort.Strings(names)
	return index, names, nil
}

func listSorted(index map[string]Metadata, names []string) []Metadata {
	out := make([]Metadata, 0, len(names))
	for _, name := range names {
		out = append(out, index[name].Clone())
	}
	return out
}

func lookup(index map[string]Metadata, name string) (Metadata, error) {
	skill, ok := index[normalizeName(name)]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: name=%q", ErrSkillNotFound, name)
	}
	return skill.Clone(), nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
