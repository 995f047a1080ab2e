package analyzer

import (
	"regexp"
	"strings"
	"unicode"
)

var skillNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ParseSkillCommand splits "/name args" into the lowered skill name and the
// trimmed argument string. Anything that is not a well-formed slash command is
// returned unchanged with an empty name.
func ParseSkillCommand(message string) (string, string) {
	if message == "" {
		return "", ""
	}
	if !strings.HasPrefix(message, "/") {
		return "", message
	}

	rest := message[1:]
	end := strings.IndexFunc(rest, unicode.IsSpace)
	token, remainder := rest, ""
	if end >= 0 {
		token, remainder = rest[:end], rest[end:]
	}

	name := strings.ToLower(token)
	if !skillNamePattern.MatchString(name) {
		return "", message
	}
	return name, strings.TrimSpace(remainder)
}
