package skills

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DocumentName is the file a skill directory must contain.
const DocumentName = "SKILL.md"

var frontMatterDelimiter = []byte("---")

type frontMatter struct {
	Name                   string   `yaml:"name"`
	Description            string   `yaml:"description"`
	ArgumentHint           string   `yaml:"argument-hint"`
	AllowedTools           toolList `yaml:"allowed-tools"`
	DisableModelInvocation bool     `yaml:"disable-model-invocation"`
	UserInvocable          *bool    `yaml:"user-invocable"`
	Context                string   `yaml:"context"`
	License                string   `yaml:"license"`
}

// toolList accepts both "a, b c" and a YAML sequence.
type toolList []string

func (l *toolList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		fields := strings.FieldsFunc(node.Value, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		*l = fields
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("allowed-tools: unsupported yaml kind %d", node.Kind)
	}
}

// ParseDocument reads the front matter of a SKILL.md file. The skill name
// falls back to the directory name; user-invocable defaults to true.
func ParseDocument(path string, data []byte) (Metadata, error) {
	header, err := splitFrontMatter(data)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: path=%s: %w", ErrSkillInvalid, path, err)
	}

	var fm frontMatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return Metadata{}, fmt.Errorf("%w: path=%s reason=front_matter: %w", ErrSkillInvalid, path, err)
	}

	name := fm.Name
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(filepath.Dir(path))
	}
	userInvocable := true
	if fm.UserInvocable != nil {
		userInvocable = *fm.UserInvocable
	}
	return Metadata{
		Name:                   normalizeName(name),
		Description:            strings.TrimSpace(fm.Description),
		Path:                   path,
		ArgumentHint:           fm.ArgumentHint,
		AllowedTools:           []string(fm.AllowedTools),
		DisableModelInvocation: fm.DisableModelInvocation,
		UserInvocable:          userInvocable,
		Context:                fm.Context,
		License:                fm.License,
	}, nil
}

func splitFrontMatter(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	lines := bytes.Split(data, []byte("\n"))
	if len(lines) == 0 || !bytes.Equal(bytes.TrimSpace(lines[0]), frontMatterDelimiter) {
		return nil, fmt.Errorf("reason=missing_front_matter")
	}
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), frontMatterDelimiter) {
			return bytes.Join(lines[1:i], []byte("\n")), nil
		}
	}
	return nil, fmt.Errorf("reason=unterminated_front_matter")
}
