package planner

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Gurpartap/taskloop/plan"
)

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\n(.*?)```")

type planDocument struct {
	Goal           string              `yaml:"goal"`
	ForbiddenTools []string            `yaml:"forbidden_tools"`
	Milestones     []milestoneDocument `yaml:"milestones"`
	Steps          []stepDocument      `yaml:"steps"`
}

type milestoneDocument struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Criteria    struct {
		RequiredTools      []string `yaml:"required_tools"`
		MinSuccessfulSteps int      `yaml:"min_successful_steps"`
		OutputContains     []string `yaml:"output_contains"`
	} `yaml:"criteria"`
}

type stepDocument struct {
	Description string `yaml:"description"`
	Tool        string `yaml:"tool"`
	Milestone   string `yaml:"milestone"`
}

// decodePlanBlock reads the first fenced block of text, or the whole text
// when there is none. JSON decodes too since it is valid YAML.
func decodePlanBlock(text string) (planDocument, error) {
	body := text
	if match := fencedBlock.FindStringSubmatch(text); match != nil {
		body = match[1]
	}
	if strings.TrimSpace(body) == "" {
		return planDocument{}, fmt.Errorf("%w: field=body reason=empty", plan.ErrPlanInvalid)
	}

	var doc planDocument
	if err := yaml.Unmarshal([]byte(body), &doc); err != nil {
		return planDocument{}, fmt.Errorf("%w: field=body reason=decode: %w", plan.ErrPlanInvalid, err)
	}
	return doc, nil
}

func (d planDocument) toPlan() plan.StructuredPlan {
	out := plan.StructuredPlan{
		Goal:        strings.TrimSpace(d.Goal),
		Constraints: plan.ToolConstraints{Forbidden: trimAll(d.ForbiddenTools)},
	}
	for _, m := range d.Milestones {
		out.Milestones = append(out.Milestones, plan.Milestone{
			ID:          strings.TrimSpace(m.ID),
			Description: strings.TrimSpace(m.Description),
			Criteria: plan.Criteria{
				RequiredTools:      trimAll(m.Criteria.RequiredTools),
				MinSuccessfulSteps: m.Criteria.MinSuccessfulSteps,
				OutputContains:     m.Criteria.OutputContains,
			},
		})
	}
	for _, s := range d.Steps {
		out.Steps = append(out.Steps, plan.Step{
			Description: strings.TrimSpace(s.Description),
			Tool:        strings.TrimSpace(s.Tool),
			Milestone:   strings.TrimSpace(s.Milestone),
		})
	}
	return out
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
