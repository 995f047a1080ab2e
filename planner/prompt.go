package planner

import (
	"fmt"
	"strings"

	"github.com/Gurpartap/taskloop/agent"
)

const planSchema = "```yaml\n" +
	"goal: <one sentence>\n" +
	"forbidden_tools: [<tool>, ...]\n" +
	"milestones:\n" +
	"  - id: <short id>\n" +
	"    description: <text>\n" +
	"    criteria:\n" +
	"      required_tools: [<tool>, ...]\n" +
	"      min_successful_steps: <int>\n" +
	"      output_contains: [<text>, ...]\n" +
	"steps:\n" +
	"  - description: <text>\n" +
	"    tool: <tool name or empty>\n" +
	"    milestone: <milestone id this step completes, optional>\n" +
	"```"

const planInstruction = "You break a user request into an executable plan. " +
	"Reply with a single fenced block in this shape and nothing else:\n" + planSchema

const replanInstruction = "The current plan is failing. Write new steps that reach the same goal " +
	"from where execution stands. Reply with a single fenced block in this shape; " +
	"goal and forbidden_tools are ignored:\n" + planSchema

func renderPlanPrompt(request Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request:\n%s\n", strings.TrimSpace(request.Message))
	if len(request.Analysis.Indicators) > 0 {
		names := make([]string, len(request.Analysis.Indicators))
		for i, indicator := range request.Analysis.Indicators {
			names[i] = string(indicator)
		}
		fmt.Fprintf(&b, "\nDetected structure: %s\n", strings.Join(names, ", "))
	}
	if request.Skill != nil {
		fmt.Fprintf(&b, "\nSkill: %s\n%s\n", request.Skill.Name, request.Skill.Description)
		if len(request.Skill.AllowedTools) > 0 {
			fmt.Fprintf(&b, "Only these tools may be used: %s\n", strings.Join(request.Skill.AllowedTools, ", "))
		}
	}
	writeTools(&b, request.Tools)
	return b.String()
}

func renderReplanPrompt(request ReplanRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current plan:\n%s\n", request.Plan.Render())
	fmt.Fprintf(&b, "\nReason for replanning: %s\n", request.Reason)
	if request.Detail != "" {
		fmt.Fprintf(&b, "Detail: %s\n", request.Detail)
	}
	if len(request.Completed) > 0 {
		b.WriteString("\nSteps already completed:\n")
		for i, outcome := range request.Completed {
			fmt.Fprintf(&b, "%d. %s\n", i+1, outcome.Tool)
		}
	}
	writeTools(&b, request.Tools)
	return b.String()
}

func writeTools(b *strings.Builder, tools []agent.ToolDefinition) {
	if len(tools) == 0 {
		return
	}
	b.WriteString("\nAvailable tools:\n")
	for _, tool := range tools {
		fmt.Fprintf(b, "- %s: %s\n", tool.Name, tool.Description)
	}
}
