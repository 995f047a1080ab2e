package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSkillCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		message   string
		name      string
		remainder string
	}{
		{message: "/pptx create test.pptx", name: "pptx", remainder: "create test.pptx"},
		{message: "/PPTX   create  test.pptx  ", name: "pptx", remainder: "create  test.pptx"},
		{message: "/pdf", name: "pdf", remainder: ""},
		{message: "/web-search\tgolang generics", name: "web-search", remainder: "golang generics"},
		{message: "please run /pptx", name: "", remainder: "please run /pptx"},
		{message: " /pptx create", name: "", remainder: " /pptx create"},
		{message: "/", name: "", remainder: "/"},
		{message: "/ pptx", name: "", remainder: "/ pptx"},
		{message: "/usr/bin/env", name: "", remainder: "/usr/bin/env"},
		{message: "", name: "", remainder: ""},
	}

	for _, tc := range tests {
		t.Run(tc.message, func(t *testing.T) {
			t.Parallel()

			name, remainder := ParseSkillCommand(tc.message)
			assert.Equal(t, tc.name, name)
			assert.Equal(t, tc.remainder, remainder)
		})
	}
}
