package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimDetector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text    string
		claimed bool
	}{
		{text: "我已经创建了 report.pptx 文件", claimed: true},
		{text: "任务已完成", claimed: true},
		{text: "I have created the file report.md for you.", claimed: true},
		{text: "The report has been saved to /tmp/out.txt", claimed: true},
		{text: "I've executed the migration successfully.", claimed: true},
		{text: "Here is how you could create the file yourself.", claimed: false},
		{text: "config.yaml 的内容如下", claimed: false},
		{text: "", claimed: false},
	}

	d := NewClaimDetector(nil)
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			t.Parallel()

			claimed, categories := d.Detect(tc.text)
			assert.Equal(t, tc.claimed, claimed)
			if tc.claimed {
				assert.NotEmpty(t, categories)
			}
		})
	}
}

func TestClaimDetectorEmptyRulesNeverClaims(t *testing.T) {
	t.Parallel()

	claimed, categories := NewClaimDetector([]Rule{}).Detect("I have created everything")
	assert.False(t, claimed)
	assert.Empty(t, categories)
}
