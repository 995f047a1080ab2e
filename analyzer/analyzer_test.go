package analyzer

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeClassifiesTurns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		message    string
		needsPlan  bool
		indicators []Indicator
	}{
		{name: "empty", message: "", needsPlan: false},
		{name: "whitespace", message: "   \n\t", needsPlan: false},
		{name: "single read", message: "读取 config.yaml 文件", needsPlan: false},
		{name: "single english request", message: "show me the README", needsPlan: false},
		{
			name:       "chinese ordinal steps",
			message:    "第一步读取数据，第二步分析趋势，最后生成报告",
			needsPlan:  true,
			indicators: []Indicator{IndicatorMultiStep},
		},
		{
			name:       "english sequence",
			message:    "First fetch the logs, then summarize the errors.",
			needsPlan:  true,
			indicators: []Indicator{IndicatorMultiStep},
		},
		{
			name:       "numbered list",
			message:    "Please do this:\n1. list files\n2. delete temp files",
			needsPlan:  true,
			indicators: []Indicator{IndicatorMultiStep},
		},
		{
			name:       "chinese conditional",
			message:    "如果文件存在就删除它",
			needsPlan:  true,
			indicators: []Indicator{IndicatorConditional},
		},
		{
			name:       "english conditional",
			message:    "Deploy the build unless the tests fail",
			needsPlan:  true,
			indicators: []Indicator{IndicatorConditional},
		},
		{
			name:       "last as an adjective",
			message:    "读取文件的最后一行",
			needsPlan:  false,
			indicators: []Indicator{IndicatorWeakConnective},
		},
		{
			name:       "in case clause",
			message:    "Print the file, in case it is short",
			needsPlan:  false,
			indicators: []Indicator{IndicatorWeakConnective},
		},
		{
			name:       "leading finally",
			message:    "finally, what time is it?",
			needsPlan:  false,
			indicators: []Indicator{IndicatorWeakConnective},
		},
		{
			name:      "wan yi alone",
			message:   "万一下雨怎么办",
			needsPlan: false,
		},
		{
			name:      "otherwise alone",
			message:   "Show the status, otherwise nothing",
			needsPlan: false,
		},
		{
			name:       "weak connective after a sequence",
			message:    "读取数据，然后分析，最后生成报告",
			needsPlan:  true,
			indicators: []Indicator{IndicatorMultiStep, IndicatorWeakConnective},
		},
		{
			name:       "finally after first",
			message:    "First back up the database, finally restart the service",
			needsPlan:  true,
			indicators: []Indicator{IndicatorMultiStep},
		},
	}

	a := New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			analysis := a.Analyze(tc.message)
			assert.Equal(t, tc.needsPlan, analysis.NeedsPlan)
			if tc.needsPlan {
				assert.Equal(t, ComplexityComplex, analysis.Complexity)
			} else {
				assert.Equal(t, ComplexitySimple, analysis.Complexity)
			}
			for _, indicator := range tc.indicators {
				assert.True(t, analysis.Has(indicator), "missing indicator %s in %v", indicator, analysis.Indicators)
			}
			if !tc.needsPlan {
				assert.False(t, analysis.Has(IndicatorMultiStep))
				assert.False(t, analysis.Has(IndicatorConditional))
			}
			assert.GreaterOrEqual(t, analysis.Confidence, 0.0)
			assert.LessOrEqual(t, analysis.Confidence, 1.0)
		})
	}
}

func TestAnalyzeEmptyHasZeroConfidence(t *testing.T) {
	t.Parallel()

	analysis := New().Analyze("")
	assert.Equal(t, TaskAnalysis{Complexity: ComplexitySimple}, analysis)
}

func TestAnalyzeLengthTiers(t *testing.T) {
	t.Parallel()

	a := New()

	medium := a.Analyze(strings.Repeat("a", 250))
	assert.False(t, medium.NeedsPlan)
	assert.True(t, medium.Has(IndicatorLength))
	assert.InDelta(t, 0.25, medium.Confidence, 1e-9)

	long := a.Analyze(strings.Repeat("a", 600))
	assert.True(t, long.NeedsPlan)
	assert.InDelta(t, 0.55, long.Confidence, 1e-9)
}

func TestAnalyzeConfidenceIsClamped(t *testing.T) {
	t.Parallel()

	msg := "第一步准备，如果失败就重试，然后继续。" + strings.Repeat("内容", 300)
	analysis := New().Analyze(msg)
	assert.True(t, analysis.NeedsPlan)
	assert.Equal(t, 1.0, analysis.Confidence)
}

func TestAnalyzeCustomRules(t *testing.T) {
	t.Parallel()

	a := New(
		WithRules([]Rule{{Pattern: regexp.MustCompile(`deploy`), Category: IndicatorMultiStep, Weight: 0.2}}),
		WithLengthRules(nil),
		WithDecisionThreshold(0.9),
	)

	analysis := a.Analyze("deploy now")
	assert.True(t, analysis.NeedsPlan, "structural markers always require a plan")
	assert.InDelta(t, 0.2, analysis.Confidence, 1e-9)

	analysis = a.Analyze(strings.Repeat("x", 1000))
	assert.False(t, analysis.NeedsPlan)
	assert.Empty(t, analysis.Indicators)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	t.Parallel()

	a := New()
	msg := "First check the disk, then clean the cache if it is full"
	assert.Equal(t, a.Analyze(msg), a.Analyze(msg))
}
