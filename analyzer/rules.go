package analyzer

import "regexp"

// Indicator is a trigger category reported by a rule match.
type Indicator string

const (
	IndicatorMultiStep   Indicator = "multi_step"
	IndicatorConditional Indicator = "conditional"
	IndicatorLength      Indicator = "length"
	// IndicatorWeakConnective marks words that are connectives only some of
	// the time ("最后" is also "last"). It adds confidence but never forces a
	// plan on its own.
	IndicatorWeakConnective Indicator = "weak_connective"

	IndicatorClaimFileCreated  Indicator = "claim_file_created"
	IndicatorClaimTaskComplete Indicator = "claim_task_complete"
	IndicatorClaimExecuted     Indicator = "claim_executed"
)

// Rule is one pluggable heuristic: a pattern, the category it signals and its weight.
type Rule struct {
	Pattern  *regexp.Regexp
	Category Indicator
	Weight   float64
}

// LengthRule adds Weight once a message reaches MinRunes.
type LengthRule struct {
	MinRunes int
	Weight   float64
}

// DefaultTaskRules returns the ordered multi-step and conditional markers,
// followed by the weak connectives that only add confidence.
func DefaultTaskRules() []Rule {
	return []Rule{
		{Pattern: regexp.MustCompile(`第[一二三四五六七八九十0-9]+步`), Category: IndicatorMultiStep, Weight: 0.6},
		{Pattern: regexp.MustCompile(`(首先|先).{0,60}(然后|再|接着|之后|最后)`), Category: IndicatorMultiStep, Weight: 0.6},
		{Pattern: regexp.MustCompile(`(然后|接着|随后|之后再)`), Category: IndicatorMultiStep, Weight: 0.4},
		{Pattern: regexp.MustCompile(`(?i)\b(first|firstly)\b.{0,120}\b(then|next|after that|finally)\b`), Category: IndicatorMultiStep, Weight: 0.6},
		{Pattern: regexp.MustCompile(`(?i)\bstep\s*[0-9]+\b`), Category: IndicatorMultiStep, Weight: 0.6},
		{Pattern: regexp.MustCompile(`(?i)\b(and then|after that|afterwards)\b`), Category: IndicatorMultiStep, Weight: 0.4},
		{Pattern: regexp.MustCompile(`(?s)(^|\n)\s*1[.)、].*\n\s*2[.)、]`), Category: IndicatorMultiStep, Weight: 0.5},
		{Pattern: regexp.MustCompile(`如果.{0,60}(就|则|那么|否则)`), Category: IndicatorConditional, Weight: 0.5},
		{Pattern: regexp.MustCompile(`(否则|要不然|假如|若是)`), Category: IndicatorConditional, Weight: 0.4},
		{Pattern: regexp.MustCompile(`(?i)\bif\b.{0,120}\b(then|otherwise|else)\b`), Category: IndicatorConditional, Weight: 0.5},
		{Pattern: regexp.MustCompile(`(?i)\bunless\b`), Category: IndicatorConditional, Weight: 0.4},
		{Pattern: regexp.MustCompile(`(?i)(最后|万一|\bfinally\b|\botherwise\b|\bin case\b)`), Category: IndicatorWeakConnective, Weight: 0.2},
	}
}

// DefaultLengthRules returns the length tiers; only both tiers together cross
// the default decision threshold.
func DefaultLengthRules() []LengthRule {
	return []LengthRule{
		{MinRunes: 200, Weight: 0.25},
		{MinRunes: 500, Weight: 0.3},
	}
}

// DefaultClaimRules returns completion-claim patterns used to spot answers that
// report work no tool has done.
func DefaultClaimRules() []Rule {
	return []Rule{
		{Pattern: regexp.MustCompile(`(已经|已)(成功)?(创建|生成|写入|保存|修改)`), Category: IndicatorClaimFileCreated, Weight: 0.6},
		{Pattern: regexp.MustCompile(`(已经|已)(成功)?(完成|执行|运行|安装)`), Category: IndicatorClaimTaskComplete, Weight: 0.6},
		{Pattern: regexp.MustCompile(`(?i)\b(i('ve| have)|has been|have been|was|were|successfully)\s+(created|generated|written|wrote|saved|modified|updated)\b`), Category: IndicatorClaimFileCreated, Weight: 0.6},
		{Pattern: regexp.MustCompile(`(?i)\b(i('ve| have)|successfully)\s+(executed|ran|run|installed|deployed|completed|finished)\b`), Category: IndicatorClaimExecuted, Weight: 0.6},
		{Pattern: regexp.MustCompile(`(?i)\b(task|file|report|work)\b.{0,40}\b(is|are|has been)\s+(now\s+)?(complete|completed|done|finished|ready)\b`), Category: IndicatorClaimTaskComplete, Weight: 0.5},
		{Pattern: regexp.MustCompile(`(?i)\bsaved (it )?(to|as|in)\b`), Category: IndicatorClaimFileCreated, Weight: 0.5},
	}
}
