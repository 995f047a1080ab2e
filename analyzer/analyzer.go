// Package analyzer classifies incoming user turns and model answers with
// ordered, replaceable rule sets.
package analyzer

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"
)

// Complexity is the coarse classification of a user turn.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

const defaultDecisionThreshold = 0.5

// TaskAnalysis is the immutable classification of one user turn.
type TaskAnalysis struct {
	Complexity Complexity
	NeedsPlan  bool
	Confidence float64
	Indicators []Indicator
}

// Has reports whether the analysis contains the indicator.
func (a TaskAnalysis) Has(indicator Indicator) bool {
	return slices.Contains(a.Indicators, indicator)
}

// Analyzer decides whether a user turn warrants a structured plan.
type Analyzer struct {
	rules             []Rule
	lengthRules       []LengthRule
	decisionThreshold float64
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithRules replaces the structural rule set.
func WithRules(rules []Rule) Option {
	return func(a *Analyzer) {
		a.rules = slices.Clone(rules)
	}
}

// WithLengthRules replaces the length tiers.
func WithLengthRules(rules []LengthRule) Option {
	return func(a *Analyzer) {
		a.lengthRules = slices.Clone(rules)
	}
}

// WithDecisionThreshold sets the confidence at which length alone forces a plan.
func WithDecisionThreshold(threshold float64) Option {
	return func(a *Analyzer) {
		a.decisionThreshold = threshold
	}
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		rules:             DefaultTaskRules(),
		lengthRules:       DefaultLengthRules(),
		decisionThreshold: defaultDecisionThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze classifies message. Each category contributes its strongest matching
// rule weight once; length tiers add up under the length category.
func (a *Analyzer) Analyze(message string) TaskAnalysis {
	if strings.TrimSpace(message) == "" {
		return TaskAnalysis{Complexity: ComplexitySimple, Confidence: 0}
	}

	weights := map[Indicator]float64{}
	var order []Indicator
	note := func(category Indicator, weight float64) {
		current, seen := weights[category]
		if !seen {
			order = append(order, category)
		}
		weights[category] = math.Max(current, weight)
	}

	for _, rule := range a.rules {
		if rule.Pattern != nil && rule.Pattern.MatchString(message) {
			note(rule.Category, rule.Weight)
		}
	}

	runes := utf8.RuneCountInString(message)
	lengthWeight := 0.0
	for _, rule := range a.lengthRules {
		if runes >= rule.MinRunes {
			lengthWeight += rule.Weight
		}
	}
	if lengthWeight > 0 {
		note(IndicatorLength, lengthWeight)
	}

	confidence := 0.0
	structural := false
	for _, category := range order {
		confidence += weights[category]
		if category == IndicatorMultiStep || category == IndicatorConditional {
			structural = true
		}
	}
	confidence = math.Round(math.Min(confidence, 1)*100) / 100

	needsPlan := structural || confidence >= a.decisionThreshold
	analysis := TaskAnalysis{
		Complexity: ComplexitySimple,
		NeedsPlan:  needsPlan,
		Confidence: confidence,
		Indicators: order,
	}
	if needsPlan {
		analysis.Complexity = ComplexityComplex
	}
	return analysis
}
