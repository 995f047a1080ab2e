package analyzer

import "slices"

const defaultClaimThreshold = 0.5

// ClaimDetector flags answers that claim finished work.
type ClaimDetector struct {
	rules     []Rule
	threshold float64
}

// NewClaimDetector builds a detector; nil rules selects DefaultClaimRules.
func NewClaimDetector(rules []Rule) *ClaimDetector {
	if rules == nil {
		rules = DefaultClaimRules()
	}
	return &ClaimDetector{rules: slices.Clone(rules), threshold: defaultClaimThreshold}
}

// Detect reports whether text claims completion and which claim categories matched.
func (d *ClaimDetector) Detect(text string) (bool, []Indicator) {
	best := 0.0
	var matched []Indicator
	for _, rule := range d.rules {
		if rule.Pattern == nil || !rule.Pattern.MatchString(text) {
			continue
		}
		if rule.Weight > best {
			best = rule.Weight
		}
		if !slices.Contains(matched, rule.Category) {
			matched = append(matched, rule.Category)
		}
	}
	return best >= d.threshold, matched
}
