package scanner

import (
	"log"
	"regexp"
)

// Rules are admin-editable data, so evaluation is defensive: patterns that do
// not compile are skipped, and pattern and input sizes are capped. Go's
// regexp engine is RE2, so matching itself runs in linear time regardless of
// the pattern.
const (
	maxPatternLen = 512
	maxInputLen   = 8 * 1024
)

// Match reports which rule flagged the text.
type Match struct {
	Rule    DetectionRule
	Matched string
}

// Scan evaluates each active rule against text and returns the first match
// in rule order, or nil. Pure function over its inputs.
func Scan(text string, rules []DetectionRule) *Match {
	if len(text) > maxInputLen {
		text = text[:maxInputLen]
	}

	for _, rule := range rules {
		if !rule.IsActive || rule.RegexPattern == "" {
			continue
		}
		if len(rule.RegexPattern) > maxPatternLen {
			log.Printf("scanner: rule=%q pattern too long (%d), skipped", rule.Name, len(rule.RegexPattern))
			continue
		}
		re, err := regexp.Compile(rule.RegexPattern)
		if err != nil {
			log.Printf("scanner: rule=%q invalid pattern, skipped: %v", rule.Name, err)
			continue
		}
		if loc := re.FindStringIndex(text); loc != nil {
			return &Match{Rule: rule, Matched: text[loc[0]:loc[1]]}
		}
	}
	return nil
}
