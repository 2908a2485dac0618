// Package critique runs the independent quality-axis critiques, the
// synthesis pass, and the score extraction that turns free-form reviewer
// prose into numbers the controller can compare.
package critique

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"scribe/internal/logging"
)

// NeutralScore is returned when every recognizer fails. A conservative
// middle value avoids the infinite low-score loop a zero would trigger.
const NeutralScore = 60.0

// NeutralAxisScore is the per-axis equivalent on the 0-25 scale.
const NeutralAxisScore = 15.0

// ScoreExtractionError reports that all fallback patterns were exhausted.
// Non-fatal: callers keep the neutral default and continue.
type ScoreExtractionError struct {
	Text string
}

func (e *ScoreExtractionError) Error() string {
	return fmt.Sprintf("no score pattern matched in %d bytes of feedback", len(e.Text))
}

// recognizer is one strategy in the ordered fallback chain. The first
// recognizer that matches wins; adding a new format means adding an
// entry, not touching control flow.
type recognizer struct {
	name string
	fn   func(text string) (float64, bool)
}

var (
	integratedPattern   = regexp.MustCompile(`(?i)(?:integrated score|overall score|综合评分)\s*[:：]?\s*(\d+(?:\.\d+)?)\s*/\s*100`)
	outOf100Pattern     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*100`)
	labeledPattern      = regexp.MustCompile(`(?i)(?:score|评分)\s*[:：]?\s*(\d+(?:\.\d+)?)`)
	additionPattern     = regexp.MustCompile(`\d+(?:\.\d+)?(?:\s*\+\s*\d+(?:\.\d+)?)+`)
	numberPattern       = regexp.MustCompile(`\d+(?:\.\d+)?`)
	outOf25Pattern      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*25`)
	subtotalPattern     = regexp.MustCompile(`(?i)(?:subtotal|小计)\s*[:：]?\s*(\d+(?:\.\d+)?)\s*/\s*25`)
	subCriterionPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*6\.25`)
)

// integratedRecognizers is the fallback chain for the 0-100 synthesis
// score, tried in order.
var integratedRecognizers = []recognizer{
	{"explicit integrated", func(text string) (float64, bool) {
		if m := integratedPattern.FindStringSubmatch(text); m != nil {
			return parseBounded(m[1], 100)
		}
		return 0, false
	}},
	{"out of 100", func(text string) (float64, bool) {
		if m := outOf100Pattern.FindStringSubmatch(text); m != nil {
			return parseBounded(m[1], 100)
		}
		return 0, false
	}},
	{"labeled number", func(text string) (float64, bool) {
		if m := labeledPattern.FindStringSubmatch(text); m != nil {
			return parseBounded(m[1], 100)
		}
		return 0, false
	}},
	{"arithmetic expression", func(text string) (float64, bool) {
		expr := additionPattern.FindString(text)
		if expr == "" {
			return 0, false
		}
		sum := 0.0
		for _, term := range numberPattern.FindAllString(expr, -1) {
			v, err := strconv.ParseFloat(term, 64)
			if err != nil {
				return 0, false
			}
			sum += v
		}
		if sum <= 0 || sum > 100 {
			return 0, false
		}
		return sum, true
	}},
	{"sum of axis subtotals", func(text string) (float64, bool) {
		return sumMatches(text, outOf25Pattern, 4)
	}},
	{"sum of sub-criteria", func(text string) (float64, bool) {
		return sumMatches(text, subCriterionPattern, 16)
	}},
}

// axisRecognizers is the fallback chain for one 0-25 axis critique.
var axisRecognizers = []recognizer{
	{"explicit subtotal", func(text string) (float64, bool) {
		if m := subtotalPattern.FindStringSubmatch(text); m != nil {
			return parseBounded(m[1], 25)
		}
		return 0, false
	}},
	{"out of 25", func(text string) (float64, bool) {
		if m := outOf25Pattern.FindStringSubmatch(text); m != nil {
			return parseBounded(m[1], 25)
		}
		return 0, false
	}},
	{"sum of sub-criteria", func(text string) (float64, bool) {
		if v, ok := sumMatches(text, subCriterionPattern, 4); ok && v <= 25 {
			return v, true
		}
		return 0, false
	}},
}

func parseBounded(s string, max float64) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > max {
		return 0, false
	}
	return v, true
}

func sumMatches(text string, re *regexp.Regexp, limit int) (float64, bool) {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	sum := 0.0
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		sum += v
	}
	if sum <= 0 || sum > 100 {
		return 0, false
	}
	return sum, true
}

// ExtractIntegratedScore walks the fallback chain over synthesis
// feedback. When every recognizer fails it returns NeutralScore together
// with a *ScoreExtractionError so the caller can log the anomaly and
// continue.
func ExtractIntegratedScore(text string) (float64, error) {
	for _, r := range integratedRecognizers {
		if v, ok := r.fn(text); ok {
			logging.CritiqueDebug("integrated score %.1f via recognizer %q", v, r.name)
			return v, nil
		}
	}
	logging.CritiqueWarn("all integrated score recognizers failed, using neutral default %.0f", NeutralScore)
	return NeutralScore, &ScoreExtractionError{Text: firstN(text, 200)}
}

// ExtractAxisScore walks the per-axis chain over one critique.
func ExtractAxisScore(text string) (float64, error) {
	for _, r := range axisRecognizers {
		if v, ok := r.fn(text); ok {
			return v, nil
		}
	}
	return NeutralAxisScore, &ScoreExtractionError{Text: firstN(text, 200)}
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
