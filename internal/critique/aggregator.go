package critique

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"scribe/internal/logging"
	"scribe/internal/provider"
)

// Axis is one independent quality dimension scored 0-25.
type Axis struct {
	Name   string
	Prompt string
}

// DefaultAxes are the four reviewers every round runs.
var DefaultAxes = []Axis{
	{"innovation", "Evaluate the originality and novelty of the argument. Score each of 4 sub-criteria out of 6.25 and finish with 'Subtotal: X/25'."},
	{"rigor", "Evaluate the logical rigor and internal consistency. Score each of 4 sub-criteria out of 6.25 and finish with 'Subtotal: X/25'."},
	{"evidence", "Evaluate the use of evidence and citations. Score each of 4 sub-criteria out of 6.25 and finish with 'Subtotal: X/25'."},
	{"presentation", "Evaluate structure, clarity and academic convention. Score each of 4 sub-criteria out of 6.25 and finish with 'Subtotal: X/25'."},
}

// AxisResult is one reviewer's verdict.
type AxisResult struct {
	Axis     string  `json:"axis"`
	Score    float64 `json:"score"` // 0-25
	Feedback string  `json:"feedback"`
	Neutral  bool    `json:"neutral,omitempty"` // score extraction fell back to the default
}

// Review is the joined output of the axis critiques plus the synthesis.
type Review struct {
	Axes       []AxisResult `json:"axes"`
	Integrated float64      `json:"integrated"` // 0-100
	Feedback   string       `json:"feedback"`   // prioritized issue list from synthesis
	Neutral    bool         `json:"neutral,omitempty"`
}

// Aggregator fans the document out to the axis reviewers and integrates
// their verdicts through one synthesis call.
type Aggregator struct {
	router *provider.Router
	axes   []Axis
}

// NewAggregator creates an aggregator over the default axes.
func NewAggregator(router *provider.Router) *Aggregator {
	return &Aggregator{router: router, axes: DefaultAxes}
}

// Review critiques an immutable document snapshot. The axis calls run
// concurrently; nothing shared is mutated until all have returned. A
// provider failure (already retried by the router) aborts the review;
// score extraction failures degrade to neutral defaults instead.
func (a *Aggregator) Review(ctx context.Context, document string) (*Review, error) {
	timer := logging.StartTimer(logging.CategoryCritique, "review")
	defer timer.StopWithInfo()

	results := make([]AxisResult, len(a.axes))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, axis := range a.axes {
		i, axis := i, axis
		g.Go(func() error {
			prompt := fmt.Sprintf("You are reviewing a draft document on the %q axis.\n%s\n\nDocument:\n%s",
				axis.Name, axis.Prompt, document)
			out, err := a.router.Generate(gctx, provider.RoleCritique, prompt, "", 2048)
			if err != nil {
				return fmt.Errorf("axis %s: %w", axis.Name, err)
			}

			score, scoreErr := ExtractAxisScore(out)
			if scoreErr != nil {
				logging.CritiqueWarn("axis %s: %v", axis.Name, scoreErr)
			}

			mu.Lock()
			results[i] = AxisResult{
				Axis:     axis.Name,
				Score:    score,
				Feedback: out,
				Neutral:  scoreErr != nil,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	synthesis, err := a.synthesize(ctx, document, results)
	if err != nil {
		return nil, err
	}
	synthesis.Axes = results

	logging.Critique("review complete: integrated=%.1f axes=%s",
		synthesis.Integrated, formatAxisScores(results))
	return synthesis, nil
}

// synthesize integrates the axis verdicts into one 0-100 score plus a
// prioritized issue list.
func (a *Aggregator) synthesize(ctx context.Context, document string, axes []AxisResult) (*Review, error) {
	var b strings.Builder
	b.WriteString("You are the editor integrating four specialist reviews of a draft.\n")
	b.WriteString("Produce a prioritized list of concrete problems, one per line as\n")
	b.WriteString("'TASK: <problem> | WHERE: <keywords locating the paragraph> | REQUIRE: <what the fix must achieve>'.\n")
	b.WriteString("Finish with a line 'Integrated score: X/100'.\n\n")
	for _, ax := range axes {
		fmt.Fprintf(&b, "--- %s review (%.1f/25) ---\n%s\n\n", ax.Axis, ax.Score, ax.Feedback)
	}

	out, err := a.router.Generate(ctx, provider.RoleSynthesis, b.String(), document, 2048)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}

	score, scoreErr := ExtractIntegratedScore(out)
	neutral := false
	if scoreErr != nil {
		var extractErr *ScoreExtractionError
		if errors.As(scoreErr, &extractErr) {
			neutral = true
		} else {
			return nil, scoreErr
		}
	}

	return &Review{Integrated: score, Feedback: out, Neutral: neutral}, nil
}

func formatAxisScores(axes []AxisResult) string {
	parts := make([]string, 0, len(axes))
	for _, ax := range axes {
		parts = append(parts, fmt.Sprintf("%s=%.1f", ax.Axis, ax.Score))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
