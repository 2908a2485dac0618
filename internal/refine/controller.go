// Package refine orchestrates the refinement rounds: critique the
// current text, plan revision tasks, patch paragraphs, and accept or
// roll back so the returned document never scores worse than any
// earlier committed round.
package refine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"scribe/internal/citation"
	"scribe/internal/config"
	"scribe/internal/critique"
	"scribe/internal/document"
	"scribe/internal/logging"
	"scribe/internal/patch"
	"scribe/internal/planner"
	"scribe/internal/provider"
)

// RoundResult snapshots one round for audit.
type RoundResult struct {
	Round      int                     `json:"round"`
	AxisScores map[string]float64      `json:"axis_scores"`
	Integrated float64                 `json:"integrated"`
	Tasks      []*planner.RevisionTask `json:"tasks"`
	Document   string                  `json:"document"` // text after this round's patches
	Accepted   bool                    `json:"accepted"` // reviewed text became the new best
}

// Result is the terminal output of a refinement run: always the
// best-scoring document seen, never a regressed one.
type Result struct {
	RunID     string
	Document  string
	BestScore float64
	Rounds    []*RoundResult
}

// RoundSink receives per-round artifacts. Persistence is optional; a nil
// sink disables it without affecting correctness.
type RoundSink interface {
	SaveRound(runID string, round *RoundResult) error
}

// Controller drives the Draft -> Critique -> Plan -> Patch -> Score ->
// Accept/Rollback state machine.
type Controller struct {
	router   *provider.Router
	agg      *critique.Aggregator
	ledger   *citation.Ledger // may be nil when the caller tracks no citations
	sink     RoundSink
	refine   config.RefineConfig
	patchCfg config.PatchConfig
}

// NewController wires a controller. ledger and sink may be nil.
func NewController(router *provider.Router, ledger *citation.Ledger, cfg *config.Config, sink RoundSink) *Controller {
	return &Controller{
		router:   router,
		agg:      critique.NewAggregator(router),
		ledger:   ledger,
		sink:     sink,
		refine:   cfg.Refine,
		patchCfg: cfg.Patch,
	}
}

// Run refines the caller-supplied draft. The draft seeds best-so-far with
// score 0, so the first scored round always commits. Only repeated
// provider failure aborts the run; structural and validation failures are
// recovered locally.
func (c *Controller) Run(ctx context.Context, draft string) (*Result, error) {
	runID := uuid.NewString()
	best := draft
	bestScore := 0.0
	current := draft

	result := &Result{RunID: runID}

	for round := 1; round <= c.refine.MaxRounds; round++ {
		logging.Refine("run %s round %d/%d starting (best=%.1f)", runID, round, c.refine.MaxRounds, bestScore)

		review, err := c.agg.Review(ctx, current)
		if err != nil {
			var genErr *provider.GenerationError
			if errors.As(err, &genErr) {
				return nil, fmt.Errorf("round %d aborted: %w", round, err)
			}
			return nil, err
		}

		accepted := review.Integrated > bestScore
		if accepted {
			best = current
			bestScore = review.Integrated
			logging.Refine("round %d accepted: new best %.1f", round, bestScore)
		} else if current != best {
			// Regression: restore the best text. It keeps its committed
			// score; the next round critiques it fresh.
			logging.RefineWarn("round %d rolled back: %.1f <= best %.1f", round, review.Integrated, bestScore)
			current = best
		}

		roundResult := &RoundResult{
			Round:      round,
			AxisScores: axisMap(review),
			Integrated: review.Integrated,
			Accepted:   accepted,
		}

		if bestScore >= c.refine.TargetScore {
			roundResult.Document = best
			c.persist(runID, roundResult, result)
			logging.Refine("run %s reached target %.1f at round %d", runID, c.refine.TargetScore, round)
			break
		}
		if round == c.refine.MaxRounds {
			// No point patching text that will never be scored.
			roundResult.Document = best
			c.persist(runID, roundResult, result)
			break
		}

		tasks := planner.Decompose(review.Feedback)
		roundResult.Tasks = tasks

		mutated, err := c.patchRound(ctx, current, tasks)
		if err != nil {
			return nil, fmt.Errorf("round %d aborted: %w", round, err)
		}
		current = mutated
		roundResult.Document = mutated
		c.persist(runID, roundResult, result)
	}

	result.Document = best
	result.BestScore = bestScore
	logging.Refine("run %s finished: best=%.1f after %d rounds", runID, bestScore, len(result.Rounds))
	return result, nil
}

// patchRound applies each task to the current text. Locator and
// validation failures skip the task; only provider exhaustion is fatal.
func (c *Controller) patchRound(ctx context.Context, text string, tasks []*planner.RevisionTask) (string, error) {
	tree, err := document.Parse(text)
	if err != nil {
		if errors.Is(err, document.ErrNoStructure) {
			// Opaque block: no patching possible this round.
			logging.RefineWarn("no structure detected, skipping patch phase")
			return text, nil
		}
		return "", err
	}

	executor := patch.NewExecutor(c.router, c.patchCfg)
	for _, task := range tasks {
		idx, err := executor.ResolveLocator(task, tree)
		if err != nil {
			var locErr *patch.LocatorError
			if errors.As(err, &locErr) {
				continue
			}
			return "", err
		}
		task.TargetNode = idx

		if _, err := executor.Apply(ctx, tree, idx, task); err != nil {
			var verr *patch.ValidationError
			if errors.As(err, &verr) {
				continue
			}
			var genErr *provider.GenerationError
			if errors.As(err, &genErr) {
				return "", err
			}
			return "", err
		}
	}

	mutated := tree.Render()
	if c.ledger != nil {
		report := c.ledger.SyncWithText(mutated)
		logging.Refine("ledger sync: matched=%d missing=%d unused=%d",
			len(report.Matched), len(report.MissingInLedger), len(report.UnusedInText))
	}
	return mutated, nil
}

func (c *Controller) persist(runID string, round *RoundResult, result *Result) {
	result.Rounds = append(result.Rounds, round)
	if c.sink == nil {
		return
	}
	if err := c.sink.SaveRound(runID, round); err != nil {
		logging.StoreError("failed to persist round %d: %v", round.Round, err)
	}
}

func axisMap(review *critique.Review) map[string]float64 {
	m := make(map[string]float64, len(review.Axes))
	for _, ax := range review.Axes {
		m[ax.Axis] = ax.Score
	}
	return m
}
