// Package patch mutates one paragraph at a time through the generation
// collaborator, committing only outputs that keep every citation marker
// and stay within length bounds. Anything else reverts to the original
// paragraph; the pipeline never loses committed content here.
package patch

import (
	"context"
	"fmt"
	"strings"

	"scribe/internal/citation"
	"scribe/internal/config"
	"scribe/internal/document"
	"scribe/internal/logging"
	"scribe/internal/planner"
	"scribe/internal/provider"
)

// LocatorError reports that a task could not be matched to any paragraph.
// Non-fatal: the task is skipped and logged.
type LocatorError struct {
	TaskID string
}

func (e *LocatorError) Error() string {
	return fmt.Sprintf("no paragraph matches locator for task %s", e.TaskID)
}

// ValidationError reports why a generated mutation was discarded.
// Non-fatal: the original paragraph stands.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "mutation rejected: " + e.Reason
}

// Executor applies revision tasks to a parsed tree. One Executor lives
// for one round; its patched set enforces the one-mutation-per-node rule.
type Executor struct {
	router  *provider.Router
	cfg     config.PatchConfig
	patched map[int]bool
}

// NewExecutor creates an executor for a single round.
func NewExecutor(router *provider.Router, cfg config.PatchConfig) *Executor {
	return &Executor{
		router:  router,
		cfg:     cfg,
		patched: make(map[int]bool),
	}
}

// ResolveLocator maps a task to a paragraph index. A pre-resolved index
// wins; otherwise every eligible paragraph is scored by keyword overlap
// with the task's locator hint and the best one above the overlap floor
// is chosen. Headings are never eligible.
func (e *Executor) ResolveLocator(task *planner.RevisionTask, tree *document.Tree) (int, error) {
	if task.TargetNode >= 0 && task.TargetNode < len(tree.Nodes) &&
		tree.Node(task.TargetNode).Kind == document.KindParagraph {
		return task.TargetNode, nil
	}
	if len(task.LocatorHint) == 0 {
		return -1, &LocatorError{TaskID: task.ID}
	}

	best := -1
	bestScore := 0
	for _, idx := range tree.Paragraphs() {
		score := overlap(task.LocatorHint, tree.Node(idx).Body)
		if score > bestScore {
			bestScore = score
			best = idx
		}
	}

	if best < 0 || bestScore < e.cfg.MinKeywordHit {
		logging.PatchWarn("task %s: best overlap %d below floor %d", task.ID, bestScore, e.cfg.MinKeywordHit)
		return -1, &LocatorError{TaskID: task.ID}
	}

	logging.PatchDebug("task %s resolved to node %d (overlap %d)", task.ID, best, bestScore)
	return best, nil
}

// overlap counts how many hint keywords occur in the paragraph body.
func overlap(hint []string, body string) int {
	lower := strings.ToLower(body)
	n := 0
	for _, kw := range hint {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// Apply mutates one paragraph for one task. The returned text is the new
// paragraph body on commit, or the untouched original on any validation
// failure. A node already patched this round is skipped outright.
func (e *Executor) Apply(ctx context.Context, tree *document.Tree, idx int, task *planner.RevisionTask) (string, error) {
	node := tree.Node(idx)
	original := node.Body

	if e.patched[idx] {
		logging.PatchDebug("node %d already patched this round, skipping task %s", idx, task.ID)
		return original, nil
	}

	prompt := fmt.Sprintf(
		"Revise the paragraph below.\nProblem: %s\nRequirement: %s\n\nKeep every citation marker like [N] that the paragraph already contains. Return only the revised paragraph.\n\nParagraph:\n%s",
		task.Problem, task.Requirement, original)

	out, err := e.router.Generate(ctx, provider.RoleDraft, prompt, "", 2048)
	if err != nil {
		return original, err
	}
	out = strings.TrimSpace(out)

	if verr := e.validate(original, out); verr != nil {
		logging.PatchWarn("task %s on node %d: %v", task.ID, idx, verr)
		return original, verr
	}

	tree.SetBody(idx, out)
	e.patched[idx] = true
	logging.Patch("committed mutation on node %d (task %s, %d -> %d chars)", idx, task.ID, len(original), len(out))
	return out, nil
}

// validate enforces the commit conditions: non-empty, minimum length,
// citation-marker superset, and bounded length ratio. An unmodified
// paragraph validated against itself always passes.
func (e *Executor) validate(original, mutated string) *ValidationError {
	if mutated == original {
		// Unchanged text is trivially valid.
		return nil
	}
	if mutated == "" {
		return &ValidationError{Reason: "empty output"}
	}
	if len(mutated) < e.cfg.MinLength {
		return &ValidationError{Reason: fmt.Sprintf("output length %d below minimum %d", len(mutated), e.cfg.MinLength)}
	}
	if !citation.IsMarkerSuperset(mutated, original) {
		return &ValidationError{Reason: "citation marker lost"}
	}

	ratio := float64(len(mutated)) / float64(len(original))
	if ratio < e.cfg.MinRatio || ratio > e.cfg.MaxRatio {
		return &ValidationError{
			Reason: fmt.Sprintf("length ratio %.2f outside [%.2f, %.2f]", ratio, e.cfg.MinRatio, e.cfg.MaxRatio),
		}
	}
	return nil
}
