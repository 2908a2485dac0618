package patch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"scribe/internal/config"
	"scribe/internal/document"
	"scribe/internal/planner"
	"scribe/internal/provider"
)

// replyGenerator returns a fixed reply for every call.
type replyGenerator struct {
	reply string
	calls int
}

func (g *replyGenerator) Generate(ctx context.Context, prompt, contextText string, maxTokens int) (string, error) {
	g.calls++
	return g.reply, nil
}

func (g *replyGenerator) Name() string { return "mock" }

func newPatchRouter(gen provider.Generator) *provider.Router {
	return provider.NewRouter(
		map[string]provider.Generator{"mock": gen},
		map[provider.Role]string{provider.RoleDraft: "mock"},
		nil,
		1,
	)
}

func patchCfg() config.PatchConfig {
	return config.PatchConfig{MinLength: 50, MinRatio: 0.5, MaxRatio: 2.0, MinKeywordHit: 2}
}

const patchDoc = `## Results

The ablation experiment demonstrates that removing the attention module degrades accuracy substantially [3][7] across every benchmark we evaluated.

The qualitative analysis section discusses failure cases observed during deployment and their likely causes in considerable depth.`

func parsePatchDoc(t *testing.T) *document.Tree {
	t.Helper()
	tree, err := document.Parse(patchDoc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return tree
}

func TestResolveLocatorByKeywordOverlap(t *testing.T) {
	tree := parsePatchDoc(t)
	e := NewExecutor(newPatchRouter(&replyGenerator{}), patchCfg())

	task := &planner.RevisionTask{
		ID:          "t1",
		LocatorHint: []string{"ablation", "attention", "accuracy"},
		TargetNode:  -1,
	}
	idx, err := e.ResolveLocator(task, tree)
	if err != nil {
		t.Fatalf("ResolveLocator failed: %v", err)
	}
	if !strings.Contains(tree.Node(idx).Body, "ablation experiment") {
		t.Errorf("resolved wrong node: %q", tree.Node(idx).Body[:40])
	}
}

func TestResolveLocatorPrefersKnownIndex(t *testing.T) {
	tree := parsePatchDoc(t)
	e := NewExecutor(newPatchRouter(&replyGenerator{}), patchCfg())

	paras := tree.Paragraphs()
	task := &planner.RevisionTask{ID: "t1", TargetNode: paras[1], LocatorHint: []string{"ablation"}}
	idx, err := e.ResolveLocator(task, tree)
	if err != nil {
		t.Fatalf("ResolveLocator failed: %v", err)
	}
	if idx != paras[1] {
		t.Errorf("idx = %d, want pre-resolved %d", idx, paras[1])
	}
}

func TestResolveLocatorBelowFloor(t *testing.T) {
	tree := parsePatchDoc(t)
	e := NewExecutor(newPatchRouter(&replyGenerator{}), patchCfg())

	task := &planner.RevisionTask{ID: "t1", LocatorHint: []string{"nonexistent", "vocabulary"}, TargetNode: -1}
	_, err := e.ResolveLocator(task, tree)
	var locErr *LocatorError
	if !errors.As(err, &locErr) {
		t.Fatalf("error type = %T, want *LocatorError", err)
	}
}

func TestApplyCommitsValidMutation(t *testing.T) {
	tree := parsePatchDoc(t)
	paras := tree.Paragraphs()
	target := paras[0]

	reply := "The ablation experiment demonstrates clearly that removing the attention module degrades accuracy substantially [3][7] and we add supporting numbers."
	gen := &replyGenerator{reply: reply}
	e := NewExecutor(newPatchRouter(gen), patchCfg())

	task := &planner.RevisionTask{ID: "t1", Problem: "vague", Requirement: "add numbers"}
	out, err := e.Apply(context.Background(), tree, target, task)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out != reply {
		t.Errorf("Apply returned %q, want committed mutation", out)
	}
	if tree.Node(target).Body != reply {
		t.Error("tree body not updated")
	}
}

func TestApplyRejectsCitationLoss(t *testing.T) {
	tree := parsePatchDoc(t)
	target := tree.Paragraphs()[0]
	original := tree.Node(target).Body

	// Mutation keeps [3] but drops [7]: must be rejected and the original
	// returned unchanged.
	reply := "The ablation experiment demonstrates that removing the attention module degrades accuracy substantially [3] across every benchmark we evaluated."
	e := NewExecutor(newPatchRouter(&replyGenerator{reply: reply}), patchCfg())

	task := &planner.RevisionTask{ID: "t1"}
	out, err := e.Apply(context.Background(), tree, target, task)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if out != original {
		t.Error("rejected mutation did not return the original paragraph")
	}
	if tree.Node(target).Body != original {
		t.Error("rejected mutation leaked into the tree")
	}
}

func TestApplyRejectsLengthRatio(t *testing.T) {
	tree := parsePatchDoc(t)
	target := tree.Paragraphs()[0]
	original := tree.Node(target).Body

	reply := original + strings.Repeat(" padding to blow past the upper length ratio", 20)
	e := NewExecutor(newPatchRouter(&replyGenerator{reply: reply}), patchCfg())

	out, err := e.Apply(context.Background(), tree, target, &planner.RevisionTask{ID: "t1"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if out != original {
		t.Error("rejected mutation did not return the original")
	}
}

func TestApplyRejectsShortOutput(t *testing.T) {
	tree := parsePatchDoc(t)
	target := tree.Paragraphs()[1]

	e := NewExecutor(newPatchRouter(&replyGenerator{reply: "too short"}), patchCfg())
	_, err := e.Apply(context.Background(), tree, target, &planner.RevisionTask{ID: "t1"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
}

func TestApplyIdempotentSelfPatch(t *testing.T) {
	tree := parsePatchDoc(t)
	target := tree.Paragraphs()[0]
	original := tree.Node(target).Body

	e := NewExecutor(newPatchRouter(&replyGenerator{reply: original}), patchCfg())
	out, err := e.Apply(context.Background(), tree, target, &planner.RevisionTask{ID: "t1"})
	if err != nil {
		t.Fatalf("self-patch must commit: %v", err)
	}
	if out != original {
		t.Error("self-patch changed the text")
	}
}

func TestApplyOneMutationPerNodePerRound(t *testing.T) {
	tree := parsePatchDoc(t)
	target := tree.Paragraphs()[0]

	first := "The ablation experiment demonstrates that removing the attention module degrades accuracy substantially [3][7] with extra supporting detail added."
	gen := &replyGenerator{reply: first}
	e := NewExecutor(newPatchRouter(gen), patchCfg())

	if _, err := e.Apply(context.Background(), tree, target, &planner.RevisionTask{ID: "t1"}); err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}
	callsAfterFirst := gen.calls

	out, err := e.Apply(context.Background(), tree, target, &planner.RevisionTask{ID: "t2"})
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}
	if out != first {
		t.Error("second Apply on same node must return current text unchanged")
	}
	if gen.calls != callsAfterFirst {
		t.Error("second Apply on same node must not call the generator")
	}
}
