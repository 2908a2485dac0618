package compose

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"scribe/internal/citation"
	"scribe/internal/document"
	"scribe/internal/provider"
)

func testPool() []*citation.LiteratureRecord {
	return []*citation.LiteratureRecord{
		{
			ID:           "lit-1",
			Authors:      []string{"Vaswani, A."},
			Title:        "Attention mechanisms in sequence transduction",
			Year:         2017,
			Abstract:     "A study of attention applied to sequence models.",
			FullCitation: "Vaswani A. Attention mechanisms in sequence transduction. 2017.",
		},
		{
			ID:           "lit-2",
			Authors:      []string{"Cho, K."},
			Title:        "Evaluation methods for sequence models",
			Year:         2019,
			Abstract:     "A study of evaluation methods and benchmarks.",
			FullCitation: "Cho K. Evaluation methods for sequence models. 2019.",
		},
		{
			ID:           "lit-3",
			Authors:      []string{"Linnaeus, C."},
			Title:        "A botanical survey of alpine flora",
			Year:         1753,
			Abstract:     "Field notes on alpine plants.",
			FullCitation: "Linnaeus C. A botanical survey of alpine flora. 1753.",
		},
	}
}

func TestSearchRanksByOverlap(t *testing.T) {
	r := NewPoolRetriever(testPool())

	got := r.Search("attention mechanisms for sequence models", 5)
	if len(got) == 0 {
		t.Fatal("expected candidates")
	}
	if got[0].Record.ID != "lit-1" {
		t.Errorf("top candidate = %s, want lit-1", got[0].Record.ID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Similarity > got[i-1].Similarity {
			t.Error("candidates not sorted by similarity")
		}
	}
}

func TestSearchSkipsUsedRecords(t *testing.T) {
	pool := testPool()
	pool[0].Used = true
	r := NewPoolRetriever(pool)

	for _, c := range r.Search("attention mechanisms for sequence models", 5) {
		if c.Record.ID == "lit-1" {
			t.Error("used record returned")
		}
	}
}

func TestSearchFuzzyFallback(t *testing.T) {
	r := NewPoolRetriever(testPool())

	// Nothing in the pool mentions quantum chromodynamics, but drafting
	// still needs a candidate to work with.
	got := r.Search("quantum chromodynamics lattice simulation", 5)
	if len(got) != 1 {
		t.Fatalf("fuzzy fallback returned %d candidates, want 1", len(got))
	}
}

func TestSearchRespectsTopK(t *testing.T) {
	r := NewPoolRetriever(testPool())

	got := r.Search("study of sequence models", 1)
	if len(got) > 1 {
		t.Errorf("got %d candidates, want at most 1", len(got))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	r := NewPoolRetriever(testPool())
	if got := r.Search("", 5); got != nil {
		t.Errorf("empty query returned %v", got)
	}
}

// draftGenerator scripts the drafting run. Section bodies always carry
// one real-looking and one fabricated marker so stripping is exercised.
type draftGenerator struct {
	fail bool
}

func (g *draftGenerator) Generate(ctx context.Context, prompt, contextText string, maxTokens int) (string, error) {
	if g.fail {
		return "", fmt.Errorf("connection refused")
	}
	if strings.Contains(prompt, "abstract for the document") {
		return "This work examines attention-based drafting pipelines [12].", nil
	}
	return "Attention-based approaches dominate recent work [1], though fabricated findings [99] persist.", nil
}

func (g *draftGenerator) Name() string { return "mock" }

func newDraftRouter(gen provider.Generator) *provider.Router {
	return provider.NewRouter(
		map[string]provider.Generator{"mock": gen},
		map[provider.Role]string{
			provider.RoleDraft:     "mock",
			provider.RoleSynthesis: "mock",
		},
		nil,
		1,
	)
}

func testOutline() *Outline {
	return &Outline{
		Title: "Attention in Sequence Models",
		Sections: []OutlineSection{
			{Title: "Introduction", Key: citation.SectionIntroduction},
			{Title: "Methods", Subsections: []string{"Evaluation Setup"}},
			{Title: "Conclusion", Key: citation.SectionConclusion},
		},
	}
}

func newTestDrafter(gen provider.Generator) (*Drafter, *citation.Ledger) {
	plan := citation.NewQuotaPlan(4, 0.25, 0.5, 1.0, []string{"Methods"})
	ledger := citation.NewLedger(plan)
	drafter := NewDrafter(newDraftRouter(gen), NewPoolRetriever(testPool()), ledger, 3)
	return drafter, ledger
}

func TestDraftAssemblesDocument(t *testing.T) {
	drafter, ledger := newTestDrafter(&draftGenerator{})

	doc, err := drafter.Draft(context.Background(), testOutline())
	if err != nil {
		t.Fatalf("Draft failed: %v", err)
	}

	if !strings.HasPrefix(doc, "Abstract: ") {
		t.Error("document does not open with the abstract")
	}
	for _, heading := range []string{"## Introduction", "## Methods", "### Evaluation Setup", "## Conclusion"} {
		if !strings.Contains(doc, heading) {
			t.Errorf("document missing heading %q", heading)
		}
	}
	if !strings.Contains(doc, "References") {
		t.Error("document missing reference list")
	}

	if strings.Contains(doc, "[99]") {
		t.Error("fabricated marker [99] survived stripping")
	}
	if strings.Contains(doc, "[12]") {
		t.Error("abstract kept a citation marker")
	}
	if ledger.AssignedCount() == 0 {
		t.Error("no citations were assigned")
	}
	if !strings.Contains(doc, "[1] Vaswani") {
		t.Error("reference list missing the first assigned entry")
	}
}

func TestDraftConclusionNeverMints(t *testing.T) {
	drafter, ledger := newTestDrafter(&draftGenerator{})

	if _, err := drafter.Draft(context.Background(), testOutline()); err != nil {
		t.Fatalf("Draft failed: %v", err)
	}
	if n := ledger.SectionCount(citation.SectionConclusion); n != 0 {
		t.Errorf("conclusion committed %d citations, want 0", n)
	}
}

func TestDraftOutputParses(t *testing.T) {
	drafter, _ := newTestDrafter(&draftGenerator{})

	doc, err := drafter.Draft(context.Background(), testOutline())
	if err != nil {
		t.Fatalf("Draft failed: %v", err)
	}

	tree, err := document.Parse(doc)
	if err != nil {
		t.Fatalf("drafted document did not parse: %v", err)
	}

	var hasAbstract, hasReferences bool
	for _, n := range tree.Nodes {
		switch n.Kind {
		case document.KindAbstract:
			hasAbstract = true
		case document.KindReferenceList:
			hasReferences = true
		}
	}
	if !hasAbstract {
		t.Error("parsed tree missing abstract leaf")
	}
	if !hasReferences {
		t.Error("parsed tree missing reference list leaf")
	}
}

func TestDraftEmptyOutline(t *testing.T) {
	drafter, _ := newTestDrafter(&draftGenerator{})
	if _, err := drafter.Draft(context.Background(), &Outline{Title: "x"}); err == nil {
		t.Error("expected error for an empty outline")
	}
}

func TestExcerptsStayValidUTF8(t *testing.T) {
	// Byte-length cuts into runs of 3-byte runes land mid-rune; the
	// excerpts must still be valid UTF-8.
	long := "a" + strings.Repeat("研", 100)
	if got := summarize("背景", "方法", long); !utf8.ValidString(got) {
		t.Errorf("summarize produced invalid UTF-8: %q", got)
	}
	if got := firstWords("a" + strings.Repeat("究", 15)); !utf8.ValidString(got) {
		t.Errorf("firstWords produced invalid UTF-8: %q", got)
	}
}

func TestDraftGenerationFailureIsFatal(t *testing.T) {
	drafter, _ := newTestDrafter(&draftGenerator{fail: true})
	if _, err := drafter.Draft(context.Background(), testOutline()); err == nil {
		t.Error("expected error when the provider keeps failing")
	}
}
