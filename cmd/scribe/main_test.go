package main

import (
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/compose"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"init", "compose", "refine", "rounds"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestLoadOutline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outline.yaml")
	content := `title: Attention in Sequence Models
sections:
  - title: Introduction
    key: introduction
  - title: Methods
    subsections: [Evaluation Setup]
  - title: Conclusion
    key: conclusion
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	outline, err := loadOutline(path)
	if err != nil {
		t.Fatalf("loadOutline failed: %v", err)
	}
	if len(outline.Sections) != 3 {
		t.Fatalf("got %d sections, want 3", len(outline.Sections))
	}
	if outline.Sections[1].Subsections[0] != "Evaluation Setup" {
		t.Errorf("subsections not parsed: %+v", outline.Sections[1])
	}

	keys := chapterKeys(outline)
	if len(keys) != 1 || keys[0] != "Methods" {
		t.Errorf("chapterKeys = %v, want [Methods]", keys)
	}
}

func TestLoadOutlineRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outline.yaml")
	if err := os.WriteFile(path, []byte("title: Empty\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadOutline(path); err == nil {
		t.Error("expected error for an outline with no sections")
	}
}

func TestLoadLiterature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.yaml")
	content := `- id: lit-1
  authors: ["Vaswani, A."]
  title: Attention mechanisms in sequence transduction
  year: 2017
  abstract: A study of attention applied to sequence models.
  full_citation: Vaswani A. Attention mechanisms in sequence transduction. 2017.
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	pool, err := loadLiterature(path)
	if err != nil {
		t.Fatalf("loadLiterature failed: %v", err)
	}
	if len(pool) != 1 {
		t.Fatalf("got %d records, want 1", len(pool))
	}
	rec := pool[0]
	if rec.ID != "lit-1" || rec.Year != 2017 || rec.FirstAuthor() != "Vaswani, A." {
		t.Errorf("record did not parse: %+v", rec)
	}
	if rec.Used {
		t.Error("freshly loaded record must not be marked used")
	}
}

func TestChapterKeysFallBackToTitle(t *testing.T) {
	outline := &compose.Outline{
		Sections: []compose.OutlineSection{
			{Title: "Background"},
			{Title: "Intro", Key: "introduction"},
		},
	}
	keys := chapterKeys(outline)
	if len(keys) != 1 || keys[0] != "Background" {
		t.Errorf("chapterKeys = %v, want [Background]", keys)
	}
}
