package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scribe/internal/citation"
	"scribe/internal/compose"
	"scribe/internal/refine"
)

var (
	composeLiterature string
	composeOutput     string
	composeAndRefine  bool
)

// composeCmd drafts a document from an outline and a literature pool.
var composeCmd = &cobra.Command{
	Use:   "compose [outline-file]",
	Short: "Draft a document from an outline and a literature pool",
	Long: `Walks the outline section by section, retrieving citation candidates
from the literature pool and assigning numbers through the ledger under
the configured quotas. The abstract is written last and the reference
list is appended from the ledger.

The outline is yaml:

  title: Attention in Sequence Models
  sections:
    - title: Introduction
      key: introduction
    - title: Methods
      subsections: [Evaluation Setup]
    - title: Conclusion
      key: conclusion

The literature pool is a yaml list of records with id, authors, title,
year, abstract and full_citation fields.

Example:
  scribe compose outline.yaml --literature pool.yaml -o draft.md --refine`,
	Args: cobra.ExactArgs(1),
	RunE: runCompose,
}

func init() {
	composeCmd.Flags().StringVarP(&composeLiterature, "literature", "l", "", "Literature pool file (required)")
	composeCmd.Flags().StringVarP(&composeOutput, "output", "o", "draft.md", "Output file")
	composeCmd.Flags().BoolVar(&composeAndRefine, "refine", false, "Refine the draft after composing")
	composeCmd.MarkFlagRequired("literature")
}

func runCompose(cmd *cobra.Command, args []string) error {
	outline, err := loadOutline(args[0])
	if err != nil {
		return err
	}
	pool, err := loadLiterature(composeLiterature)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	router, err := buildRouter(ctx, cfg)
	if err != nil {
		return err
	}

	plan := citation.NewQuotaPlan(
		cfg.Quota.TotalCitations,
		cfg.Quota.IntroFraction,
		cfg.Quota.ChapterFraction,
		cfg.Quota.SubsectionShare,
		chapterKeys(outline),
	)
	ledger := citation.NewLedger(plan)
	drafter := compose.NewDrafter(router, compose.NewPoolRetriever(pool), ledger, 0)

	doc, err := drafter.Draft(ctx, outline)
	if err != nil {
		return err
	}
	fmt.Printf("Composed %d sections, %d/%d citations assigned\n",
		len(outline.Sections), ledger.AssignedCount(), cfg.Quota.TotalCitations)

	if composeAndRefine {
		sink, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		if closeStore != nil {
			defer closeStore()
		}
		controller := refine.NewController(router, ledger, cfg, sink)
		result, err := controller.Run(ctx, doc)
		if err != nil {
			return err
		}
		doc = result.Document
		printRunSummary(result)
	}

	if err := os.WriteFile(composeOutput, []byte(doc), 0644); err != nil {
		return fmt.Errorf("failed to write draft: %w", err)
	}
	fmt.Printf("Wrote %s\n", composeOutput)
	return nil
}

func loadOutline(path string) (*compose.Outline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outline: %w", err)
	}
	var outline compose.Outline
	if err := yaml.Unmarshal(data, &outline); err != nil {
		return nil, fmt.Errorf("failed to parse outline: %w", err)
	}
	if len(outline.Sections) == 0 {
		return nil, fmt.Errorf("outline %s has no sections", path)
	}
	return &outline, nil
}

func loadLiterature(path string) ([]*citation.LiteratureRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read literature pool: %w", err)
	}
	var pool []*citation.LiteratureRecord
	if err := yaml.Unmarshal(data, &pool); err != nil {
		return nil, fmt.Errorf("failed to parse literature pool: %w", err)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("literature pool %s is empty", path)
	}
	return pool, nil
}

// chapterKeys lists the quota regions for the body chapters, excluding
// the introduction and conclusion which the plan budgets separately.
func chapterKeys(outline *compose.Outline) []string {
	var keys []string
	for _, s := range outline.Sections {
		key := s.QuotaKey()
		if key == citation.SectionIntroduction || key == citation.SectionConclusion {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}
