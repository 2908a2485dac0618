package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/store"
)

var roundsShowDoc bool

// roundsCmd inspects persisted round artifacts.
var roundsCmd = &cobra.Command{
	Use:   "rounds [run-id]",
	Short: "Inspect persisted refinement rounds",
	Long: `Without arguments, lists the recorded runs newest first. With a
run id, prints that run's rounds: score, acceptance, and task count.

Example:
  scribe rounds
  scribe rounds 2f1c... --show-document`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRounds,
}

func init() {
	roundsCmd.Flags().BoolVar(&roundsShowDoc, "show-document", false, "Print each round's document text")
}

func runRounds(cmd *cobra.Command, args []string) error {
	s, err := store.NewRoundStore(storePath(cfg))
	if err != nil {
		return err
	}
	defer s.Close()

	if len(args) == 0 {
		runs, err := s.Runs()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No recorded runs.")
			return nil
		}
		for _, id := range runs {
			fmt.Println(id)
		}
		return nil
	}

	runID := args[0]
	rounds, err := s.LoadRounds(runID)
	if err != nil {
		return err
	}
	if len(rounds) == 0 {
		return fmt.Errorf("no rounds recorded for run %s", runID)
	}

	for _, r := range rounds {
		status := "rejected"
		if r.Accepted {
			status = "accepted"
		}
		fmt.Printf("round %d: %.1f (%s, %d tasks)\n", r.Round, r.Integrated, status, len(r.Tasks))
		for axis, score := range r.AxisScores {
			fmt.Printf("    %-14s %.1f/25\n", axis, score)
		}
		if roundsShowDoc {
			fmt.Println("  ---")
			fmt.Println(r.Document)
			fmt.Println("  ---")
		}
	}

	if best, err := s.BestRound(runID); err == nil && best != nil {
		fmt.Printf("best: round %d at %.1f\n", best.Round, best.Integrated)
	}
	return nil
}
