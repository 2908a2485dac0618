package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scribe/internal/refine"
)

var refineOutput string

// refineCmd refines an existing draft file.
var refineCmd = &cobra.Command{
	Use:   "refine [draft-file]",
	Short: "Refine an existing draft through scored critique rounds",
	Long: `Runs the critique -> plan -> patch -> score loop on a draft until
the target score is reached or the round limit is hit. The written
result is always the best-scoring version seen.

Example:
  scribe refine draft.md -o refined.md`,
	Args: cobra.ExactArgs(1),
	RunE: runRefine,
}

func init() {
	refineCmd.Flags().StringVarP(&refineOutput, "output", "o", "", "Output file (default: overwrite the input)")
}

func runRefine(cmd *cobra.Command, args []string) error {
	draftPath := args[0]
	data, err := os.ReadFile(draftPath)
	if err != nil {
		return fmt.Errorf("failed to read draft: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	router, err := buildRouter(ctx, cfg)
	if err != nil {
		return err
	}
	sink, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	controller := refine.NewController(router, nil, cfg, sink)
	result, err := controller.Run(ctx, string(data))
	if err != nil {
		return err
	}

	out := refineOutput
	if out == "" {
		out = draftPath
	}
	if err := os.WriteFile(out, []byte(result.Document), 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	printRunSummary(result)
	fmt.Printf("Wrote %s\n", out)
	return nil
}

func printRunSummary(result *refine.Result) {
	fmt.Printf("Run %s: best score %.1f after %d rounds\n", result.RunID, result.BestScore, len(result.Rounds))
	for _, r := range result.Rounds {
		status := "rejected"
		if r.Accepted {
			status = "accepted"
		}
		fmt.Printf("  round %d: %.1f (%s, %d tasks)\n", r.Round, r.Integrated, status, len(r.Tasks))
	}
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
