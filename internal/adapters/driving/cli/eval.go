package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veda-labs/examtutor/internal/eval"
)

var (
	evalGoldPath  string
	evalTopK      int
	evalTopN      int
	evalMinRecall float64
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score retrieval quality against a gold query set",
	Long: `Runs every query in a gold JSONL file through retrieval and reports
recall@5 and MRR over the first-hit ranks. Each line holds a query, its
exam filter and the expected chunk IDs:

  {"query":"state the first law","exam":"GATE_DA","expected_chunk_ids":["..."]}

The command fails when recall@5 drops below --min-recall, which makes it
usable as a regression gate.`,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalGoldPath, "gold", "", "path to the gold JSONL file (required)")
	evalCmd.Flags().IntVar(&evalTopK, "top-k", 0, "candidate pool size per query")
	evalCmd.Flags().IntVarP(&evalTopN, "limit", "n", 0, "results scored per query")
	evalCmd.Flags().Float64Var(&evalMinRecall, "min-recall", 0, "minimum recall@5; below this the command fails")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, _ []string) error {
	if err := ensureApp(); err != nil {
		return err
	}
	if retrieveService == nil {
		return errors.New("retrieve service not configured")
	}
	if evalGoldPath == "" {
		return errors.New("--gold is required")
	}

	f, err := os.Open(evalGoldPath)
	if err != nil {
		return fmt.Errorf("open gold file: %w", err)
	}
	defer f.Close()

	queries, err := eval.LoadGold(f)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return errors.New("gold file holds no queries")
	}

	runner := eval.NewRunner(retrieveService, evalTopK, evalTopN)
	report, err := runner.Run(context.Background(), queries)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	cmd.Println(string(data))

	if report.RecallAt5 < evalMinRecall {
		return fmt.Errorf("recall@5 %.3f below required %.3f", report.RecallAt5, evalMinRecall)
	}
	return nil
}
