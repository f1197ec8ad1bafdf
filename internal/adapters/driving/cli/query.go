package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

var (
	queryExam    string
	querySubject string
	queryTopic   string
	queryTopN    int
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the indexed corpus",
	Long: `Embeds the query, searches the vector store under the given filters
and prints the best-matching chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryExam, "exam", "", "exam filter (required)")
	queryCmd.Flags().StringVar(&querySubject, "subject", "", "subject filter")
	queryCmd.Flags().StringVar(&queryTopic, "topic", "", "topic filter")
	queryCmd.Flags().IntVarP(&queryTopN, "limit", "n", 0, "maximum number of results")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := ensureApp(); err != nil {
		return err
	}
	if retrieveService == nil {
		return errors.New("retrieve service not configured")
	}

	filters := domain.RetrievalFilters{
		Exam:    queryExam,
		Subject: querySubject,
		Topic:   queryTopic,
	}
	results, err := retrieveService.Retrieve(context.Background(), args[0], filters, 0, queryTopN)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	cmd.Println("Results:")
	cmd.Println()
	for i, res := range results {
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, res.Chunk.SourceTitle, res.Score)
		if res.Chunk.SectionPath != "" {
			cmd.Printf("      Section: %s\n", res.Chunk.SectionPath)
		}
		cmd.Printf("      %s\n", snippet(res.Chunk.Content, 160))
		cmd.Println()
	}
	return nil
}

func snippet(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
