package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

var (
	ingestTitle   string
	ingestExam    string
	ingestSubject string
	ingestTopic   string
	ingestDocType string
	ingestYear    int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [source]",
	Short: "Ingest a document into the index",
	Long: `Registers the document and runs the full pipeline to completion:
extract, chunk, filter, embed, index. The source may be a local file
path or a URL the converter can fetch.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var statusCmd = &cobra.Command{
	Use:   "status [document-id]",
	Short: "Show ingestion status for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Remove a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title (required)")
	ingestCmd.Flags().StringVar(&ingestExam, "exam", "", "exam the material targets (required)")
	ingestCmd.Flags().StringVar(&ingestSubject, "subject", "", "subject")
	ingestCmd.Flags().StringVar(&ingestTopic, "topic", "", "topic")
	ingestCmd.Flags().StringVar(&ingestDocType, "doc-type", "", "document type (textbook, pyq, notes, ...)")
	ingestCmd.Flags().IntVar(&ingestYear, "year", 0, "publication year")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := ensureApp(); err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	ctx := context.Background()
	receipt, err := ingestService.Register(ctx, domain.IngestRequest{
		Source:  args[0],
		Title:   ingestTitle,
		Exam:    ingestExam,
		Subject: ingestSubject,
		Topic:   ingestTopic,
		DocType: ingestDocType,
		Year:    ingestYear,
	})
	if err != nil {
		return fmt.Errorf("register document: %w", err)
	}
	cmd.Printf("Registered document %s\n", receipt.DocumentID)

	// One-shot run: execute the pipeline in-process instead of waiting
	// on the worker pool.
	if err := ingestService.Run(ctx, receipt.DocumentID); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	job, err := ingestService.Status(ctx, receipt.DocumentID)
	if err != nil {
		return err
	}
	printJob(cmd, job)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := ensureApp(); err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	job, err := ingestService.Status(context.Background(), args[0])
	if err != nil {
		return err
	}
	printJob(cmd, job)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := ensureApp(); err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if err := ingestService.DeleteDocument(context.Background(), args[0]); err != nil {
		return err
	}
	cmd.Printf("Deleted document %s\n", args[0])
	return nil
}

func printJob(cmd *cobra.Command, job *domain.IngestionJob) {
	cmd.Printf("Document: %s\n", job.DocumentID)
	cmd.Printf("Status:   %s\n", job.Status)
	if job.Error != "" {
		cmd.Printf("Error:    %s\n", job.Error)
	}
}
