package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

var (
	askExam     string
	askSubject  string
	askMode     string
	askLanguage string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a tutoring question",
	Long: `Retrieves relevant chunks and streams a grounded answer with
citations to the terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askExam, "exam", "", "exam the question targets (required)")
	askCmd.Flags().StringVar(&askSubject, "subject", "", "subject filter")
	askCmd.Flags().StringVar(&askMode, "mode", "doubt", "tutor mode: doubt, practice or pyq")
	askCmd.Flags().StringVar(&askLanguage, "language", "", "answer language")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := ensureApp(); err != nil {
		return err
	}
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	mode, err := domain.ParseTutorMode(askMode)
	if err != nil {
		return err
	}

	var failure string
	err = chatService.StreamChat(context.Background(), domain.ChatRequest{
		Message:  args[0],
		Exam:     askExam,
		Subject:  askSubject,
		Mode:     mode,
		Language: askLanguage,
	}, func(event domain.StreamEvent) error {
		switch event.Type {
		case domain.EventToken:
			cmd.Print(event.Delta)
		case domain.EventFinal:
			cmd.Println()
			if event.Final != nil && len(event.Final.Citations) > 0 {
				cmd.Println()
				cmd.Println("Sources:")
				for _, cite := range event.Final.Citations {
					cmd.Printf("  - %s (%s)\n", cite.SourceTitle, cite.ChunkID)
				}
			}
		case domain.EventError:
			failure = event.Err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	if failure != "" {
		return errors.New(failure)
	}
	return nil
}
