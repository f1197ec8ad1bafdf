// Package cli provides the examtutor command line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/veda-labs/examtutor/internal/app"
	"github.com/veda-labs/examtutor/internal/config"
	"github.com/veda-labs/examtutor/internal/core/ports/driving"
)

// version is set at build time via ldflags.
var version = "dev"

// Services used by the commands. Populated by ensureApp; tests inject
// mocks directly.
var (
	ingestService   driving.IngestService
	retrieveService driving.RetrieveService
	chatService     driving.ChatService
)

var (
	configPath string
	verbose    bool

	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "examtutor",
	Short: "Retrieval-augmented exam tutoring backend",
	Long: `examtutor ingests study material, indexes it for semantic search
and answers exam questions grounded in the indexed sources.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.examtutor/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// ensureApp builds the application on first use. Commands that only
// print (version, help) never call it.
func ensureApp() error {
	if ingestService != nil {
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Verbose = true
	}

	application, err = app.New(cfg)
	if err != nil {
		return err
	}
	ingestService = application.Ingest
	retrieveService = application.Retrieve
	chatService = application.Chat
	return nil
}

// Execute runs the root command.
func Execute(buildVersion string) {
	if buildVersion != "" {
		version = buildVersion
	}
	err := rootCmd.Execute()
	if application != nil {
		_ = application.Close()
	}
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
