// Package cli implements the billrag command line.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/config"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/logger"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "billrag",
	Short: "Question answering over US legislative bills",
	Long: `billrag ingests bill text into a vector index and answers questions
grounded only in the retrieved bill chunks.`,
	SilenceUsage: true,
}

// loadConfig is replaced in tests.
var loadConfig = config.Load

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version reported by the version command and the MCP
// endpoint.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// setup loads configuration and installs the process logger.
func setup() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat))
	return cfg, nil
}
