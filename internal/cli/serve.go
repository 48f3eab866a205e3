package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the ingest worker",
	Long: `Starts the HTTP API (ENABLE_API) and the NSQ ingest worker
(ENABLE_INGEST_WORKER) against Postgres, the configured index and the
configured model providers.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		return err
	}
	defer deps.Close(context.Background())

	application, err := app.New(cfg, deps.DB, deps.Index.Store, deps.Gateways, deps.NSQProducer, version)
	if err != nil {
		return err
	}

	return application.Run(ctx)
}
