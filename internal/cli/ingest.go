package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/app"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/config"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/ingest"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/worker"
)

var (
	ingestFile string
	ingestIDs  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest bills into the index",
	Long: `Reads a CSV file, a PDF, a text file or a directory of them, chunks every
document, embeds the chunks and writes them to the configured index.
The CSV needs a "text" column; "title" and "id" or "bill_id" are optional.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "CSV, PDF or text file, or a directory of them")
	ingestCmd.Flags().StringVar(&ingestIDs, "ids", "", "chunk id strategy: random or deterministic (default from ID_STRATEGY)")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}

// openIngester is replaced in tests.
var openIngester = func(ctx context.Context, cfg *config.Config, ids ingest.IDStrategy) (worker.Ingester, func(), error) {
	idx, err := app.OpenIndex(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeIdx := func() { _ = idx.Close(context.Background()) }

	gw, err := app.OpenGateways(ctx, cfg)
	if err != nil {
		closeIdx()
		return nil, nil, err
	}

	p, err := app.PipelineFactory(cfg, gw.Embedder, idx.Store)(ids)
	if err != nil {
		closeIdx()
		return nil, nil, err
	}
	return p, closeIdx, nil
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	strategy := cfg.IDStrategy
	if ingestIDs != "" {
		strategy = ingestIDs
	}
	ids, err := ingest.ParseIDStrategy(strategy)
	if err != nil {
		return err
	}

	docs, err := ingest.Load(ingestFile)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, closeFn, err := openIngester(ctx, cfg, ids)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := p.Run(ctx, docs)
	if err != nil {
		var runErr *ingest.RunError
		if errors.As(err, &runErr) {
			cmd.PrintErrf("Ingestion stopped after %d chunks\n", runErr.Committed)
		}
		return fmt.Errorf("ingestion failed: %w", err)
	}

	cmd.Printf("Ingested %d chunks\n", report.Chunks)
	if report.Skipped > 0 {
		cmd.Printf("Skipped %d blank chunks\n", report.Skipped)
	}
	return nil
}
