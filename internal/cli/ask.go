package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/app"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/config"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/retrieval"
)

var (
	askTopK int
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the ingested bills",
	Long: `Retrieves the bill chunks closest to the question and answers from them
alone. When nothing relevant is indexed the answer says so.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from DEFAULT_TOP_K)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer and sources as JSON")
	rootCmd.AddCommand(askCmd)
}

type asker interface {
	Ask(ctx context.Context, req retrieval.AskRequest) (*retrieval.AskResponse, error)
}

// openAsker is replaced in tests.
var openAsker = func(ctx context.Context, cfg *config.Config) (asker, func(), error) {
	idx, err := app.OpenIndex(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	gw, err := app.OpenGateways(ctx, cfg)
	if err != nil {
		_ = idx.Close(context.Background())
		return nil, nil, err
	}

	queryLog, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		queryLog = nil
	}
	svc := retrieval.NewService(gw.Embedder, idx.Store, gw.Completer, queryLog, retrieval.Options{
		DefaultTopK: cfg.DefaultTopK,
		Temperature: cfg.Temperature,
	})
	return svc, func() {
		if queryLog != nil {
			_ = queryLog.Close()
		}
		_ = idx.Close(context.Background())
	}, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	req := retrieval.AskRequest{Question: args[0]}
	if cmd.Flags().Changed("top-k") {
		k := askTopK
		req.TopK = &k
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout := cfg.RequestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	a, closeFn, err := openAsker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	resp, err := a.Ask(ctx, req)
	if err != nil {
		return err
	}

	if askJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(resp.Answer)
	if len(resp.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, s := range resp.Sources {
			cmd.Printf("  [%d] %s (%s, chunk %d, distance %.4f)\n", i+1, s.Title, s.BillID, s.ChunkIndex, s.Score)
		}
	}
	return nil
}
