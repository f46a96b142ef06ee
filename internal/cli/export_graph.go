package cli

import (
	"fmt"

	"logsift/internal/apperr"
	"logsift/internal/config"
	"logsift/internal/service/graph"

	"github.com/spf13/cobra"
)

func newExportGraphCmd(a *app) *cobra.Command {
	var (
		backend    string
		kuzuPath   string
		successors string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "export-graph",
		Short: "Export the bigram model as a token graph",
		Long:  "Write every vocabulary token as a Token node and every bigram as a FOLLOWS edge, with its count and smoothed probability, into Kuzu or Neo4j.",
		Example: `  logsift export-graph --backend kuzu --kuzu-path ./bigrams.kuzu
  logsift export-graph --backend neo4j --successors error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gc := a.cfg.Graph
			if cmd.Flags().Changed("backend") {
				gc.Backend = backend
			}
			if cmd.Flags().Changed("kuzu-path") {
				gc.Kuzu.Path = kuzuPath
			}
			if gc.Backend != config.GraphBackendKuzu && gc.Backend != config.GraphBackendNeo4j {
				return fmt.Errorf("unknown graph backend %q: %w", gc.Backend, apperr.ErrConfiguration)
			}

			engine, err := a.loadEngine()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			db, err := graph.Open(ctx, gc, a.logger)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			g := graph.NewBigramGraph(db, a.logger)
			res, err := g.Export(ctx, engine.Scorer())
			if err != nil {
				return err
			}
			a.printf("exported %d tokens and %d bigrams to %s\n", res.Tokens, res.Bigrams, gc.Backend)

			if successors == "" {
				return nil
			}
			top, err := g.TopSuccessors(ctx, successors, limit)
			if err != nil {
				return err
			}
			a.printf("most frequent successors of %q:\n", successors)
			for _, s := range top {
				a.printf("  %-24s %8d  %.6f\n", s.Token, s.Count, s.Probability)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", config.GraphBackendKuzu, "graph backend: kuzu or neo4j")
	cmd.Flags().StringVar(&kuzuPath, "kuzu-path", "", "Kuzu database path, :memory: for in-memory")
	cmd.Flags().StringVar(&successors, "successors", "", "after exporting, list the most frequent successors of this token")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of successors to list")
	return cmd
}
