package cli

import (
	"time"

	"logsift/internal/service/pipeline"

	"github.com/spf13/cobra"
)

func newTrainCmd(a *app) *cobra.Command {
	var (
		minCount  int64
		workers   int
		tokenizer string
	)
	cmd := &cobra.Command{
		Use:   "train <corpus>",
		Short: "Build a model from a corpus of normal log lines",
		Long:  "Count token and bigram frequencies in the corpus, prune rare tokens, score the corpus against the result to derive robust statistics, and save everything to the model directory.",
		Example: `  logsift train /var/log/app/normal.log --model-dir ./model
  cat *.log | logsift train - --min-count 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.TrainOptions{
				CorpusPath: args[0],
				MinCount:   a.cfg.Train.MinCount,
				Workers:    a.cfg.App.Workers,
				Tokenizer:  a.cfg.Train.Tokenizer,
			}
			if opts.CorpusPath == pipeline.StdinPath {
				opts.Input = a.stdin
			}
			if cmd.Flags().Changed("min-count") {
				opts.MinCount = minCount
			}
			if cmd.Flags().Changed("workers") {
				opts.Workers = workers
			}
			if cmd.Flags().Changed("tokenizer") {
				opts.Tokenizer = tokenizer
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			res, err := pipeline.NewTrainer(a.store(), a.registry, a.logger).Train(ctx, opts)
			if err != nil {
				return err
			}

			m := res.Manifest.Model
			a.printf("trained on %d lines in %s\n", res.Manifest.LinesTrained, res.Duration.Round(time.Millisecond))
			a.printf("vocabulary %d, tokens %d, bigram types %d\n", m.VocabularySize, m.TotalUnigrams, m.BigramTypes)
			if res.PrunedUnigrams > 0 || res.PrunedBigrams > 0 {
				a.printf("pruned %d tokens and %d bigrams below count %d\n", res.PrunedUnigrams, res.PrunedBigrams, opts.MinCount)
			}
			a.printf("p25 %.4f  p50 %.4f  p75 %.4f  mad %.4f\n", res.Stats.P25, res.Stats.P50, res.Stats.P75, res.Stats.MAD)
			a.printf("model written to %s\n", a.cfg.App.ModelDir)
			return nil
		},
	}
	cmd.Flags().Int64Var(&minCount, "min-count", 1, "drop tokens seen fewer times than this")
	cmd.Flags().IntVar(&workers, "workers", 1, "parallel counting workers")
	cmd.Flags().StringVar(&tokenizer, "tokenizer", "", "tokenizer name")
	return cmd
}
