package cli

import (
	"time"

	"logsift/internal/render"
	"logsift/internal/report"
	"logsift/internal/service/pipeline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScoreCmd(a *app) *cobra.Command {
	var (
		threshold  float64
		topK       int
		workers    int
		reportPath string
	)
	cmd := &cobra.Command{
		Use:   "score <input>",
		Short: "Rank the most anomalous lines of a log file",
		Long:  "Score every line of the input against the trained model and print the top lines whose robust z-score reaches the threshold, most anomalous first.",
		Example: `  logsift score app.log
  logsift score app.log --threshold 3 --top-k 50 --report anomalies.html
  journalctl -u app | logsift score -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.ScoreOptions{
				Threshold: a.cfg.Score.Threshold,
				TopK:      a.cfg.Score.TopK,
				Workers:   a.cfg.App.Workers,
				Tiers:     a.tiers(),
			}
			if cmd.Flags().Changed("threshold") {
				opts.Threshold = threshold
			}
			if cmd.Flags().Changed("top-k") {
				opts.TopK = topK
			}
			if cmd.Flags().Changed("workers") {
				opts.Workers = workers
			}

			engine, err := a.loadEngine()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			input := args[0]
			var res *pipeline.ScoreResult
			if input == pipeline.StdinPath {
				res, err = engine.ScoreReader(ctx, a.stdin, opts)
			} else {
				res, err = engine.ScoreFile(ctx, input, opts)
			}
			if err != nil {
				return err
			}

			j, err := a.openJournal(ctx)
			if err != nil {
				return err
			}
			if j != nil {
				defer j.Close()
				if _, err := j.Record(ctx, input, res.Anomalies); err != nil {
					a.logger.Error("Failed to record anomalies", zap.Error(err))
				}
			}

			if reportPath != "" {
				err := report.WriteFile(reportPath, report.Report{
					Title:          "logsift anomaly report",
					Source:         input,
					GeneratedAt:    time.Now(),
					Threshold:      res.Threshold,
					TopK:           res.TopK,
					Scored:         res.Scored,
					AboveThreshold: res.AboveThreshold,
					Stats:          engine.Stats(),
					Tiers:          opts.Tiers,
					Lines:          res.Anomalies,
				})
				if err != nil {
					return err
				}
				a.printf("%d of %d lines at or above z %.2f, report written to %s\n", res.AboveThreshold, res.Scored, res.Threshold, reportPath)
				return nil
			}

			return render.NewTerminal(a.stdout, opts.Tiers).Ranked(res.Anomalies)
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", pipeline.DefaultThreshold, "minimum robust z-score to report")
	cmd.Flags().IntVar(&topK, "top-k", pipeline.DefaultTopK, "maximum number of lines to report, 0 for all")
	cmd.Flags().IntVar(&workers, "workers", 1, "parallel scoring workers")
	cmd.Flags().StringVar(&reportPath, "report", "", "write an HTML report to this path instead of printing")
	return cmd
}
