package cli

import (
	"time"

	"logsift/internal/model"
	"logsift/internal/render"
	"logsift/internal/service/dedup"
	"logsift/internal/service/pipeline"
	"logsift/internal/service/tail"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		threshold    float64
		fromStart    bool
		dedupLines   bool
		pollInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <file|->",
		Short: "Follow a log and print anomalous lines as they arrive",
		Long:  "Score each new line of a growing log file (or stdin) and print it immediately when its robust z-score reaches the threshold. Log rotation and truncation are followed.",
		Example: `  logsift watch /var/log/app.log
  logsift watch /var/log/app.log --from-start --dedup
  kubectl logs -f deploy/api | logsift watch -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wc := a.cfg.Watch
			opts := pipeline.WatchOptions{Threshold: a.cfg.Score.Threshold, Tiers: a.tiers()}
			if cmd.Flags().Changed("threshold") {
				opts.Threshold = threshold
			}
			if cmd.Flags().Changed("from-start") {
				wc.FromStart = fromStart
			}
			if cmd.Flags().Changed("dedup") {
				wc.Dedup = dedupLines
			}
			if cmd.Flags().Changed("poll-interval") {
				wc.PollInterval = pollInterval
			}
			if wc.Dedup {
				opts.Dedup = dedup.NewSuppressor(wc.DedupCapacity, wc.DedupFPRate)
			}

			engine, err := a.loadEngine()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			input := args[0]
			var src pipeline.LineSource
			if input == pipeline.StdinPath {
				rs := tail.NewReaderSource(a.stdin)
				defer rs.Close()
				src = rs
			} else {
				follower, err := tail.Follow(input, tail.Options{FromStart: wc.FromStart, PollInterval: wc.PollInterval}, a.logger)
				if err != nil {
					return err
				}
				defer follower.Close()
				src = follower
			}

			j, err := a.openJournal(ctx)
			if err != nil {
				return err
			}
			if j != nil {
				defer j.Close()
			}

			term := render.NewTerminal(a.stdout, opts.Tiers)
			return engine.Watch(ctx, src, opts, func(l model.ScoredLine) error {
				if j != nil {
					if _, err := j.Record(ctx, input, []model.ScoredLine{l}); err != nil {
						a.logger.Error("Failed to record anomaly", zap.Error(err))
					}
				}
				return term.Line(l)
			})
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", pipeline.DefaultThreshold, "minimum robust z-score to print")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "read the file from the beginning instead of only new lines")
	cmd.Flags().BoolVar(&dedupLines, "dedup", false, "print each distinct anomalous token sequence only once")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", tail.DefaultPollInterval, "fallback polling interval for file changes")
	return cmd
}
