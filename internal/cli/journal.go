package cli

import (
	"fmt"

	"logsift/internal/apperr"
	"logsift/internal/service/journal"

	"github.com/spf13/cobra"
)

func newJournalCmd(a *app) *cobra.Command {
	var (
		limit int
		path  string
	)
	cmd := &cobra.Command{
		Use:     "journal",
		Short:   "List recently recorded anomalies",
		Example: `  logsift journal --limit 20`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("path") {
				a.cfg.Journal.Path = path
			}
			if a.cfg.Journal.Path == "" {
				return fmt.Errorf("no journal configured, set journal.path or --path: %w", apperr.ErrConfiguration)
			}

			j, err := journal.Open(cmd.Context(), a.cfg.Journal.Path, a.logger)
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				a.printf("no anomalies recorded\n")
				return nil
			}
			for _, e := range entries {
				a.printf("%s  %-20s %6d  z %7.2f  %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Source, e.LineNo, e.Z, e.Line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", journal.DefaultRecentLimit, "number of entries to show")
	cmd.Flags().StringVar(&path, "path", "", "journal database (overrides journal.path)")
	return cmd
}
