package cli

import (
	"fmt"
	"strings"

	"logsift/internal/apperr"
	"logsift/internal/render"
	"logsift/internal/util"

	"github.com/spf13/cobra"
)

func newExplainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explain [line]",
		Short: "Show which tokens and bigrams make a line surprising",
		Long:  "Break the negative log-likelihood of a single line down into its unigram and bigram terms, in token order, together with the line's z-score and severity. Without arguments the line is read from standard input.",
		Example: `  logsift explain "user alice logged in from 10.0.0.7"
  logsift explain kernel panic not syncing
  tail -n 1 app.log | logsift explain`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line := strings.Join(args, " ")
			if len(args) == 0 {
				var err error
				if line, err = a.readStdinLine(); err != nil {
					return err
				}
			}
			engine, err := a.loadEngine()
			if err != nil {
				return err
			}
			return render.NewTerminal(a.stdout, a.tiers()).Explain(engine.Explain(line, a.tiers()))
		},
	}
}

// readStdinLine returns the first line of standard input
func (a *app) readStdinLine() (string, error) {
	scanner := util.NewLineScanner(a.stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read line from stdin: %v: %w", err, apperr.ErrIO)
	}
	return "", fmt.Errorf("no line given and stdin is empty: %w", apperr.ErrConfiguration)
}
