package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"logsift/internal/config"
	"logsift/internal/logging"
	"logsift/internal/model"
	"logsift/internal/service/journal"
	"logsift/internal/service/pipeline"
	"logsift/internal/service/store"
	"logsift/internal/service/tokenizer"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	configPath string
	modelDir   string
	logLevel   string

	loader   *config.Loader
	cfg      *config.Config
	logger   *zap.Logger
	registry *tokenizer.Registry

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdin, os.Stdout, os.Stderr)
}

func NewRootCommandWithIO(in io.Reader, out, errOut io.Writer) *cobra.Command {
	return newRootCommand(in, out, errOut)
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{
		registry: tokenizer.NewRegistry(),
		stdin:    in,
		stdout:   out,
		stderr:   errOut,
	}

	cmd := &cobra.Command{
		Use:           "logsift",
		Short:         "Statistical anomaly detection for log lines",
		Long:          "logsift learns token and bigram frequencies from a corpus of normal logs and ranks new lines by how surprising they are.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&a.modelDir, "model-dir", "", "model directory (overrides app.model_dir)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.init()
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, _ []string) {
		if a.logger != nil {
			_ = a.logger.Sync()
		}
	}

	cmd.AddCommand(
		newTrainCmd(a),
		newScoreCmd(a),
		newWatchCmd(a),
		newExplainCmd(a),
		newServeCmd(a),
		newExportGraphCmd(a),
		newJournalCmd(a),
	)
	return cmd
}

// init loads configuration, applies global flag overrides and builds the logger
func (a *app) init() error {
	loader, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.loader = loader
	a.cfg = loader.Get()
	a.applyGlobalFlags(a.cfg)

	logger, err := logging.New(a.cfg.App.LogLevel, logging.DefaultFileOptions(a.cfg.App.LogFile))
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func (a *app) applyGlobalFlags(cfg *config.Config) {
	if a.modelDir != "" {
		cfg.App.ModelDir = a.modelDir
	}
	if a.logLevel != "" {
		cfg.App.LogLevel = a.logLevel
	}
}

func (a *app) store() *store.ModelStore {
	return store.NewModelStore(a.cfg.App.ModelDir, a.logger)
}

func (a *app) loadEngine() (*pipeline.Engine, error) {
	return pipeline.LoadEngine(a.store(), a.registry, a.logger)
}

func (a *app) tiers() model.Tiers {
	return model.Tiers{Moderate: a.cfg.Report.Moderate, Severe: a.cfg.Report.Severe}
}

// openJournal opens the configured journal, or returns nil when none is set
func (a *app) openJournal(ctx context.Context) (*journal.Journal, error) {
	if a.cfg.Journal.Path == "" {
		return nil, nil
	}
	return journal.Open(ctx, a.cfg.Journal.Path, a.logger)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}
