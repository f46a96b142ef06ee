package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"logsift/internal/apperr"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. LOGSIFT_SCORE_THRESHOLD
const EnvPrefix = "LOGSIFT"

// Graph backends
const (
	GraphBackendKuzu  = "kuzu"
	GraphBackendNeo4j = "neo4j"
)

type AppConfig struct {
	ModelDir string `mapstructure:"model_dir" yaml:"model_dir"`
	Workers  int    `mapstructure:"workers" yaml:"workers"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
}

type TrainConfig struct {
	MinCount  int64  `mapstructure:"min_count" yaml:"min_count"`
	Tokenizer string `mapstructure:"tokenizer" yaml:"tokenizer"`
}

type ScoreConfig struct {
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
	TopK      int     `mapstructure:"top_k" yaml:"top_k"`
}

// ReportConfig holds the z-score boundaries of the severity tiers
type ReportConfig struct {
	Moderate float64 `mapstructure:"moderate" yaml:"moderate"`
	Severe   float64 `mapstructure:"severe" yaml:"severe"`
}

type WatchConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	FromStart     bool          `mapstructure:"from_start" yaml:"from_start"`
	Dedup         bool          `mapstructure:"dedup" yaml:"dedup"`
	DedupCapacity uint          `mapstructure:"dedup_capacity" yaml:"dedup_capacity"`
	DedupFPRate   float64       `mapstructure:"dedup_fp_rate" yaml:"dedup_fp_rate"`
	// Root confines the files the HTTP stream endpoint may tail. Empty
	// disables the endpoint.
	Root string `mapstructure:"root" yaml:"root"`
}

type ServerConfig struct {
	Port    int `mapstructure:"port" yaml:"port"`
	MCPPort int `mapstructure:"mcp_port" yaml:"mcp_port"`
}

// JournalConfig locates the anomaly journal. An empty path disables it.
type JournalConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type KuzuConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type Neo4jConfig struct {
	URI      string `mapstructure:"uri" yaml:"uri"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

type GraphConfig struct {
	Backend string      `mapstructure:"backend" yaml:"backend"`
	Kuzu    KuzuConfig  `mapstructure:"kuzu" yaml:"kuzu"`
	Neo4j   Neo4jConfig `mapstructure:"neo4j" yaml:"neo4j"`
}

type Config struct {
	App     AppConfig     `mapstructure:"app" yaml:"app"`
	Train   TrainConfig   `mapstructure:"train" yaml:"train"`
	Score   ScoreConfig   `mapstructure:"score" yaml:"score"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
	Graph   GraphConfig   `mapstructure:"graph" yaml:"graph"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.model_dir":        "model",
		"app.workers":          runtime.NumCPU(),
		"app.log_level":        "info",
		"app.log_file":         "",
		"train.min_count":      1,
		"train.tokenizer":      "log",
		"score.threshold":      2.5,
		"score.top_k":          200,
		"report.moderate":      2.5,
		"report.severe":        3.5,
		"watch.poll_interval":  time.Second,
		"watch.from_start":     false,
		"watch.dedup":          false,
		"watch.dedup_capacity": 100000,
		"watch.dedup_fp_rate":  0.001,
		"watch.root":           "",
		"server.port":          8080,
		"server.mcp_port":      8081,
		"journal.path":         "",
		"graph.backend":        GraphBackendKuzu,
		"graph.kuzu.path":      "bigrams.kuzu",
		"graph.neo4j.uri":      "bolt://localhost:7687",
		"graph.neo4j.username": "neo4j",
		"graph.neo4j.password": "",
	}
}

// Default returns the configuration used when no file or env override is present
func Default() *Config {
	cfg, err := newLoader("").unmarshal()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Loader reads configuration from an optional YAML file, LOGSIFT_* env vars
// and built-in defaults, in decreasing precedence of env, file, default.
type Loader struct {
	v    *viper.Viper
	path string

	mu  sync.RWMutex
	cfg *Config
}

func newLoader(path string) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	return &Loader{v: v, path: path}
}

// Load reads .env (if present) then the config file at path. An empty path
// means defaults plus environment only; a named file that does not exist is an
// error.
func Load(path string) (*Loader, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %v: %w", err, apperr.ErrConfiguration)
	}

	l := newLoader(path)
	if path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %v: %w", path, err, apperr.ErrConfiguration)
		}
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l.cfg = cfg
	return l, nil
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %v: %w", err, apperr.ErrConfiguration)
	}
	return &cfg, nil
}

// Get returns the current configuration
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Path returns the config file in use, empty when none
func (l *Loader) Path() string {
	return l.path
}

// Watch reloads the config file whenever it changes and passes every valid
// result to onChange. Invalid edits are reported through onError and leave the
// current configuration in place. Without a config file Watch does nothing.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	if l.path == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.unmarshal()
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		l.mu.Lock()
		l.cfg = cfg
		l.mu.Unlock()
		if onChange != nil {
			onChange(cfg)
		}
	})
	l.v.WatchConfig()
}

// Validate checks values that would otherwise fail deep inside a pipeline
func (c *Config) Validate() error {
	var errs []string

	if c.App.ModelDir == "" {
		errs = append(errs, "app.model_dir must be set")
	}
	if c.App.Workers < 1 {
		errs = append(errs, "app.workers must be at least 1")
	}
	if c.Train.MinCount < 1 {
		errs = append(errs, "train.min_count must be at least 1")
	}
	if c.Report.Moderate <= 0 || c.Report.Severe <= 0 {
		errs = append(errs, "report tiers must be positive")
	}
	if c.Report.Moderate > c.Report.Severe {
		errs = append(errs, "report.moderate must not exceed report.severe")
	}
	if c.Watch.Dedup {
		if c.Watch.DedupCapacity == 0 {
			errs = append(errs, "watch.dedup_capacity must be positive")
		}
		if c.Watch.DedupFPRate <= 0 || c.Watch.DedupFPRate >= 1 {
			errs = append(errs, "watch.dedup_fp_rate must be in (0, 1)")
		}
	}
	switch c.Graph.Backend {
	case GraphBackendKuzu, GraphBackendNeo4j:
	default:
		errs = append(errs, fmt.Sprintf("unknown graph.backend %q", c.Graph.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s: %w", strings.Join(errs, "\n  - "), apperr.ErrConfiguration)
	}
	return nil
}
