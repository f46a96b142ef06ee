package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"logsift/internal/apperr"
	"logsift/internal/metrics"
	"logsift/internal/model"
	"logsift/internal/service/dedup"
	"logsift/internal/service/journal"
	"logsift/internal/service/pipeline"
	"logsift/internal/service/tail"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// APISource is the journal source recorded for lines scored over HTTP
const APISource = "api"

// Journal records and lists anomalies. A nil Journal disables recording.
type Journal interface {
	Record(ctx context.Context, source string, lines []model.ScoredLine) ([]journal.Entry, error)
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Settings are the request defaults. They can be swapped at runtime when the
// config file changes.
type Settings struct {
	Threshold float64
	TopK      int
	Workers   int
	Tiers     model.Tiers

	PollInterval  time.Duration
	Dedup         bool
	DedupCapacity uint
	DedupFPRate   float64

	// WatchRoot is the directory stream clients may tail. Empty disables
	// streaming.
	WatchRoot string
}

// A nil CheckOrigin rejects cross-origin upgrades.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// AnomalyController serves scoring, explanation and journal endpoints
type AnomalyController struct {
	engine  *pipeline.Engine
	journal Journal
	logger  *zap.Logger

	mu       sync.RWMutex
	settings Settings
}

// NewAnomalyController creates a controller over a loaded engine
func NewAnomalyController(engine *pipeline.Engine, j Journal, settings Settings, logger *zap.Logger) *AnomalyController {
	return &AnomalyController{
		engine:   engine,
		journal:  j,
		settings: settings,
		logger:   logger,
	}
}

// UpdateSettings replaces the request defaults
func (ac *AnomalyController) UpdateSettings(s Settings) {
	ac.mu.Lock()
	ac.settings = s
	ac.mu.Unlock()
	ac.logger.Info("Updated scoring settings",
		zap.Float64("threshold", s.Threshold),
		zap.Int("top_k", s.TopK),
		zap.Float64("moderate", s.Tiers.Moderate),
		zap.Float64("severe", s.Tiers.Severe))
}

// Settings returns the current request defaults
func (ac *AnomalyController) Settings() Settings {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.settings
}

// respondError maps configuration errors to 400 and everything else to 500
func respondError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, apperr.ErrConfiguration) {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": msg, "details": err.Error()})
}

type ScoreRequest struct {
	Lines     []string `json:"lines" binding:"required"`
	Threshold *float64 `json:"threshold"`
	TopK      *int     `json:"top_k"`
}

// Score handles POST /api/v1/score
func (ac *AnomalyController) Score(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	s := ac.Settings()
	opts := pipeline.ScoreOptions{
		Threshold: s.Threshold,
		TopK:      s.TopK,
		Workers:   s.Workers,
		Tiers:     s.Tiers,
		Mode:      metrics.ModeAPI,
	}
	if req.Threshold != nil {
		opts.Threshold = *req.Threshold
	}
	if req.TopK != nil {
		opts.TopK = *req.TopK
	}

	result, err := ac.engine.ScoreBatch(c.Request.Context(), req.Lines, opts)
	if err != nil {
		respondError(c, "Failed to score lines", err)
		return
	}

	if ac.journal != nil && len(result.Anomalies) > 0 {
		if _, err := ac.journal.Record(c.Request.Context(), APISource, result.Anomalies); err != nil {
			ac.logger.Error("Failed to record anomalies", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, result)
}

type ExplainRequest struct {
	Line string `json:"line" binding:"required"`
}

// Explain handles POST /api/v1/explain
func (ac *AnomalyController) Explain(c *gin.Context) {
	var req ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ac.engine.Explain(req.Line, ac.Settings().Tiers))
}

// Model handles GET /api/v1/model
func (ac *AnomalyController) Model(c *gin.Context) {
	s := ac.Settings()
	c.JSON(http.StatusOK, gin.H{
		"manifest":  ac.engine.Manifest(),
		"model":     ac.engine.Scorer().Model().Stats(),
		"stats":     ac.engine.Stats(),
		"threshold": s.Threshold,
		"top_k":     s.TopK,
		"tiers":     s.Tiers,
	})
}

// Anomalies handles GET /api/v1/anomalies?limit=
func (ac *AnomalyController) Anomalies(c *gin.Context) {
	if ac.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "anomaly journal is not configured"})
		return
	}

	limit := journal.DefaultRecentLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := ac.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "Failed to read journal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"anomalies": entries, "count": len(entries)})
}

// WatchStream handles GET /api/v1/watch/stream?path=&from_start=. It tails
// path and pushes every anomaly to the websocket as JSON until the client
// disconnects.
func (ac *AnomalyController) WatchStream(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	fromStart, _ := strconv.ParseBool(c.Query("from_start"))

	s := ac.Settings()
	if s.WatchRoot == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "watch streaming is not configured"})
		return
	}
	path, err := resolveWatchPath(s.WatchRoot, path)
	if err != nil {
		ac.logger.Warn("Rejected watch path", zap.String("path", c.Query("path")), zap.String("client_ip", c.ClientIP()), zap.Error(err))
		respondError(c, "Invalid watch path", err)
		return
	}

	follower, err := tail.Follow(path, tail.Options{FromStart: fromStart, PollInterval: s.PollInterval}, ac.logger)
	if err != nil {
		respondError(c, "Failed to open log file", err)
		return
	}
	defer follower.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ac.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// the read loop only exists to notice the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	opts := pipeline.WatchOptions{Threshold: s.Threshold, Tiers: s.Tiers}
	if s.Dedup {
		opts.Dedup = dedup.NewSuppressor(s.DedupCapacity, s.DedupFPRate)
	}

	ac.logger.Info("Streaming anomalies", zap.String("path", path), zap.String("client_ip", c.ClientIP()))
	err = ac.engine.Watch(ctx, follower, opts, func(l model.ScoredLine) error {
		if ac.journal != nil {
			if _, err := ac.journal.Record(ctx, path, []model.ScoredLine{l}); err != nil {
				ac.logger.Error("Failed to record anomaly", zap.Error(err))
			}
		}
		return conn.WriteJSON(gin.H{
			"line_no":  l.LineNo,
			"line":     l.Line,
			"nll":      l.NLL,
			"z":        l.Z,
			"severity": s.Tiers.Classify(l.Z),
		})
	})
	if err != nil {
		ac.logger.Warn("Anomaly stream ended", zap.String("path", path), zap.Error(err))
		return
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// resolveWatchPath resolves path against root, following symlinks, and
// rejects anything that ends up outside root.
func resolveWatchPath(root, path string) (string, error) {
	realRoot, err := filepath.Abs(root)
	if err == nil {
		realRoot, err = filepath.EvalSymlinks(realRoot)
	}
	if err != nil {
		return "", fmt.Errorf("watch root %s: %v: %w", root, err, apperr.ErrConfiguration)
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(realRoot, path)
	}
	realPath, err := filepath.EvalSymlinks(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", path, err, apperr.ErrConfiguration)
	}

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the watch root: %w", path, apperr.ErrConfiguration)
	}
	return realPath, nil
}
