package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"logsift/internal/metrics"
	"logsift/internal/model"
	"logsift/internal/render"
	"logsift/internal/service/pipeline"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// AnomalyServer exposes the scoring engine as MCP tools over streamable HTTP
type AnomalyServer struct {
	server  *mcp.Server
	engine  *pipeline.Engine
	tiers   func() model.Tiers
	logger  *zap.Logger
	handler *mcp.StreamableHTTPHandler
}

type LineParams struct {
	Line string `json:"line" jsonschema:"a single raw log line"`
}

type ModelStatsParams struct{}

// NewAnomalyServer registers the tools. tiers is consulted on every call so
// configuration reloads take effect without restarting the server.
func NewAnomalyServer(engine *pipeline.Engine, tiers func() model.Tiers, logger *zap.Logger) *AnomalyServer {
	s := &AnomalyServer{
		engine: engine,
		tiers:  tiers,
		logger: logger,
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "logsift",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "score_line",
		Description: "Score a log line against the trained model. Returns its negative log-likelihood, robust z-score and severity tier",
	}, s.handleScoreLine)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "explain_line",
		Description: "Break a log line's score down into the unigram and bigram terms that make it up, in token order",
	}, s.handleExplainLine)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "model_stats",
		Description: "Describe the loaded model: vocabulary size, token and bigram totals, and the robust score statistics",
	}, s.handleModelStats)

	s.handler = mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return mcpServer
	}, nil)
	s.server = mcpServer
	return s
}

// Handler returns the streamable HTTP handler
func (s *AnomalyServer) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves the MCP endpoint on address until ctx is done
func (s *AnomalyServer) ListenAndServe(ctx context.Context, address string) error {
	srv := &http.Server{Addr: address, Handler: s.handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("MCP server listening", zap.String("address", address))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func (s *AnomalyServer) handleScoreLine(ctx context.Context, req *mcp.CallToolRequest, args LineParams) (*mcp.CallToolResult, any, error) {
	start := time.Now()
	scored := s.engine.ScoreLine(1, args.Line)
	metrics.LinesScored.WithLabelValues(metrics.ModeMCP).Inc()
	metrics.ScoreDuration.WithLabelValues(metrics.ModeMCP).Observe(time.Since(start).Seconds())

	severity := s.tiers().Classify(scored.Z)
	s.logger.Debug("Scored line over MCP", zap.Float64("z", scored.Z), zap.String("severity", string(severity)))

	return textResult(fmt.Sprintf("nll: %.4f\nz: %.4f\nseverity: %s", scored.NLL, scored.Z, severity)), nil, nil
}

func (s *AnomalyServer) handleExplainLine(ctx context.Context, req *mcp.CallToolRequest, args LineParams) (*mcp.CallToolResult, any, error) {
	explanation := s.engine.Explain(args.Line, s.tiers())

	var b strings.Builder
	if err := render.NewTerminal(&b, s.tiers()).Explain(explanation); err != nil {
		s.logger.Error("Failed to format explanation", zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to format explanation: %v", err)), nil, nil
	}
	return textResult(b.String()), nil, nil
}

func (s *AnomalyServer) handleModelStats(ctx context.Context, req *mcp.CallToolRequest, args ModelStatsParams) (*mcp.CallToolResult, any, error) {
	m := s.engine.Scorer().Model().Stats()
	st := s.engine.Stats()
	manifest := s.engine.Manifest()

	var b strings.Builder
	fmt.Fprintf(&b, "tokenizer: %s\n", manifest.Tokenizer)
	fmt.Fprintf(&b, "lines trained: %d\n", manifest.LinesTrained)
	fmt.Fprintf(&b, "vocabulary: %d\n", m.VocabularySize)
	fmt.Fprintf(&b, "tokens: %d\n", m.TotalUnigrams)
	fmt.Fprintf(&b, "bigram types: %d\n", m.BigramTypes)
	fmt.Fprintf(&b, "bigrams: %d\n", m.TotalBigrams)
	fmt.Fprintf(&b, "p25: %.4f\np50: %.4f\np75: %.4f\nmad: %.4f\n", st.P25, st.P50, st.P75, st.MAD)
	return textResult(b.String()), nil, nil
}
