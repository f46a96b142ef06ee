package graph

import (
	"context"
	"fmt"

	"logsift/internal/service/ngram"

	"go.uber.org/zap"
)

const (
	clearQuery = "MATCH (t:Token) DETACH DELETE t"

	mergeTokenQuery = `
		MERGE (t:Token {name: $name})
		SET t.freq = $freq`

	mergeFollowsQuery = `
		MATCH (a:Token {name: $left}), (b:Token {name: $right})
		MERGE (a)-[r:FOLLOWS]->(b)
		SET r.freq = $freq, r.prob = $prob`

	countQuery = `
		MATCH (t:Token)
		RETURN count(*) AS tokens`
)

// Successor is a token that follows another in the exported graph
type Successor struct {
	Token       string  `json:"token"`
	Count       int64   `json:"count"`
	Probability float64 `json:"prob"`
}

// ExportResult summarizes an export
type ExportResult struct {
	Tokens  int `json:"tokens"`
	Bigrams int `json:"bigrams"`
}

// BigramGraph stores a frequency model as a token graph: one Token node per
// vocabulary entry and one FOLLOWS edge per observed bigram.
type BigramGraph struct {
	db     GraphDatabase
	logger *zap.Logger
}

func NewBigramGraph(db GraphDatabase, logger *zap.Logger) *BigramGraph {
	return &BigramGraph{db: db, logger: logger}
}

// Export replaces the graph contents with the model behind scorer. Edge
// probabilities are the scorer's smoothed conditional probabilities.
func (g *BigramGraph) Export(ctx context.Context, scorer *ngram.Scorer) (ExportResult, error) {
	m := scorer.Model()
	var res ExportResult

	if _, err := g.db.ExecuteWrite(ctx, clearQuery, nil); err != nil {
		return res, fmt.Errorf("failed to clear graph: %w", err)
	}

	for _, u := range m.Unigrams() {
		params := map[string]any{"name": u.Token, "freq": u.Count}
		if _, err := g.db.ExecuteWrite(ctx, mergeTokenQuery, params); err != nil {
			return res, fmt.Errorf("failed to write token %q: %w", u.Token, err)
		}
		res.Tokens++
	}

	for _, b := range m.Bigrams() {
		// hand-edited tables may hold bigrams over unknown tokens
		if m.UnigramCount(b.Left) == 0 || m.UnigramCount(b.Right) == 0 {
			continue
		}
		params := map[string]any{
			"left":  b.Left,
			"right": b.Right,
			"freq":  b.Count,
			"prob":  scorer.BigramProbability(b.Left, b.Right),
		}
		if _, err := g.db.ExecuteWrite(ctx, mergeFollowsQuery, params); err != nil {
			return res, fmt.Errorf("failed to write bigram %q %q: %w", b.Left, b.Right, err)
		}
		res.Bigrams++
	}

	g.logger.Info("Exported bigram graph", zap.Int("tokens", res.Tokens), zap.Int("bigrams", res.Bigrams))
	return res, nil
}

// TokenCount returns the number of Token nodes in the graph
func (g *BigramGraph) TokenCount(ctx context.Context) (int64, error) {
	records, err := g.db.ExecuteRead(ctx, countQuery, nil)
	if err != nil {
		return 0, err
	}
	if len(records) != 1 {
		return 0, fmt.Errorf("expected single record, got %d", len(records))
	}
	return toInt64(records[0]["tokens"]), nil
}

// TopSuccessors returns up to limit tokens that follow token, most frequent
// first with ties broken by name.
func (g *BigramGraph) TopSuccessors(ctx context.Context, token string, limit int) ([]Successor, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`
		MATCH (a:Token {name: $name})-[r:FOLLOWS]->(b:Token)
		RETURN b.name AS token, r.freq AS freq, r.prob AS prob
		ORDER BY r.freq DESC, b.name ASC
		LIMIT %d`, limit)

	records, err := g.db.ExecuteRead(ctx, query, map[string]any{"name": token})
	if err != nil {
		return nil, fmt.Errorf("failed to read successors of %q: %w", token, err)
	}

	successors := make([]Successor, 0, len(records))
	for _, r := range records {
		name, _ := r["token"].(string)
		prob, _ := r["prob"].(float64)
		successors = append(successors, Successor{
			Token:       name,
			Count:       toInt64(r["freq"]),
			Probability: prob,
		})
	}
	return successors, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
