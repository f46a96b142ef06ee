package graph

import (
	"context"
	"errors"
	"math"
	"testing"

	"logsift/internal/apperr"
	"logsift/internal/config"
	"logsift/internal/service/ngram"
	"logsift/internal/service/tokenizer"

	"go.uber.org/zap"
)

func newTestScorer(t *testing.T, lines []string) *ngram.Scorer {
	t.Helper()
	m, err := ngram.Train(lines, tokenizer.NewLogTokenizer())
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	scorer, err := ngram.NewScorer(m, nil, nil)
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}
	return scorer
}

func TestKuzuDatabase_BasicFunctionality(t *testing.T) {
	db, err := NewKuzuDatabase(InMemory, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create Kuzu database: %v", err)
	}
	defer db.Close(context.Background())

	ctx := context.Background()
	if err := db.VerifyConnectivity(ctx); err != nil {
		t.Fatalf("Failed to verify connectivity: %v", err)
	}

	records, err := db.ExecuteRead(ctx, "RETURN 1 AS test", nil)
	if err != nil {
		t.Fatalf("Failed to execute simple query: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0]["test"] != int64(1) {
		t.Fatalf("Expected test=1, got %v", records[0]["test"])
	}
}

func TestKuzuDatabase_ParameterizedQuery(t *testing.T) {
	db, err := NewKuzuDatabase(InMemory, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create Kuzu database: %v", err)
	}
	defer db.Close(context.Background())

	ctx := context.Background()
	if _, err := db.ExecuteWrite(ctx, "CREATE (t:Token {name: $name, freq: $freq})", map[string]any{"name": "error", "freq": int64(7)}); err != nil {
		t.Fatalf("Failed to create token: %v", err)
	}

	records, err := db.ExecuteRead(ctx, "MATCH (t:Token) WHERE t.name = $name RETURN t.freq AS freq", map[string]any{"name": "error"})
	if err != nil {
		t.Fatalf("Failed to read token: %v", err)
	}
	if len(records) != 1 || records[0]["freq"] != int64(7) {
		t.Fatalf("Expected one record with freq 7, got %v", records)
	}
}

func TestBigramGraph_ExportAndSuccessors(t *testing.T) {
	ctx := context.Background()
	db, err := NewKuzuDatabase(InMemory, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create Kuzu database: %v", err)
	}
	defer db.Close(ctx)

	scorer := newTestScorer(t, []string{"a b", "a b", "a c", "b c"})
	g := NewBigramGraph(db, zap.NewNop())

	res, err := g.Export(ctx, scorer)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if res.Tokens != 3 || res.Bigrams != 3 {
		t.Fatalf("Expected 3 tokens and 3 bigrams, got %+v", res)
	}

	n, err := g.TokenCount(ctx)
	if err != nil {
		t.Fatalf("TokenCount failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("Expected 3 token nodes, got %d", n)
	}

	successors, err := g.TopSuccessors(ctx, "a", 5)
	if err != nil {
		t.Fatalf("TopSuccessors failed: %v", err)
	}
	if len(successors) != 2 {
		t.Fatalf("Expected 2 successors of a, got %v", successors)
	}
	if successors[0].Token != "b" || successors[0].Count != 2 {
		t.Errorf("Expected b with count 2 first, got %+v", successors[0])
	}
	if successors[1].Token != "c" || successors[1].Count != 1 {
		t.Errorf("Expected c with count 1 second, got %+v", successors[1])
	}
	if want := scorer.BigramProbability("a", "b"); math.Abs(successors[0].Probability-want) > 1e-12 {
		t.Errorf("Expected prob %v, got %v", want, successors[0].Probability)
	}

	limited, err := g.TopSuccessors(ctx, "a", 1)
	if err != nil {
		t.Fatalf("TopSuccessors failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected limit of 1, got %d", len(limited))
	}

	none, err := g.TopSuccessors(ctx, "c", 5)
	if err != nil {
		t.Fatalf("TopSuccessors failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected c to have no successors, got %v", none)
	}
}

func TestBigramGraph_ExportReplaces(t *testing.T) {
	ctx := context.Background()
	db, err := NewKuzuDatabase(InMemory, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create Kuzu database: %v", err)
	}
	defer db.Close(ctx)

	g := NewBigramGraph(db, zap.NewNop())
	if _, err := g.Export(ctx, newTestScorer(t, []string{"x y z", "w"})); err != nil {
		t.Fatalf("first Export failed: %v", err)
	}
	if _, err := g.Export(ctx, newTestScorer(t, []string{"p q"})); err != nil {
		t.Fatalf("second Export failed: %v", err)
	}

	n, err := g.TokenCount(ctx)
	if err != nil {
		t.Fatalf("TokenCount failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 token nodes after re-export, got %d", n)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.GraphConfig{Backend: "dgraph"}, zap.NewNop())
	if !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("Expected configuration error, got %v", err)
	}
}

func TestOpen_Kuzu(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, config.GraphConfig{Backend: config.GraphBackendKuzu, Kuzu: config.KuzuConfig{Path: InMemory}}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close(ctx)
	if _, ok := db.(*KuzuDatabase); !ok {
		t.Fatalf("Expected *KuzuDatabase, got %T", db)
	}
}
