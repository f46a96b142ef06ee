package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"logsift/internal/model"
	"logsift/internal/service/stats"

	"golang.org/x/net/html"
)

// collect walks the parsed document and returns every element with tag name
func collect(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func TestRender_TiersAndEscaping(t *testing.T) {
	r := Report{
		Source:         "app.log",
		Threshold:      2.5,
		TopK:           200,
		Scored:         1000,
		AboveThreshold: 3,
		Stats:          stats.RobustStats{P25: 10, P50: 12, P75: 15, MAD: 2},
		Lines: []model.ScoredLine{
			{LineNo: 7, Line: `<script>alert("x")</script>`, NLL: 40, Z: 9.1},
			{LineNo: 3, Line: "disk almost full", NLL: 20, Z: 3.0},
			{LineNo: 9, Line: "slow request", NLL: 18, Z: 2.5},
		},
	}

	var buf bytes.Buffer
	if err := Render(&buf, r); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	doc, err := html.Parse(&buf)
	if err != nil {
		t.Fatalf("generated report is not parseable: %v", err)
	}

	if scripts := collect(doc, "script"); len(scripts) != 0 {
		t.Fatalf("log line was not escaped, found %d script elements", len(scripts))
	}

	var rows []*html.Node
	for _, tr := range collect(doc, "tr") {
		if attr(tr, "class") != "" {
			rows = append(rows, tr)
		}
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	wantClasses := []string{"severe", "moderate", "moderate"}
	for i, row := range rows {
		if got := attr(row, "class"); got != wantClasses[i] {
			t.Errorf("row %d: expected class %q, got %q", i, wantClasses[i], got)
		}
	}
	if !strings.Contains(text(rows[0]), `<script>alert("x")</script>`) {
		t.Errorf("expected original line text in first row, got %q", text(rows[0]))
	}
}

func TestRender_CustomTiersAndEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, Report{
		Tiers: model.Tiers{Moderate: 1, Severe: 2},
		Lines: []model.ScoredLine{{LineNo: 1, Line: "x", Z: 2.2}},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), `<tr class="severe">`) {
		t.Fatalf("expected severe row with custom tiers")
	}

	buf.Reset()
	if err := Render(&buf, Report{}); err != nil {
		t.Fatalf("Render of empty report failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No lines at or above the threshold.") {
		t.Fatalf("expected empty-state message")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	if err := WriteFile(path, Report{Source: "stdin"}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "<!DOCTYPE html>") {
		t.Fatalf("unexpected report content")
	}
}
