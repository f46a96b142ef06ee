package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"logsift/internal/apperr"
	"logsift/internal/service/store"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	root := NewRootCommandWithIO(strings.NewReader(stdin), out, out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeCorpus(t *testing.T, dir string) string {
	t.Helper()
	names := []string{"alice", "bob", "carol", "dave"}
	var b strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&b, "user %s logged in\n", names[i%len(names)])
	}
	path := filepath.Join(dir, "corpus.log")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("failed to write corpus: %v", err)
	}
	return path
}

func TestTrainScoreExplain(t *testing.T) {
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "model")
	t.Setenv("LOGSIFT_JOURNAL_PATH", filepath.Join(dir, "journal.db"))

	out, err := run(t, "", "train", writeCorpus(t, dir), "--model-dir", modelDir)
	if err != nil {
		t.Fatalf("train failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "trained on 100 lines") || !strings.Contains(out, "vocabulary 7") {
		t.Errorf("unexpected train output:\n%s", out)
	}
	if !store.NewModelStore(modelDir, nil).Exists() {
		t.Fatalf("model directory is incomplete")
	}

	input := filepath.Join(dir, "today.log")
	content := "user alice logged in\nuser bob logged in\nkernel panic not syncing\n"
	if err := os.WriteFile(input, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}

	out, err = run(t, "", "score", input, "--model-dir", modelDir)
	if err != nil {
		t.Fatalf("score failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "kernel panic not syncing") {
		t.Errorf("expected anomaly in score output:\n%s", out)
	}
	if strings.Contains(out, "user alice logged in") {
		t.Errorf("normal line reported as anomaly:\n%s", out)
	}

	out, err = run(t, "", "journal")
	if err != nil {
		t.Fatalf("journal failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "kernel panic not syncing") || !strings.Contains(out, input) {
		t.Errorf("expected journal entry:\n%s", out)
	}

	out, err = run(t, "", "explain", "--model-dir", modelDir, "user", "alice", "logged", "out")
	if err != nil {
		t.Fatalf("explain failed: %v\n%s", err, out)
	}
	for _, want := range []string{"alice logged", "logged out", "total NLL"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected explain output to contain %q:\n%s", want, out)
		}
	}
}

func TestScore_Stdin(t *testing.T) {
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "model")
	if _, err := run(t, "", "train", writeCorpus(t, dir), "--model-dir", modelDir); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	out, err := run(t, "user carol logged in\ndisk quota exceeded on volume\n", "score", "-", "--model-dir", modelDir)
	if err != nil {
		t.Fatalf("score failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "disk quota exceeded on volume") {
		t.Errorf("expected anomaly in score output:\n%s", out)
	}
}

func TestTrain_Stdin(t *testing.T) {
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "model")
	corpus, err := os.ReadFile(writeCorpus(t, dir))
	if err != nil {
		t.Fatalf("failed to read corpus: %v", err)
	}

	out, err := run(t, string(corpus), "train", "-", "--model-dir", modelDir)
	if err != nil {
		t.Fatalf("train failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "trained on 100 lines") || !strings.Contains(out, "vocabulary 7") {
		t.Errorf("unexpected train output:\n%s", out)
	}
}

func TestExplain_Stdin(t *testing.T) {
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "model")
	if _, err := run(t, "", "train", writeCorpus(t, dir), "--model-dir", modelDir); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	out, err := run(t, "user alice logged out\nignored second line\n", "explain", "--model-dir", modelDir)
	if err != nil {
		t.Fatalf("explain failed: %v\n%s", err, out)
	}
	for _, want := range []string{"alice logged", "logged out", "total NLL"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected explain output to contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ignored") {
		t.Errorf("explain read past the first stdin line:\n%s", out)
	}

	if _, err := run(t, "", "explain", "--model-dir", modelDir); !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty stdin, got %v", err)
	}
}

func TestScore_Report(t *testing.T) {
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "model")
	if _, err := run(t, "", "train", writeCorpus(t, dir), "--model-dir", modelDir); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	reportPath := filepath.Join(dir, "report.html")
	out, err := run(t, "kernel panic not syncing\n", "score", "-", "--model-dir", modelDir, "--report", reportPath)
	if err != nil {
		t.Fatalf("score failed: %v\n%s", err, out)
	}
	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(data), "kernel panic not syncing") {
		t.Errorf("report does not list the anomaly")
	}
}

func TestWatch_Stdin(t *testing.T) {
	dir := t.TempDir()
	modelDir := filepath.Join(dir, "model")
	if _, err := run(t, "", "train", writeCorpus(t, dir), "--model-dir", modelDir); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	stdin := "user dave logged in\nkernel panic not syncing\nkernel panic not syncing\n"
	out, err := run(t, stdin, "watch", "-", "--model-dir", modelDir, "--dedup")
	if err != nil {
		t.Fatalf("watch failed: %v\n%s", err, out)
	}
	if n := strings.Count(out, "kernel panic not syncing"); n != 1 {
		t.Errorf("expected one deduplicated anomaly, got %d:\n%s", n, out)
	}
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"missing model", []string{"score", "x.log", "--model-dir", filepath.Join(dir, "none")}},
		{"missing corpus", []string{"train", filepath.Join(dir, "absent.log"), "--model-dir", dir}},
		{"no journal", []string{"journal"}},
		{"bad config", []string{"--config", filepath.Join(dir, "missing.yaml"), "journal"}},
		{"bad backend", []string{"export-graph", "--backend", "dgraph"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			if !errors.Is(err, apperr.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}
