package report

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"logsift/internal/apperr"
	"logsift/internal/model"
	"logsift/internal/service/stats"
	"logsift/internal/util"
)

// Report is the data rendered into an HTML anomaly report
type Report struct {
	Title          string
	Source         string
	GeneratedAt    time.Time
	Threshold      float64
	TopK           int
	Scored         int
	AboveThreshold int
	Stats          stats.RobustStats
	Tiers          model.Tiers
	Lines          []model.ScoredLine
}

// Row is one ranked line as shown in the report
type Row struct {
	Rank     int
	LineNo   int
	Line     string
	NLL      float64
	Z        float64
	Severity model.Severity
}

type view struct {
	Report
	Rows   []Row
	Counts map[string]int
}

// Render writes the report as a standalone HTML page
func Render(w io.Writer, r Report) error {
	if r.Title == "" {
		r.Title = "Log anomaly report"
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}
	if r.Tiers == (model.Tiers{}) {
		r.Tiers = model.DefaultTiers()
	}

	v := view{Report: r, Counts: make(map[string]int)}
	for i, l := range r.Lines {
		sev := r.Tiers.Classify(l.Z)
		v.Counts[string(sev)]++
		v.Rows = append(v.Rows, Row{Rank: i + 1, LineNo: l.LineNo, Line: l.Line, NLL: l.NLL, Z: l.Z, Severity: sev})
	}
	return page.Execute(w, v)
}

// WriteFile renders the report to path, replacing any previous file atomically
func WriteFile(path string, r Report) error {
	if err := util.WriteFileAtomic(path, func(w io.Writer) error { return Render(w, r) }); err != nil {
		return fmt.Errorf("failed to write report %s: %v: %w", path, err, apperr.ErrIO)
	}
	return nil
}

var page = template.Must(template.New("report").Funcs(template.FuncMap{
	"f2": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"f3": func(v float64) string { return fmt.Sprintf("%.3f", v) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; margin: 2rem; color: #1f2328; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 4px 8px; border-bottom: 1px solid #d0d7de; vertical-align: top; }
td.num { text-align: right; font-variant-numeric: tabular-nums; }
td.line { font-family: ui-monospace, Menlo, Consolas, monospace; white-space: pre-wrap; word-break: break-all; }
tr.severe td.z { background: #ffd7d5; font-weight: bold; }
tr.moderate td.z { background: #fff1c2; }
tr.normal td.z { background: #dafbe1; }
.summary span { margin-right: 1.5rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="summary">
<span>Source: <b>{{.Source}}</b></span>
<span>Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</span>
</p>
<p class="summary">
<span>Lines scored: <b>{{.Scored}}</b></span>
<span>Above z &ge; {{f2 .Threshold}}: <b>{{.AboveThreshold}}</b></span>
<span>Shown: <b>{{len .Rows}}</b>{{if gt .TopK 0}} (top {{.TopK}}){{end}}</span>
</p>
<p class="summary">
<span class="severe">Severe (z &ge; {{f2 .Tiers.Severe}}): <b>{{index .Counts "severe"}}</b></span>
<span class="moderate">Moderate (z &ge; {{f2 .Tiers.Moderate}}): <b>{{index .Counts "moderate"}}</b></span>
<span class="normal">Normal: <b>{{index .Counts "normal"}}</b></span>
</p>
<p class="summary">
<span>Baseline p25 {{f3 .Stats.P25}}</span>
<span>p50 {{f3 .Stats.P50}}</span>
<span>p75 {{f3 .Stats.P75}}</span>
<span>MAD {{f3 .Stats.MAD}}</span>
</p>
{{if .Rows}}
<table id="anomalies">
<thead><tr><th>#</th><th>Line</th><th>Z</th><th>NLL</th><th>Severity</th><th>Text</th></tr></thead>
<tbody>
{{range .Rows}}<tr class="{{.Severity}}"><td class="num">{{.Rank}}</td><td class="num">{{.LineNo}}</td><td class="num z">{{f2 .Z}}</td><td class="num">{{f2 .NLL}}</td><td>{{.Severity}}</td><td class="line">{{.Line}}</td></tr>
{{end}}</tbody>
</table>
{{else}}
<p>No lines at or above the threshold.</p>
{{end}}
</body>
</html>
`))
