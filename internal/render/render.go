package render

import (
	"fmt"
	"io"
	"strings"

	"logsift/internal/model"

	"github.com/charmbracelet/lipgloss"
)

// Terminal prints scored lines and explanations to a terminal. Colors are
// dropped automatically when the writer is not a TTY or NO_COLOR is set.
type Terminal struct {
	w        io.Writer
	tiers    model.Tiers
	severe   lipgloss.Style
	moderate lipgloss.Style
	normal   lipgloss.Style
	dim      lipgloss.Style
	header   lipgloss.Style
}

// NewTerminal creates a renderer writing to w
func NewTerminal(w io.Writer, tiers model.Tiers) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		w:        w,
		tiers:    tiers,
		severe:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		moderate: r.NewStyle().Foreground(lipgloss.Color("11")),
		normal:   r.NewStyle().Foreground(lipgloss.Color("10")),
		dim:      r.NewStyle().Faint(true),
		header:   r.NewStyle().Bold(true).Underline(true),
	}
}

func (t *Terminal) styleFor(sev model.Severity) lipgloss.Style {
	switch sev {
	case model.SeveritySevere:
		return t.severe
	case model.SeverityModerate:
		return t.moderate
	default:
		return t.normal
	}
}

// Ranked prints one row per line: z, NLL, line number and text
func (t *Terminal) Ranked(lines []model.ScoredLine) error {
	if len(lines) == 0 {
		_, err := fmt.Fprintln(t.w, t.dim.Render("no anomalies"))
		return err
	}

	if _, err := fmt.Fprintln(t.w, t.header.Render(fmt.Sprintf("%8s %9s %7s  %s", "Z", "NLL", "LINE", "TEXT"))); err != nil {
		return err
	}
	for _, l := range lines {
		if err := t.Line(l); err != nil {
			return err
		}
	}
	return nil
}

// Line prints a single scored line, used for streamed output
func (t *Terminal) Line(l model.ScoredLine) error {
	style := t.styleFor(t.tiers.Classify(l.Z))
	_, err := fmt.Fprintf(t.w, "%s %9.2f %7d  %s\n", style.Render(fmt.Sprintf("%8.2f", l.Z)), l.NLL, l.LineNo, l.Line)
	return err
}

// Explain prints every contribution of a line followed by the total
func (t *Terminal) Explain(e model.Explanation) error {
	var b strings.Builder

	width := len("TERM")
	for _, c := range e.Contributions {
		width = max(width, len(c.Label))
	}

	fmt.Fprintf(&b, "%s\n", t.header.Render(fmt.Sprintf("%-7s  %-*s  %10s  %8s", "KIND", width, "TERM", "P", "-LN(P)")))
	for _, c := range e.Contributions {
		row := fmt.Sprintf("%-7s  %-*s  %10.6f  %8.3f", c.Kind, width, c.Label, c.Probability, c.Value)
		if c.Kind == model.KindBigram {
			row = t.dim.Render(row)
		}
		b.WriteString(row)
		b.WriteByte('\n')
	}

	style := t.styleFor(e.Severity)
	fmt.Fprintf(&b, "total NLL %.3f  z %s  (%s)\n", e.NLL, style.Render(fmt.Sprintf("%.2f", e.Z)), e.Severity)

	_, err := io.WriteString(t.w, b.String())
	return err
}
