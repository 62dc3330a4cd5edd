package compare

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/valery-judah/semantic-shelf/model"
)

var (
	colorPass = lipgloss.Color("#2CD7C7")
	colorFail = lipgloss.Color("#E74C3C")
	colorInfo = lipgloss.Color("#F4D03F")
)

// RenderTable formats a diff report for the console. Colour is applied
// only when color is true.
func RenderTable(r *model.DiffReport, color bool) string {
	plain := lipgloss.NewStyle().Padding(0, 1)
	header := plain.Bold(color)
	status := func(s model.MetricStatus) lipgloss.Style {
		if !color {
			return plain
		}
		switch s {
		case model.StatusPass:
			return plain.Foreground(colorPass)
		case model.StatusFail:
			return plain.Foreground(colorFail).Bold(true)
		case model.StatusInfo:
			return plain.Foreground(colorInfo)
		}
		return plain
	}

	rows := make([][]string, 0, len(r.Metrics))
	for _, m := range r.Metrics {
		rows = append(rows, []string{
			m.Metric,
			fmtValue(m.BaselineValue),
			fmtValue(m.CandidateValue),
			fmtDelta(m.AbsoluteDelta),
			fmtThreshold(m.Threshold),
			string(m.Status),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Metric", "Baseline", "Candidate", "Delta", "Threshold", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col == 5 && row >= 0 && row < len(r.Metrics) {
				return status(r.Metrics[row].Status)
			}
			return plain
		})

	var b strings.Builder
	fmt.Fprintf(&b, "[Comparison] Candidate %s vs Baseline %s\n", r.CandidateRunID, r.BaselineRunID)
	fmt.Fprintf(&b, "Scenario: %s\n", r.ScenarioID)
	fmt.Fprintf(&b, "Overall Status: %s\n", status(r.OverallStatus).Padding(0).Render(string(r.OverallStatus)))
	b.WriteString(t.String())
	b.WriteString("\n")
	if r.OverallStatus == model.StatusFail {
		b.WriteString("❌ Gating Failed: Critical regressions detected.\n")
	} else {
		b.WriteString("✅ Gating Passed.\n")
	}
	return b.String()
}

func fmtValue(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

func fmtDelta(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%+.4f", *v)
}

func fmtThreshold(t model.Threshold) string {
	switch {
	case t.Max != nil:
		return "max " + strconv.FormatFloat(*t.Max, 'f', -1, 64)
	case t.MaxIncrease != nil:
		return "+" + strconv.FormatFloat(*t.MaxIncrease, 'f', -1, 64)
	case t.MaxIncreaseRatio != nil:
		return "+" + strconv.FormatFloat(*t.MaxIncreaseRatio*100, 'f', -1, 64) + "%"
	}
	return "-"
}
