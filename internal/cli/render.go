package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/raysh454/sift/internal/compare"
	"github.com/raysh454/sift/internal/model"
	"github.com/raysh454/sift/internal/tools"
)

var (
	colorSuccess = lipgloss.Color("#9ece6a")
	colorWarning = lipgloss.Color("#e0af68")
	colorError   = lipgloss.Color("#f7768e")
	colorMuted   = lipgloss.Color("#565f89")
	colorPrimary = lipgloss.Color("#7aa2f7")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	toolStyle    = lipgloss.NewStyle().Bold(true).Width(12)
	addedStyle   = lipgloss.NewStyle().Foreground(colorSuccess)
	removedStyle = lipgloss.NewStyle().Foreground(colorError)
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
)

func statusStyle(s model.ToolStatus) lipgloss.Style {
	switch s {
	case model.StatusCompleted:
		return lipgloss.NewStyle().Foreground(colorSuccess)
	case model.StatusSkipped:
		return lipgloss.NewStyle().Foreground(colorWarning)
	default:
		return lipgloss.NewStyle().Foreground(colorError)
	}
}

func progressStyle(s model.ProgressStatus) lipgloss.Style {
	if s == model.ProgressRunning {
		return mutedStyle
	}
	return statusStyle(model.ToolStatus(s))
}

// renderRun prints a run: a header, then one line per tool in request order.
func renderRun(w io.Writer, run *model.ScanRun) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("scan "+run.ScanID), mutedStyle.Render(run.CreatedAt.Format("2006-01-02 15:04:05Z07:00")))
	fmt.Fprintf(&b, "target  %s (%s)\n", run.Target, run.TargetType)
	fmt.Fprintf(&b, "status  %s   cost %d credits\n\n", run.Status, run.TotalCost)
	for _, r := range run.Results {
		fmt.Fprintf(&b, "%s %s\n", toolStyle.Render(r.Tool), statusStyle(r.Status).Render(resultLine(r)))
	}
	for _, c := range run.Correlations {
		fmt.Fprintf(&b, "\n%s", mutedStyle.Render(c.Description))
	}
	fmt.Fprintln(w, panelStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func resultLine(r model.ToolResult) string {
	switch r.Status {
	case model.StatusCompleted:
		return fmt.Sprintf("completed  %d results", r.ResultCount)
	case model.StatusSkipped:
		return "skipped    " + r.Reason
	default:
		return "failed     " + r.Error
	}
}

func renderEvent(w io.Writer, ev model.ProgressEvent) {
	if ev.Terminal() {
		fmt.Fprintf(w, "%s %d/%d tools completed\n", mutedStyle.Render("»"), ev.CompletedTools, ev.TotalTools)
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", mutedStyle.Render("»"), toolStyle.Render(ev.ToolName), progressStyle(ev.Status).Render(ev.Message))
}

func renderSummaries(w io.Writer, list []model.ScanSummary) {
	if len(list) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no scans"))
		return
	}
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			s.ScanID, s.CreatedAt.Format("2006-01-02 15:04"), s.TargetType, s.Target, s.TotalCost)
	}
}

func renderTools(w io.Writer, infos []tools.Info) {
	for _, info := range infos {
		targets := make([]string, len(info.Targets))
		for i, t := range info.Targets {
			targets[i] = string(t)
		}
		state := addedStyle.Render("configured")
		if !info.Configured {
			state = removedStyle.Render("not configured")
		}
		fmt.Fprintf(w, "%s %3d credits  %-16s %s\n", toolStyle.Render(info.Name), info.Price, state, mutedStyle.Render(strings.Join(targets, ",")))
	}
}

func renderComparison(w io.Writer, cmp *compare.Comparison) {
	fmt.Fprintf(w, "%s %s → %s (%s)\n", titleStyle.Render("compare"), cmp.BaseScanID, cmp.HeadScanID, cmp.Target)
	if !cmp.Changed {
		fmt.Fprintln(w, mutedStyle.Render("no changes"))
		return
	}
	for _, d := range cmp.Tools {
		fmt.Fprintf(w, "%s %s → %s  %+d\n", toolStyle.Render(d.Tool), orDash(string(d.BaseStatus)), orDash(string(d.HeadStatus)), d.Delta)
	}
	for _, c := range cmp.Chunks {
		style, sign := addedStyle, "+"
		if c.Type == "removed" {
			style, sign = removedStyle, "-"
		}
		for _, line := range strings.Split(strings.TrimRight(c.Content, "\n"), "\n") {
			fmt.Fprintln(w, style.Render(fmt.Sprintf("%s %s: %s", sign, c.Tool, line)))
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
