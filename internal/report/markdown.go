package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/harvester/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the session report in Markdown format.
func (w *MarkdownWriter) Write(report *model.SessionReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeStats(md, report)
	w.writePages(md, report)
	w.writeDeadTasks(md, report)
	w.writeProxies(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with session information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.SessionReport) {
	md.H1("Harvester Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Session", "`" + report.SessionID + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Pages Fetched", strconv.Itoa(report.Stats.Completed)},
		},
	})
	md.PlainText("")
}

// writeStats writes the task outcome summary with a pie chart.
func (w *MarkdownWriter) writeStats(md *markdown.Markdown, report *model.SessionReport) {
	md.H2("Task Summary")
	md.PlainText("")

	stats := report.Stats
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"✅ Completed", strconv.Itoa(stats.Completed)},
			{"💀 Dead", strconv.Itoa(stats.Dead)},
			{"🔁 Failed attempts", strconv.Itoa(stats.Failed)},
			{"**Total tasks**", "**" + strconv.Itoa(stats.Total) + "**"},
		},
	})
	md.PlainText("")

	if stats.Completed > 0 || stats.Dead > 0 {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart for task outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.SessionReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Task Outcome Distribution"),
		piechart.WithShowData(true),
	)

	if report.Stats.Completed > 0 {
		chart.LabelAndIntValue("Completed", uint64(report.Stats.Completed))
	}
	if report.Stats.Dead > 0 {
		chart.LabelAndIntValue("Dead", uint64(report.Stats.Dead))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on session outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.SessionReport) {
	unhealthy := 0
	for _, p := range report.Proxies {
		if !p.Healthy {
			unhealthy++
		}
	}

	switch {
	case report.Stats.Total > 0 && report.Stats.Completed == 0:
		md.Cautionf(
			"No page was fetched successfully. %d task(s) died; check targets and proxy configuration.",
			report.Stats.Dead,
		)
	case unhealthy > 0:
		md.Warningf(
			"%d proxy route(s) ended the session unhealthy and were excluded from rotation.",
			unhealthy,
		)
	case report.Stats.Dead > 0:
		md.Importantf(
			"%d task(s) exhausted their retry budget; see the dead task list below.",
			report.Stats.Dead,
		)
	default:
		md.Tip("Every task completed successfully.")
	}
	md.PlainText("")
}

// writePages writes the fetched pages table.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.SessionReport) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Pages) == 0 {
		md.PlainText("No pages fetched.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Pages))
	for i, page := range report.Pages {
		title := page.Title
		if title == "" {
			title = "-"
		}
		lang := page.Language
		if lang == "" {
			lang = "-"
		}
		via := page.ProxyAddress
		if via == "" {
			via = "direct"
		}
		rows[i] = []string{
			strconv.Itoa(page.StatusCode),
			truncateString(page.URL, 60),
			truncateString(title, 40),
			lang,
			truncateString(via, 40),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Status", "URL", "Title", "Lang", "Via"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeDeadTasks writes the permanent failures table.
func (w *MarkdownWriter) writeDeadTasks(md *markdown.Markdown, report *model.SessionReport) {
	if len(report.DeadTasks) == 0 {
		return
	}

	md.H2("Dead Tasks")
	md.PlainText("")

	rows := make([][]string, len(report.DeadTasks))
	for i, task := range report.DeadTasks {
		rows[i] = []string{
			truncateString(task.URL, 60),
			strconv.Itoa(task.Attempts),
			truncateString(task.LastError, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Attempts", "Last Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeProxies writes the proxy health table.
func (w *MarkdownWriter) writeProxies(md *markdown.Markdown, report *model.SessionReport) {
	if len(report.Proxies) == 0 {
		return
	}

	md.H2("Proxy Health")
	md.PlainText("")

	rows := make([][]string, len(report.Proxies))
	for i, p := range report.Proxies {
		health := "✅ healthy"
		if !p.Healthy {
			health = "❌ unhealthy"
		}
		rows[i] = []string{
			truncateString(p.Address, 50),
			health,
			strconv.Itoa(p.FailureCount),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Address", "State", "Consecutive Failures"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [harvester](https://github.com/nao1215/harvester)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
