package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/harvester/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the session report in human-readable format.
func (w *SimpleWriter) Write(report *model.SessionReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeStats(&sb, report)
	w.writePages(&sb, report)
	w.writeDeadTasks(&sb, report)
	w.writeProxies(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with session information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.SessionReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         HARVESTER REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Session:   %s\n", report.SessionID))
	if len(report.Targets) > 0 {
		sb.WriteString(fmt.Sprintf("Targets:   %s\n", strings.Join(report.Targets, ", ")))
	}
	sb.WriteString(fmt.Sprintf("Started:   %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", report.Duration().Round(time.Millisecond)))
	sb.WriteString("\n")
}

// writeStats writes the task outcome summary.
func (w *SimpleWriter) writeStats(sb *strings.Builder, report *model.SessionReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("TASK SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	stats := report.Stats
	sb.WriteString(fmt.Sprintf("  TOTAL:     %d\n", stats.Total))
	sb.WriteString(fmt.Sprintf("  COMPLETED: %d\n", stats.Completed))
	sb.WriteString(fmt.Sprintf("  DEAD:      %d\n", stats.Dead))
	sb.WriteString(fmt.Sprintf("  FAILED ATTEMPTS: %d\n", stats.Failed))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  SUCCESS RATE: %.1f%%\n", stats.SuccessRate*100))
	if stats.Completed > 0 {
		sb.WriteString(fmt.Sprintf("  AVG FETCH TIME: %s\n", stats.AverageProcessingTime.Round(time.Millisecond)))
	}
	sb.WriteString("\n")
}

// writePages writes the fetched pages section.
func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.SessionReport) {
	if len(report.Pages) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Pages) == 0 {
		sb.WriteString("  No pages fetched\n")
	}
	for _, page := range report.Pages {
		sb.WriteString(fmt.Sprintf("  [%d] %s\n", page.StatusCode, page.URL))
		if page.Title != "" {
			sb.WriteString(fmt.Sprintf("      Title: %s\n", page.Title))
		}
		if w.verbose && page.Language != "" {
			sb.WriteString(fmt.Sprintf("      Language: %s\n", page.Language))
		}
		if w.verbose && page.ProxyAddress != "" {
			sb.WriteString(fmt.Sprintf("      Via: %s\n", page.ProxyAddress))
		}
	}
	sb.WriteString("\n")
}

// writeDeadTasks writes the permanent failures section.
func (w *SimpleWriter) writeDeadTasks(sb *strings.Builder, report *model.SessionReport) {
	if len(report.DeadTasks) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("DEAD TASKS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.DeadTasks) == 0 {
		sb.WriteString("  No permanent failures\n")
	}
	for _, task := range report.DeadTasks {
		sb.WriteString(fmt.Sprintf("  [x] %s (%d attempts)\n", task.URL, task.Attempts))
		if task.LastError != "" {
			sb.WriteString(fmt.Sprintf("      Error: %s\n", task.LastError))
		}
	}
	sb.WriteString("\n")
}

// writeProxies writes the proxy health section.
func (w *SimpleWriter) writeProxies(sb *strings.Builder, report *model.SessionReport) {
	if len(report.Proxies) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PROXY HEALTH\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Proxies) == 0 {
		sb.WriteString("  No proxies configured\n")
	}
	for _, p := range report.Proxies {
		indicator := "+"
		if !p.Healthy {
			indicator = "-"
		}
		sb.WriteString(fmt.Sprintf("  [%s] %s", indicator, p.Address))
		if p.FailureCount > 0 {
			sb.WriteString(fmt.Sprintf(" (%d consecutive failures)", p.FailureCount))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by harvester\n")
	sb.WriteString("https://github.com/nao1215/harvester\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
