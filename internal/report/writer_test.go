package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/harvester/internal/model"
)

// sampleReport builds a report with one of everything, for writer tests.
func sampleReport() *model.SessionReport {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.SessionReport{
		SessionID:  "11111111-2222-3333-4444-555555555555",
		Targets:    []string{"http://example.com/"},
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Stats: model.QueueStatistics{
			Total:                 5,
			Completed:             3,
			Dead:                  2,
			Failed:                4,
			SuccessRate:           0.6,
			AverageProcessingTime: 250 * time.Millisecond,
		},
		Pages: []model.PageSummary{
			{URL: "http://example.com/", StatusCode: 200, Title: "Example", Language: "en", ProxyAddress: "socks5://proxy-eu:1080"},
			{URL: "http://example.com/about", StatusCode: 200, Title: "About"},
		},
		DeadTasks: []model.DeadTaskSummary{
			{URL: "http://example.com/broken", Attempts: 3, LastError: "retry limit exceeded after 3 attempts"},
		},
		Proxies: []model.ProxySummary{
			{Address: "socks5://proxy-eu:1080", Healthy: true},
			{Address: "socks5://proxy-us:1080", Healthy: false, FailureCount: 4},
		},
	}
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewSimpleWriter(&buf, WithVerbose(true))

	n, err := w.Write(sampleReport())
	if err != nil {
		t.Fatalf("Write() error = %v, want nil", err)
	}
	if n != buf.Len() {
		t.Errorf("Write() = %d bytes, buffer holds %d", n, buf.Len())
	}

	out := buf.String()
	for _, want := range []string{
		"HARVESTER REPORT",
		"TASK SUMMARY",
		"COMPLETED: 3",
		"DEAD:      2",
		"SUCCESS RATE: 60.0%",
		"http://example.com/broken",
		"PROXY HEALTH",
		"socks5://proxy-us:1080",
		"4 consecutive failures",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestSimpleWriterHidesEmptySectionsByDefault(t *testing.T) {
	t.Parallel()

	report := sampleReport()
	report.DeadTasks = nil
	report.Proxies = nil

	var buf bytes.Buffer
	if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "DEAD TASKS") {
		t.Error("empty dead task section should be hidden")
	}

	buf.Reset()
	if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).Write(report); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No permanent failures") {
		t.Error("WithShowEmpty should show the empty section")
	}
}

func TestJSONWriterRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewJSONWriter(&buf).Write(sampleReport()); err != nil {
		t.Fatalf("Write() error = %v, want nil", err)
	}

	var decoded model.SessionReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Stats.Completed != 3 || len(decoded.Pages) != 2 {
		t.Errorf("decoded = %+v, want the original report", decoded)
	}
}

func TestFullJSONWriterWrapsVersion(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewFullJSONWriter(&buf, "1.2.3", WithPrettyPrint()).Write(sampleReport()); err != nil {
		t.Fatal(err)
	}

	var wrapped JSONReport
	if err := json.Unmarshal(buf.Bytes(), &wrapped); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if wrapped.Version != "1.2.3" {
		t.Errorf("version = %q, want %q", wrapped.Version, "1.2.3")
	}
	if wrapped.Report == nil || wrapped.Report.Stats.Total != 5 {
		t.Errorf("report = %+v, want the wrapped report", wrapped.Report)
	}
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf).Write(sampleReport()); err != nil {
		t.Fatalf("Write() error = %v, want nil", err)
	}

	out := buf.String()
	for _, want := range []string{
		"# Harvester Report",
		"## Task Summary",
		"## Pages",
		"## Dead Tasks",
		"## Proxy Health",
		"pie",
		"socks5://proxy-us:1080",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestMarkdownWriterAlerts(t *testing.T) {
	t.Parallel()

	t.Run("all completed is a tip", func(t *testing.T) {
		t.Parallel()

		report := sampleReport()
		report.Stats.Dead = 0
		report.DeadTasks = nil
		report.Proxies = []model.ProxySummary{{Address: "socks5://p:1080", Healthy: true}}

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "[!TIP]") {
			t.Errorf("expected a tip alert, got:\n%s", buf.String())
		}
	})

	t.Run("nothing fetched is a caution", func(t *testing.T) {
		t.Parallel()

		report := sampleReport()
		report.Stats.Completed = 0
		report.Pages = nil

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "[!CAUTION]") {
			t.Errorf("expected a caution alert, got:\n%s", buf.String())
		}
	})
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, jsonOut bytes.Buffer
	mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&jsonOut))

	if _, err := mw.Write(sampleReport()); err != nil {
		t.Fatalf("Write() error = %v, want nil", err)
	}
	if text.Len() == 0 || jsonOut.Len() == 0 {
		t.Error("expected both writers to receive output")
	}
}

func TestOutputCreatesFileAndDirectories(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reports", "session.json")
	out, err := Output(path)
	if err != nil {
		t.Fatalf("Output() error = %v, want nil", err)
	}
	if _, err := out.Write([]byte("{}")); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report file missing: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("file content = %q, want %q", data, "{}")
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	if got := truncateString("short", 10); got != "short" {
		t.Errorf("truncateString() = %q, want unchanged", got)
	}
	if got := truncateString("abcdefghij", 8); got != "abcde..." {
		t.Errorf("truncateString() = %q, want %q", got, "abcde...")
	}
}
