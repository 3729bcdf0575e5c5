package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"romlib/internal/config"
	"romlib/internal/logging"
)

func TestNewFromConfigWritesDatedFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg, "abc123")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello file")

	matches, err := filepath.Glob(filepath.Join(cfg.Paths.LogDir, logging.LogFilePattern))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one log file, got %v", matches)
	}
	content, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(content), "hello file") || !strings.Contains(string(content), "(abc123)") {
		t.Fatalf("unexpected log content %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerComponentHeader(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "component.log")
	base, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(base, "discovery").Info("walk finished", logging.Int("count", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "INFO [discovery] - walk finished") {
		t.Fatalf("missing component header: %q", text)
	}
	if !strings.Contains(text, "    - count: 3") {
		t.Fatalf("missing field line: %q", text)
	}
}

func TestJSONLoggerFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, SessionID: "s-1"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "conversion skipped", "conversion_skipped", logging.String(logging.FieldPath, "/x.bin"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	checks := map[string]string{
		"level":                "warn",
		logging.FieldEventType: "conversion_skipped",
		logging.FieldPath:      "/x.bin",
		logging.FieldSessionID: "s-1",
		logging.FieldErrorHint: "check logs for details",
		logging.FieldImpact:    "operation completed with warnings",
	}
	for key, want := range checks {
		if got, _ := record[key].(string); got != want {
			t.Fatalf("field %s = %q, want %q", key, got, want)
		}
	}
}

func TestSessionIDStampedOnce(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "sessions.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, SessionID: "invocation"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	compareCtx := logging.WithSessionID(context.Background(), "compare-7")
	logger.Info("plain")
	logger.InfoContext(compareCtx, "from context")
	logging.WithContext(logging.WithSessionID(context.Background(), "bound-9"), logger).Info("bound")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	want := []string{"invocation", "compare-7", "bound-9"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), content)
	}
	for i, line := range lines {
		if n := strings.Count(line, `"`+logging.FieldSessionID+`"`); n != 1 {
			t.Fatalf("line %d carries %d session ids: %s", i, n, line)
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("decode json log: %v (%q)", err, line)
		}
		if got, _ := record[logging.FieldSessionID].(string); got != want[i] {
			t.Fatalf("line %d session_id = %q, want %q", i, got, want[i])
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

type captureHandler struct {
	records *[]slog.Record
	attrs   []slog.Attr
}

func (h captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h captureHandler) Handle(_ context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs...)
	*h.records = append(*h.records, r)
	return nil
}

func (h captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return captureHandler{records: h.records, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h captureHandler) WithGroup(string) slog.Handler { return h }

func TestWithContextAddsSessionID(t *testing.T) {
	var records []slog.Record
	logger := slog.New(captureHandler{records: &records})

	ctx := logging.WithSessionID(context.Background(), "sess-42")
	logging.WithContext(ctx, logger).Info("contextual log")

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	found := false
	records[0].Attrs(func(a slog.Attr) bool {
		if a.Key == logging.FieldSessionID && a.Value.String() == "sess-42" {
			found = true
		}
		return true
	})
	if !found {
		t.Fatal("session_id attribute not found")
	}
}

func TestProgressSampler(t *testing.T) {
	sampler := logging.NewProgressSampler(3)
	var emitted []int
	for i := 1; i <= 7; i++ {
		if sampler.ShouldLog() {
			emitted = append(emitted, i)
		}
	}
	want := []int{1, 3, 6}
	if len(emitted) != len(want) {
		t.Fatalf("emitted %v, want %v", emitted, want)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("emitted %v, want %v", emitted, want)
		}
	}
	if sampler.Count() != 7 {
		t.Fatalf("count = %d", sampler.Count())
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "romlib-2020-01-01.log")
	keep := filepath.Join(dir, "romlib-2020-01-02.log")
	fresh := filepath.Join(dir, "romlib-today.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, keep, fresh, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -40)
	for _, path := range []string{old, keep, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(nil, 30, dir, logging.LogFilePattern, keep)
	if removed != 1 {
		t.Fatalf("removed %d files, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected %s removed", old)
	}
	for _, path := range []string{keep, fresh, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", path, err)
		}
	}
}
