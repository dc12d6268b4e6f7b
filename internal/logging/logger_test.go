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

	"romident/internal/config"
	"romident/internal/logging"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Debug("file only message", logging.String("crc32", "deadbeef"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, content)
	}
	if record["msg"] != "file only message" || record["level"] != "debug" || record["crc32"] != "deadbeef" {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestConsoleLoggerSourceOnlyAtDebug(t *testing.T) {
	cases := []struct {
		level      string
		wantSource bool
	}{
		{level: "info", wantSource: false},
		{level: "debug", wantSource: true},
	}
	for _, tc := range cases {
		logPath := filepath.Join(t.TempDir(), "console.log")
		logger, err := logging.New(logging.Options{Format: "console", Level: tc.level, OutputPaths: []string{logPath}})
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		logger.Info("message")

		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		if got := strings.Contains(string(content), ".go:"); got != tc.wantSource {
			t.Fatalf("level %s: source present = %v, want %v (%q)", tc.level, got, tc.wantSource, content)
		}
	}
}

func TestConsoleLoggerFormatsInfoFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "identification").Info("identified image",
		logging.String(logging.FieldPath, "/roms/game.nes"),
		logging.String("crc32", "deadbeef"),
		logging.Int64("size", 2048),
		logging.String(logging.FieldCorrelationID, "abc"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(content)
	for _, want := range []string{"INFO [identification] game.nes – identified image", "- CRC32: deadbeef", "- Size: 2.0 KiB", "+ 1 more field hidden"} {
		if !strings.Contains(out, want) {
			t.Fatalf("console output missing %q:\n%s", want, out)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := logging.WithCorrelationID(context.Background(), "req-xyz")
	ctx = logging.WithImagePath(ctx, "/roms/a.gcz")

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WithContext(ctx, base).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if record[logging.FieldCorrelationID] != "req-xyz" {
		t.Fatalf("correlation id = %v", record[logging.FieldCorrelationID])
	}
	if record[logging.FieldPath] != "/roms/a.gcz" {
		t.Fatalf("path = %v", record[logging.FieldPath])
	}
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "catalog skipped", "catalog_skipped",
		logging.String(logging.FieldImpact, "entries from this file are unavailable"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if record[logging.FieldEventType] != "catalog_skipped" {
		t.Fatalf("event_type = %v", record[logging.FieldEventType])
	}
	if record[logging.FieldErrorHint] != "check logs for details" {
		t.Fatalf("error_hint = %v", record[logging.FieldErrorHint])
	}
	if record[logging.FieldImpact] != "entries from this file are unavailable" {
		t.Fatalf("impact overwritten: %v", record[logging.FieldImpact])
	}
}

func TestWithLevelOverrideSuppressesBelowFloor(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).With("component", "cli")
	quiet := logging.WithLevelOverride(base, slog.LevelWarn)

	quiet.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info suppressed, got %q", buf.String())
	}
	quiet.Warn("shown")
	if !strings.Contains(buf.String(), `"component":"cli"`) {
		t.Fatalf("expected attrs preserved, got %q", buf.String())
	}
}
