package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		out = append(out, entry)
	}
	return out
}

func TestDefaultLoggerIsNop(t *testing.T) {
	Use(nil)
	// Must not panic before Init
	Info("ignored")
	Named("layer").Warn("ignored")
	Sync()
}

func TestLogLevels(t *testing.T) {
	tempDir := t.TempDir()
	defer Use(nil)

	tests := []struct {
		level    string
		expected []string
	}{
		{level: "error", expected: []string{"error"}},
		{level: "warn", expected: []string{"warn", "error"}},
		{level: "info", expected: []string{"info", "warn", "error"}},
		{level: "debug", expected: []string{"debug", "info", "warn", "error"}},
		{level: "bogus", expected: []string{"info", "warn", "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logFile := filepath.Join(tempDir, tt.level+".log")

			cfg := FileConfig{
				Path:       logFile,
				MaxSizeMB:  10,
				MaxBackups: 1,
				MaxAgeDays: 1,
			}
			if err := InitWithFileConfig(tt.level, cfg, false); err != nil {
				t.Fatalf("failed to init logger: %v", err)
			}

			Debug("debug message")
			Info("info message")
			Warn("warn message")
			Error("error message")
			Sync()

			lines := readLines(t, logFile)
			if len(lines) != len(tt.expected) {
				t.Fatalf("expected %d entries, got %d", len(tt.expected), len(lines))
			}
			for i, want := range tt.expected {
				if lines[i]["level"] != want {
					t.Errorf("entry %d: expected level %s, got %v", i, want, lines[i]["level"])
				}
			}
		})
	}
}

func TestNamedComponentField(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "named.log")
	defer Use(nil)

	if err := InitWithFileConfig("info", FileConfig{Path: logFile, MaxSizeMB: 1}, false); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	Named("layer", zap.String("file", "areaA")).Info("region loaded")
	Sync()

	lines := readLines(t, logFile)
	if len(lines) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(lines))
	}
	if lines[0]["component"] != "layer" {
		t.Errorf("expected component layer, got %v", lines[0]["component"])
	}
	if lines[0]["file"] != "areaA" {
		t.Errorf("expected file areaA, got %v", lines[0]["file"])
	}
}

func TestUseObserver(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	Use(zap.New(core))
	defer Use(nil)

	Info("dropped")
	Warn("kept", zap.Int("cells", 16))

	if logs.Len() != 1 {
		t.Fatalf("expected 1 observed entry, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "kept" || entry.ContextMap()["cells"] != int64(16) {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/wrl.log")

	if cfg.Path != "/tmp/wrl.log" {
		t.Errorf("expected path /tmp/wrl.log, got %s", cfg.Path)
	}
	if cfg.MaxSizeMB != 20 {
		t.Errorf("expected MaxSizeMB 20, got %d", cfg.MaxSizeMB)
	}
	if cfg.MaxBackups != 5 {
		t.Errorf("expected MaxBackups 5, got %d", cfg.MaxBackups)
	}
	if cfg.MaxAgeDays != 14 {
		t.Errorf("expected MaxAgeDays 14, got %d", cfg.MaxAgeDays)
	}
	if !cfg.Compress {
		t.Error("expected Compress to be true")
	}
}
