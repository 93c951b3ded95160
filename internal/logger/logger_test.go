package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, expected %v", tt.in, got, tt.want)
		}
	}
}

func TestColorTextHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, nil, false)
	l := slog.New(h)

	l.Info("lock stolen", "target", "/tmp/f", "lease", "30s")

	out := buf.String()
	if !strings.Contains(out, "[INFO] lock stolen") {
		t.Errorf("missing level and message: %q", out)
	}
	if !strings.Contains(out, "target=/tmp/f") || !strings.Contains(out, "lease=30s") {
		t.Errorf("missing attributes: %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("color codes without useColor: %q", out)
	}
}

func TestColorTextHandlerColor(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, nil, true)
	slog.New(h).Error("boom")

	if !strings.Contains(buf.String(), colorRed) {
		t.Errorf("expected colored ERROR level: %q", buf.String())
	}
}

func TestColorTextHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelWarn)
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: lv}, false)
	l := slog.New(h)

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("records below level leaked: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn record lost: %q", out)
	}
}

func TestColorTextHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, nil, false)
	slog.New(h).With("owner", "001").Info("acquired")

	if !strings.Contains(buf.String(), "owner=001") {
		t.Errorf("pre-bound attribute lost: %q", buf.String())
	}
}

func TestInitFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xenlk.log")
	if err := Init(Config{Level: "INFO", Format: "text", Output: path}); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := Init(Config{Level: "INFO", Format: "text", Output: "stderr"}); err != nil {
			t.Fatal(err)
		}
	}()

	Info("written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing record: %q", string(data))
	}
}

func TestInitJSONFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xenlk.log")
	if err := Init(Config{Level: "INFO", Format: "json", Output: path}); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := Init(Config{Level: "INFO", Format: "text", Output: "stderr"}); err != nil {
			t.Fatal(err)
		}
	}()

	Info("structured", "target", "/tmp/f")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"target":"/tmp/f"`) {
		t.Errorf("expected JSON output: %q", string(data))
	}
}
