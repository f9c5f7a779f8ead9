package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// capture points the global logger at a buffer so tests can inspect output.
func capture() *bytes.Buffer {
	var buf bytes.Buffer
	Log = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: &level}))
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	Init("info")
	buf := capture()

	Debug("suppressed")
	if buf.Len() > 0 {
		t.Error("debug output leaked at info level")
	}
	if IsDebug() {
		t.Error("IsDebug true at info level")
	}

	SetLevel("debug")
	buf.Reset()
	Debug("now visible", "run", "akiyo_qp27_1")
	if !strings.Contains(buf.String(), "akiyo_qp27_1") {
		t.Errorf("debug output missing after SetLevel(debug): %q", buf.String())
	}
	if !IsDebug() {
		t.Error("IsDebug false at debug level")
	}

	SetLevel("error")
	buf.Reset()
	Info("suppressed")
	Warn("suppressed")
	if buf.Len() > 0 {
		t.Error("info/warn output leaked at error level")
	}
	buf.Reset()
	Error("still visible")
	if buf.Len() == 0 {
		t.Error("error output suppressed at error level")
	}
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	Init("verbose")
	buf := capture()

	Debug("suppressed")
	if buf.Len() > 0 {
		t.Error("unknown level did not fall back to info")
	}
	Info("visible")
	if buf.Len() == 0 {
		t.Error("info suppressed after fallback")
	}
}
