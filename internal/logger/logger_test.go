package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{" WARN ", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNamedLoggersAreIndependent(t *testing.T) {
	root := New("error", false)
	fetch := root.Named("pipeline").Named("fetch")
	if fetch == root {
		t.Fatal("Named should return a child logger")
	}
	fetch.Debug("hidden", URL("https://a.com/"), Stage("fetch"), File("dump.md"))
}

func TestLinkFields(t *testing.T) {
	tests := []struct {
		field Field
		key   string
		value string
	}{
		{URL("https://a.com/"), "url", "https://a.com/"},
		{File("dump.md"), "file", "dump.md"},
		{Stage("html"), "stage", "html"},
	}

	for _, tt := range tests {
		if tt.field.Key != tt.key || tt.field.String != tt.value {
			t.Errorf("field = %s=%s, want %s=%s", tt.field.Key, tt.field.String, tt.key, tt.value)
		}
	}
}
