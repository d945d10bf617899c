package common

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logger.LogLevel
		wantErr bool
	}{
		{"debug", logger.DEBUG, false},
		{"INFO", logger.INFO, false},
		{"", logger.INFO, false},
		{"warn", logger.WARNING, false},
		{"warning", logger.WARNING, false},
		{"error", logger.ERROR, false},
		{"verbose", logger.INFO, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	old := logOutput
	logOutput = &buf
	defer func() { logOutput = old }()

	l := CreateLogger("registry")
	l.SetLevel(logger.WARNING)
	l.Infof("hidden")
	l.Warningf("visible %d", 42)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warning level: %q", out)
	}
	if !strings.Contains(out, "WARN  | registry        | visible 42") {
		t.Errorf("unexpected format: %q", out)
	}
}

func TestEffectiveLogLevel(t *testing.T) {
	c := ServerConfig{LogLevel: "warn"}
	if got := c.EffectiveLogLevel(); got != "warn" {
		t.Errorf("got %s", got)
	}
	c.Verbose = true
	if got := c.EffectiveLogLevel(); got != "debug" {
		t.Errorf("verbose should raise to debug, got %s", got)
	}
}
