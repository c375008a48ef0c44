package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{" WARN ", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}
	for _, tt := range tests {
		SetLevel(tt.in)
		if got := Logger.GetLevel(); got != tt.want {
			t.Errorf("SetLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetFormatAndOutput(t *testing.T) {
	defer SetOutput(os.Stdout)
	defer SetFormat("json")

	var buf bytes.Buffer
	SetOutput(&buf)

	SetFormat("json")
	WithField("analysis_id", "a-1").Info("done")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["analysis_id"] != "a-1" || entry["msg"] != "done" {
		t.Errorf("unexpected entry: %v", entry)
	}

	buf.Reset()
	SetFormat("text")
	WithField("analysis_id", "a-2").Info("done")
	if !strings.Contains(buf.String(), "analysis_id=a-2") {
		t.Errorf("expected text log line, got %q", buf.String())
	}
}
