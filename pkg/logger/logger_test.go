package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONOutputCarriesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Component: "mesas", Output: &buf})

	log.WithField("mesa_id", 3).WithError(errors.New("boom")).Warn("mesa update failed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}
	if entry["component"] != "mesas" {
		t.Fatalf("expected component mesas, got %v", entry["component"])
	}
	if entry["mesa_id"].(float64) != 3 {
		t.Fatalf("expected mesa_id 3, got %v", entry["mesa_id"])
	}
	if entry["error"] != "boom" {
		t.Fatalf("expected error field, got %v", entry["error"])
	}
	if entry["level"] != "warning" {
		t.Fatalf("expected warning level, got %v", entry["level"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
	log.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}
}

func TestNamedSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	root := New(Config{Format: "json", Component: "app", Output: &buf})
	root.Named("dashboard").Info("refreshed")

	if !strings.Contains(buf.String(), `"component":"dashboard"`) {
		t.Fatalf("expected dashboard component, got %q", buf.String())
	}
}
