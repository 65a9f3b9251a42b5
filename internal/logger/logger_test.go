package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

func readEntries(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer f.Close()

	var entries []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("Log line is not JSON: %q", scanner.Text())
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestProperty_ProductionLogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("production entries are JSON with level, time and message", prop.ForAll(
		func(message string, productID string) bool {
			path := filepath.Join(t.TempDir(), "app.log")
			logger, err := NewWithOptions(Options{Env: "production", OutputPaths: []string{path}})
			if err != nil {
				return false
			}

			logger.Info(message, zap.String("product_id", productID))
			logger.Sync()

			entries := readEntries(t, path)
			if len(entries) != 1 {
				return false
			}
			e := entries[0]
			_, hasTime := e["ts"]
			return e["level"] == "info" &&
				e["msg"] == message &&
				e["product_id"] == productID &&
				hasTime
		},
		gen.AlphaString(),
		gen.NumString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNewWithOptions_Level(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewWithOptions(Options{Env: "production", Level: "warn", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("Fetched product page")
	logger.Warn("Rate limit exceeded")
	logger.Sync()

	entries := readEntries(t, path)
	if len(entries) != 1 || entries[0]["msg"] != "Rate limit exceeded" {
		t.Errorf("Expected only the warning, got %v", entries)
	}
}

func TestNewWithOptions_InvalidLevel(t *testing.T) {
	if _, err := NewWithOptions(Options{Env: "production", Level: "loud"}); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}

func TestNew_Development(t *testing.T) {
	logger, err := New("development")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Error("Development logger should log debug entries")
	}
}
