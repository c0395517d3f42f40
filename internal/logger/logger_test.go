package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")

	err := Init(Config{
		Debug: false,
		Dir:   logDir,
	})
	if err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		t.Errorf("Log directory was not created: %s", logDir)
	}

	if Logger == nil {
		t.Fatal("Logger is nil after initialization")
	}

	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message")
	Error("Test error message")
}

func TestInitJSONFormat(t *testing.T) {
	logDir := t.TempDir()

	if err := Init(Config{Dir: logDir, Format: "json"}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	Info("habit completed", "owner", "user_1", "streak", 3)

	data, err := os.ReadFile(filepath.Join(logDir, "streakd.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"owner":"user_1"`) {
		t.Errorf("expected JSON keyvals in log output, got %q", string(data))
	}
}

func TestLogFunctionsWithoutInit(t *testing.T) {
	Logger = nil

	// These should not panic when Logger is nil
	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message")
	Error("Test error message")
}
