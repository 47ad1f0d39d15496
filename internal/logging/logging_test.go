package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "colmean.log")
	if err := Init("debug", path, false); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !Get().IsLevelEnabled(logrus.DebugLevel) {
		t.Fatal("Debug level should be enabled")
	}

	Debugf("launch %d", 7)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "launch 7") {
		t.Errorf("Log file does not contain message: %q", data)
	}
}

func TestInitUnknownLevel(t *testing.T) {
	if err := Init("chatty", "", false); err != nil {
		t.Fatal(err)
	}
	if got := Get().GetLevel(); got != logrus.InfoLevel {
		t.Errorf("Expected info level fallback, got %v", got)
	}
}
