package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesToCustomPath(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "logs", "test.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init: %v", err)
	}

	Get().Info("hello from test", "key", "value")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("log file missing entry, got: %s", data)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "a.log")
	if err := Init(path); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	// Second Init with a different path is a no-op, not an error
	if err := Init(filepath.Join(t.TempDir(), "b.log")); err != nil {
		t.Fatalf("second Init: %v", err)
	}
}

func TestWithSessionAttachesField(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "s.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init: %v", err)
	}

	WithSession("sess-42").Info("scoped entry")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "sessionID=sess-42") {
		t.Errorf("expected sessionID field, got: %s", data)
	}
}

func TestSetDebugControlsLevel(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "d.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init: %v", err)
	}

	Get().Debug("hidden")
	SetDebug(true)
	Get().Debug("visible")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Error("debug entry logged before SetDebug(true)")
	}
	if !strings.Contains(out, "visible") {
		t.Error("debug entry missing after SetDebug(true)")
	}
}
