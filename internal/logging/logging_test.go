package logging

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timebook.log")
	Setup(path)
	t.Cleanup(func() { Close() })

	log.Printf("hello from the test")
	if err := Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "hello from the test") {
		t.Errorf("log file content = %q", data)
	}
}

func TestSetupSamePathIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timebook.log")
	w1 := Setup(path)
	w2 := Setup(path)
	t.Cleanup(func() { Close() })
	if w1 != w2 {
		t.Error("Setup() with the same path replaced the writer")
	}
}

func TestSetupEmptyPath(t *testing.T) {
	if w := Setup(""); w != os.Stderr {
		t.Errorf("Setup(\"\") = %v, want os.Stderr", w)
	}
}
