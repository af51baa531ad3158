package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewWritesStderrAndDailyFile(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer

	l, closer, err := New(Config{Dir: dir, Stderr: &stderr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hello", "user", "alice")
	l.Debug("hidden")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !strings.Contains(stderr.String(), "hello") || !strings.Contains(stderr.String(), "user=alice") {
		t.Fatalf("stderr = %q", stderr.String())
	}
	if strings.Contains(stderr.String(), "hidden") {
		t.Fatal("debug message logged at info level")
	}

	name := filepath.Join(dir, "sign_"+time.Now().Format("20060102")+".log")
	b, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), "hello") {
		t.Fatalf("log file = %q", b)
	}
}

func TestNewDebugLevel(t *testing.T) {
	var stderr bytes.Buffer
	l, closer, err := New(Config{Dir: t.TempDir(), Debug: true, Stderr: &stderr})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()
	l.Debug("visible")
	if !strings.Contains(stderr.String(), "visible") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}
