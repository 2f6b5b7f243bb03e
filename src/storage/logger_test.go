package storage

import (
	"UberFareAnalysis/src/config"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer logger.Close()

	logger.Info("数据集加载完成")
	logger.Error("boom")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "INFO: 数据集加载完成") || !strings.Contains(text, "ERROR: boom") {
		t.Fatalf("unexpected log content: %q", text)
	}
}

func TestLoggerSubscribe(t *testing.T) {
	logger, err := NewLogger(filepath.Join(t.TempDir(), "app.log"))
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	sub := logger.Subscribe()
	logger.Warning("slow reload")

	select {
	case msg := <-sub:
		if !strings.Contains(msg, "WARNING: slow reload") {
			t.Fatalf("got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}

	logger.Unsubscribe(sub)
	logger.Info("after unsubscribe")
	select {
	case msg := <-sub:
		t.Fatalf("unexpected message %q", msg)
	default:
	}
}

func TestLoggerRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	for i := 0; i < 20; i++ {
		logger.Debug("This is a log message")
	}

	cfg := &config.Config{LogMaxSize: "1 * 100"}
	if err := logger.CheckRotate(cfg); err != nil {
		t.Fatalf("CheckRotate: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "app.*.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one rotated file, got %v", matches)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Fatalf("new log should be empty, size %d", info.Size())
	}
}

func TestLoggerReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	logger, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	moved := filepath.Join(dir, "moved.log")
	if err := os.Rename(path, moved); err != nil {
		t.Fatal(err)
	}
	if err := logger.Reopen(""); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	logger.Info("reopened")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "reopened") {
		t.Fatalf("reopened file missing entry: %q", data)
	}
}

func TestEval(t *testing.T) {
	cases := map[string]int64{
		"10 * 1024 * 1024": 10 * 1024 * 1024,
		"512":              512,
		"abc":              0,
	}
	for expr, want := range cases {
		if got := eval(expr); got != want {
			t.Errorf("eval(%q) = %d, want %d", expr, got, want)
		}
	}
}
