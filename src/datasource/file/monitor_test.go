package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileMonitorWatch(t *testing.T) {
	dir := t.TempDir()
	monitor, err := NewFileMonitor(dir, "uber.csv")
	if err != nil {
		t.Fatalf("NewFileMonitor: %v", err)
	}
	defer monitor.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- monitor.Watch(ctx, func(path string) { got <- path })
	}()

	// 非目标文件不触发
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "uber.csv")
	if err := os.WriteFile(target, []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case path := <-got:
		if path != target {
			t.Fatalf("handler got %s, want %s", path, target)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler not called")
	}
	if monitor.LastFile() != target {
		t.Fatalf("LastFile = %s", monitor.LastFile())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestNewFileMonitorCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	monitor, err := NewFileMonitor(dir, "")
	if err != nil {
		t.Fatalf("NewFileMonitor: %v", err)
	}
	defer monitor.Close()

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("dir not created: %v", err)
	}
}
