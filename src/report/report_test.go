package report

import (
	"UberFareAnalysis/src/config"
	"UberFareAnalysis/src/processor"
	"UberFareAnalysis/src/storage"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func loadedDataset(t *testing.T) *processor.Dataset {
	t.Helper()
	cfg := &config.Config{DataFile: "../../data/uber.csv", SampleSize: 5000, SampleSeed: 42}
	ds := processor.NewDataset(cfg, config.DefaultDataConfig())
	if _, err := ds.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return ds
}

func TestBuild(t *testing.T) {
	ds := loadedDataset(t)
	snap, err := ds.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Build(&buf, snap, ds.DataConfig()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("输出不是PDF, 前缀 %q", buf.Bytes()[:8])
	}
}

type recordNotifier struct {
	files []string
	rows  int
	err   error
}

func (r *recordNotifier) Notify(_ context.Context, s processor.Summary, files []string) error {
	r.files = files
	r.rows = s.Rows
	return r.err
}

func newTestLogger(t *testing.T) *storage.Logger {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "app.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestExporterExport(t *testing.T) {
	dir := t.TempDir()
	n1 := &recordNotifier{}
	n2 := &recordNotifier{err: errors.New("push failed")}
	e := &Exporter{
		Dataset:   loadedDataset(t),
		Dir:       filepath.Join(dir, "export"),
		Logger:    newTestLogger(t),
		Notifiers: []Notifier{n2, n1},
	}

	files, err := e.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v", files)
	}
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || info.Size() == 0 {
			t.Errorf("导出文件 %s 无效: %v", f, err)
		}
	}
	if !strings.HasSuffix(files[0], ".csv") || !strings.HasSuffix(files[1], ".pdf") {
		t.Errorf("files = %v", files)
	}
	// 单个通知失败不影响其他通知
	if n1.rows != 10 || len(n1.files) != 2 {
		t.Errorf("通知内容 rows=%d files=%v", n1.rows, n1.files)
	}

	left, _ := filepath.Glob(filepath.Join(dir, "export", "*.tmp"))
	if len(left) != 0 {
		t.Errorf("残留临时文件 %v", left)
	}
}

func TestExporterNoData(t *testing.T) {
	cfg := &config.Config{DataFile: "missing.csv", ExportDir: t.TempDir()}
	ds := processor.NewDataset(cfg, config.DefaultDataConfig())
	e := NewExporter(cfg, ds, newTestLogger(t))
	if _, err := e.Export(); !errors.Is(err, processor.ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
	// Run 只记录日志
	e.Run()
}
