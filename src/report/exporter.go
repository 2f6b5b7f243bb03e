package report

import (
	"UberFareAnalysis/src/config"
	"UberFareAnalysis/src/datasource/file"
	"UberFareAnalysis/src/processor"
	"UberFareAnalysis/src/storage"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Notifier 导出完成后的通知方式(钉钉/邮件)
type Notifier interface {
	Notify(ctx context.Context, summary processor.Summary, files []string) error
}

// Exporter 定时将当前数据快照导出为CSV和PDF
type Exporter struct {
	Dataset   *processor.Dataset
	Dir       string
	Logger    *storage.Logger
	Notifiers []Notifier
	Timeout   time.Duration
}

// NewExporter 创建导出任务
func NewExporter(cfg *config.Config, ds *processor.Dataset, logger *storage.Logger, notifiers ...Notifier) *Exporter {
	return &Exporter{
		Dataset:   ds,
		Dir:       cfg.ExportDir,
		Logger:    logger,
		Notifiers: notifiers,
		Timeout:   time.Minute,
	}
}

// Run 供 cron 调用, 错误只记录日志
func (e *Exporter) Run() {
	files, err := e.Export()
	if err != nil {
		e.Logger.Error(fmt.Sprintf("定时导出失败: %v", err))
		return
	}
	e.Logger.Info(fmt.Sprintf("定时导出完成: %v", files))
}

// Export 写出CSV与PDF, 返回生成的文件路径
func (e *Exporter) Export() ([]string, error) {
	snap, err := e.Dataset.Snapshot()
	if err != nil {
		return nil, err
	}
	if err := file.EnsureDir(e.Dir); err != nil {
		return nil, fmt.Errorf("创建导出目录失败: %w", err)
	}

	stamp := time.Now().Format("20060102150405")
	csvPath := filepath.Join(e.Dir, fmt.Sprintf("processed_uber_fares_%s.csv", stamp))
	pdfPath := filepath.Join(e.Dir, fmt.Sprintf("uber_fare_report_%s.pdf", stamp))

	if err := writeFile(csvPath, snap.WriteCSV); err != nil {
		return nil, err
	}
	dcfg := e.Dataset.DataConfig()
	err = writeFile(pdfPath, func(w io.Writer) error {
		return Build(w, snap, dcfg)
	})
	if err != nil {
		return []string{csvPath}, err
	}
	files := []string{csvPath, pdfPath}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout())
	defer cancel()
	summary := snap.Summary(dcfg.Columns)
	for _, n := range e.Notifiers {
		if err := n.Notify(ctx, summary, files); err != nil {
			e.Logger.Warning(fmt.Sprintf("导出通知失败: %v", err))
		}
	}
	return files, nil
}

func (e *Exporter) timeout() time.Duration {
	if e.Timeout <= 0 {
		return time.Minute
	}
	return e.Timeout
}

// writeFile 先写临时文件再重命名
func writeFile(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("关闭文件失败: %w", err)
	}
	return os.Rename(tmp, path)
}
