// data.go
package processor

import (
	"UberFareAnalysis/src/config"
	"UberFareAnalysis/src/datasource/file"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
)

// Dataset 封装清洗后的DataFrame并提供线程安全访问
type Dataset struct {
	path       string
	sheetName  string
	sampleSize int
	seed       int64
	dcfg       *config.DataConfig

	mu       sync.RWMutex
	df       dataframe.DataFrame
	report   CleaningReport
	columns  []string // 原始列顺序, 导出时使用
	loadedAt time.Time
	loaded   bool
	lastErr  error
}

// Snapshot 某一时刻的数据集只读视图
type Snapshot struct {
	Frame    dataframe.DataFrame
	Report   CleaningReport
	Columns  []string
	LoadedAt time.Time
}

// Summary 数据集概要指标
type Summary struct {
	Rows           int            `json:"rows"`
	MeanFare       float64        `json:"mean_fare"`
	MedianFare     float64        `json:"median_fare"`
	MeanPassengers float64        `json:"mean_passengers"`
	MeanDistanceKm float64        `json:"mean_distance_km"`
	LoadedAt       time.Time      `json:"loaded_at"`
	Report         CleaningReport `json:"report"`
}

// NewDataset 创建数据集, 此时尚未加载
func NewDataset(cfg *config.Config, dcfg *config.DataConfig) *Dataset {
	return &Dataset{
		path:       cfg.DataFile,
		sheetName:  cfg.SheetName,
		sampleSize: cfg.SampleSize,
		seed:       cfg.SampleSeed,
		dcfg:       dcfg,
	}
}

// DataConfig 返回清洗规则
func (d *Dataset) DataConfig() *config.DataConfig {
	return d.dcfg
}

// Path 数据文件路径
func (d *Dataset) Path() string {
	return d.path
}

// Reload 重新读取数据文件并清洗, 失败时保留上一次成功的数据
func (d *Dataset) Reload() (CleaningReport, error) {
	raw, err := file.Load(d.path, d.sheetName, d.dcfg.Columns)
	if err != nil {
		d.setErr(err)
		return CleaningReport{}, fmt.Errorf("加载数据集失败: %w", err)
	}
	return d.LoadFrame(raw)
}

// LoadFrame 清洗给定的原始数据并替换当前数据集
func (d *Dataset) LoadFrame(raw dataframe.DataFrame) (CleaningReport, error) {
	columns := raw.Names()
	cleaned, report, err := Clean(raw, d.sampleSize, d.seed, d.dcfg)
	if err != nil {
		d.setErr(err)
		return report, fmt.Errorf("数据清洗失败: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.df = cleaned
	d.report = report
	d.columns = columns
	d.loadedAt = time.Now()
	d.loaded = true
	d.lastErr = nil
	return report, nil
}

func (d *Dataset) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastErr = err
}

// LastError 最近一次加载失败的原因
func (d *Dataset) LastError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// Snapshot 获取当前数据(线程安全), 未加载时返回 ErrNoData
func (d *Dataset) Snapshot() (Snapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.loaded {
		return Snapshot{}, ErrNoData
	}
	return Snapshot{
		Frame:    d.df,
		Report:   d.report,
		Columns:  d.columns,
		LoadedAt: d.loadedAt,
	}, nil
}

// Export 清洗后的数据, 仅包含原始列
func (s Snapshot) Export() dataframe.DataFrame {
	return s.Frame.Select(s.Columns)
}

// WriteCSV 以CSV格式写出清洗后的数据
func (s Snapshot) WriteCSV(w io.Writer) error {
	if err := s.Export().WriteCSV(w); err != nil {
		return fmt.Errorf("写入CSV失败: %w", err)
	}
	return nil
}

// Summary 计算概要指标
func (s Snapshot) Summary(cols config.Columns) Summary {
	fare := s.Frame.Col(cols.Fare)
	return Summary{
		Rows:           s.Frame.Nrow(),
		MeanFare:       fare.Mean(),
		MedianFare:     fare.Median(),
		MeanPassengers: s.Frame.Col(cols.Passengers).Mean(),
		MeanDistanceKm: s.Frame.Col(ColDistance).Mean(),
		LoadedAt:       s.LoadedAt,
		Report:         s.Report,
	}
}
