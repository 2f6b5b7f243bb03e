package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataFile       string   `json:"data_file"`       // 数据集路径(.csv 或 .xlsx)
	SheetName      string   `json:"sheet_name"`      // xlsx 工作表名
	DataDir        string   `json:"data_dir"`        // 监控目录/附件保存目录
	ExportDir      string   `json:"export_dir"`      // 定时导出目录
	SampleSize     int      `json:"sample_size"`     // 采样行数, <=0 不采样
	SampleSeed     int64    `json:"sample_seed"`     // 采样随机种子
	ListenAddr     string   `json:"listen_addr"`     // HTTP监听地址
	GinMode        string   `json:"gin_mode"`        // gin运行模式
	LogName        string   `json:"log_name"`        // 日志文件名
	LogMaxSize     string   `json:"log_max_size"`    // 日志轮转阈值, 如 "10 * 1024 * 1024"
	PidFile        string   `json:"pid_file"`        // pid文件
	ExportInterval Duration `json:"export_interval"` // 定时导出间隔, 0 表示关闭
	CORSOrigins    []string `json:"cors_origins"`

	Email struct {
		Enabled       bool     `json:"enabled"`
		Server        string   `json:"server"`         // 邮件服务器地址
		Username      string   `json:"username"`       // 邮箱用户名
		Password      string   `json:"password"`       // 邮箱密码
		TargetSubject string   `json:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email"`

	SendEmail struct {
		Enabled  bool     `json:"enabled"`
		Server   string   `json:"server"`
		Username string   `json:"username"`
		Password string   `json:"password"`
		To       []string `json:"to"`
		Subject  string   `json:"subject"`
	} `json:"send_email"`

	Push struct {
		Enabled bool   `json:"enabled"`
		Webhook string `json:"webhook"` // 钉钉机器人 webhook
		Secret  string `json:"secret"`  // 加签密钥
	} `json:"push"`
}

// Columns 逻辑列名到数据集列名的映射
type Columns struct {
	Datetime   string `json:"datetime"`
	Fare       string `json:"fare"`
	Passengers string `json:"passengers"`
	PickupLat  string `json:"pickup_lat"`
	PickupLon  string `json:"pickup_lon"`
	DropoffLat string `json:"dropoff_lat"`
	DropoffLon string `json:"dropoff_lon"`
}

// Required 返回清洗所需的全部列
func (c Columns) Required() []string {
	return []string{c.Datetime, c.Fare, c.Passengers, c.PickupLat, c.PickupLon, c.DropoffLat, c.DropoffLon}
}

// Bounds 经纬度范围(闭区间)
type Bounds struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// TimeCategory 时段分类, 小时闭区间 [Start, End]
type TimeCategory struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Contains 判断小时是否属于该时段
func (t TimeCategory) Contains(hour int) bool {
	return hour >= t.Start && hour <= t.End
}

// FareCategory 车费分类, Min/Max 为 nil 表示无界
type FareCategory struct {
	Name         string   `json:"name"`
	Min          *float64 `json:"min"`
	Max          *float64 `json:"max"`
	MinInclusive bool     `json:"min_inclusive"`
	MaxInclusive bool     `json:"max_inclusive"`
}

// Match 判断车费是否属于该分类
func (f FareCategory) Match(v float64) bool {
	if f.Min != nil {
		if f.MinInclusive && v < *f.Min {
			return false
		}
		if !f.MinInclusive && v <= *f.Min {
			return false
		}
	}
	if f.Max != nil {
		if f.MaxInclusive && v > *f.Max {
			return false
		}
		if !f.MaxInclusive && v >= *f.Max {
			return false
		}
	}
	return true
}

// DataConfig 数据清洗规则与界面分类
type DataConfig struct {
	Columns        Columns        `json:"columns"`
	Bounds         *Bounds        `json:"bounds"`
	TimeCategories []TimeCategory `json:"time_categories"`
	FareCategories []FareCategory `json:"fare_categories"`
	HistogramBins  int            `json:"histogram_bins"`
	MapPoints      int            `json:"map_points"`
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

// LoadConfig 加载配置(进程内只加载一次)
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	cfg.ApplyDefaults()
	dcfg.ApplyDefaults()
	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// ApplyDefaults 为未配置的字段填充默认值
func (c *Config) ApplyDefaults() {
	if c.DataFile == "" {
		c.DataFile = "data/uber.csv"
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Dir(c.DataFile)
	}
	if c.ExportDir == "" {
		c.ExportDir = "export"
	}
	if c.SampleSize == 0 {
		c.SampleSize = 5000
	}
	if c.SampleSeed == 0 {
		c.SampleSeed = 42
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8501"
	}
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.LogMaxSize == "" {
		c.LogMaxSize = "10 * 1024 * 1024"
	}
	if c.PidFile == "" {
		c.PidFile = "dashboard.pid"
	}
	if c.Email.CheckInterval == 0 {
		c.Email.CheckInterval = Duration(5 * time.Minute)
	}
	if c.SendEmail.Subject == "" {
		c.SendEmail.Subject = "Uber车费数据处理结果"
	}
}

// DefaultDataConfig 返回纽约出租车数据集的默认清洗规则
func DefaultDataConfig() *DataConfig {
	dc := &DataConfig{}
	dc.ApplyDefaults()
	return dc
}

// ApplyDefaults 为未配置的字段填充默认值
func (dc *DataConfig) ApplyDefaults() {
	mu.Lock()
	defer mu.Unlock()

	col := &dc.Columns
	setDefault(&col.Datetime, "pickup_datetime")
	setDefault(&col.Fare, "fare_amount")
	setDefault(&col.Passengers, "passenger_count")
	setDefault(&col.PickupLat, "pickup_latitude")
	setDefault(&col.PickupLon, "pickup_longitude")
	setDefault(&col.DropoffLat, "dropoff_latitude")
	setDefault(&col.DropoffLon, "dropoff_longitude")

	if dc.Bounds == nil {
		dc.Bounds = &Bounds{LatMin: 40.4, LatMax: 41.0, LonMin: -74.3, LonMax: -73.7}
	}
	if len(dc.TimeCategories) == 0 {
		dc.TimeCategories = []TimeCategory{
			{Name: "Early Morning", Start: 0, End: 5},
			{Name: "Morning", Start: 6, End: 10},
			{Name: "Noon", Start: 11, End: 14},
			{Name: "Afternoon", Start: 15, End: 18},
			{Name: "Evening", Start: 19, End: 23},
		}
	}
	if len(dc.FareCategories) == 0 {
		low, high := 15.0, 50.0
		dc.FareCategories = []FareCategory{
			{Name: "Cheap", Max: &low},
			{Name: "Medium", Min: &low, Max: &high, MinInclusive: true, MaxInclusive: true},
			{Name: "Expensive", Min: &high},
		}
	}
	if dc.HistogramBins <= 0 {
		dc.HistogramBins = 30
	}
	if dc.MapPoints <= 0 {
		dc.MapPoints = 2000
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// GetTimeCategory 按名称查找时段分类
func (dc *DataConfig) GetTimeCategory(name string) (TimeCategory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	for _, tc := range dc.TimeCategories {
		if tc.Name == name {
			return tc, true
		}
	}
	return TimeCategory{}, false
}

// GetFareCategory 按名称查找车费分类
func (dc *DataConfig) GetFareCategory(name string) (FareCategory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	for _, fc := range dc.FareCategories {
		if fc.Name == name {
			return fc, true
		}
	}
	return FareCategory{}, false
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration, 空字符串表示0
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
