package processor

import (
	"UberFareAnalysis/src/config"
	"UberFareAnalysis/src/utils"
	"fmt"
	"math/rand"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 清洗后追加的派生列
const (
	ColHour      = "hour"
	ColDayOfWeek = "day_of_week"
	ColDayName   = "day_name"
	ColDistance  = "distance_km"
)

// Weekdays 0=Monday 的星期名称
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ColumnCount 单列缺失值数量
type ColumnCount struct {
	Column  string `json:"column"`
	Missing int    `json:"missing"`
}

// CleaningReport 各清洗阶段的行数, 沿阶段单调不增
type CleaningReport struct {
	RawRows         int           `json:"raw_rows"`
	RawCols         int           `json:"raw_cols"`
	SampledRows     int           `json:"sampled_rows"`
	MissingValues   []ColumnCount `json:"missing_values"`
	AfterDropNA     int           `json:"after_dropna"`
	InvalidDatetime int           `json:"invalid_datetime"`
	AfterFare       int           `json:"after_fare"`
	AfterPassengers int           `json:"after_passengers"`
	AfterBounds     int           `json:"after_bounds"`
}

// CleanedRows 清洗后的行数
func (r CleaningReport) CleanedRows() int {
	return r.AfterBounds
}

// DataProcess 在清洗后的数据上追加派生列
type DataProcess interface {
	ColCalculation(data *dataframe.DataFrame) error
}

// Clean 采样 -> 缺失值统计 -> dropna -> 时间解析 -> 业务异常值过滤 -> 派生列
func Clean(df dataframe.DataFrame, sampleSize int, seed int64, dcfg *config.DataConfig) (dataframe.DataFrame, CleaningReport, error) {
	cols := dcfg.Columns
	report := CleaningReport{RawRows: df.Nrow(), RawCols: df.Ncol()}
	if missing := utils.MissingColumns(df, cols.Required()...); len(missing) > 0 {
		return df, report, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	// 1. 采样(固定随机种子确保可复现)
	df = sample(df, sampleSize, seed)
	report.SampledRows = df.Nrow()

	// 2. 缺失值处理
	report.MissingValues = missingValues(df)
	df, err := dropNA(df)
	if err != nil {
		return df, report, err
	}
	report.AfterDropNA = df.Nrow()

	// 3. 时间解析, 无法解析的行直接丢弃
	df, invalid, err := dropInvalidTimes(df, cols.Datetime)
	report.InvalidDatetime = invalid
	if err != nil {
		return df, report, err
	}

	// 4. 异常值处理(基于业务逻辑)
	df = df.Filter(dataframe.F{Colname: cols.Fare, Comparator: series.Greater, Comparando: 0.0})
	report.AfterFare = df.Nrow()
	if df.Err != nil {
		return df, report, fmt.Errorf("过滤车费失败: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return df, report, ErrEmptyResult
	}

	df = df.Filter(dataframe.F{Colname: cols.Passengers, Comparator: series.Greater, Comparando: 0})
	report.AfterPassengers = df.Nrow()
	if df.Err != nil {
		return df, report, fmt.Errorf("过滤乘客数失败: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return df, report, ErrEmptyResult
	}

	// 纽约大致经纬度范围
	b := dcfg.Bounds
	df = df.FilterAggregation(dataframe.And,
		dataframe.F{Colname: cols.PickupLat, Comparator: series.GreaterEq, Comparando: b.LatMin},
		dataframe.F{Colname: cols.PickupLat, Comparator: series.LessEq, Comparando: b.LatMax},
		dataframe.F{Colname: cols.PickupLon, Comparator: series.GreaterEq, Comparando: b.LonMin},
		dataframe.F{Colname: cols.PickupLon, Comparator: series.LessEq, Comparando: b.LonMax},
		dataframe.F{Colname: cols.DropoffLat, Comparator: series.GreaterEq, Comparando: b.LatMin},
		dataframe.F{Colname: cols.DropoffLat, Comparator: series.LessEq, Comparando: b.LatMax},
		dataframe.F{Colname: cols.DropoffLon, Comparator: series.GreaterEq, Comparando: b.LonMin},
		dataframe.F{Colname: cols.DropoffLon, Comparator: series.LessEq, Comparando: b.LonMax},
	)
	report.AfterBounds = df.Nrow()
	if df.Err != nil {
		return df, report, fmt.Errorf("过滤经纬度失败: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return df, report, ErrEmptyResult
	}

	// 5. 派生列
	for _, step := range []DataProcess{TimeColumns{Cols: cols}, DistanceColumn{Cols: cols}} {
		if err := step.ColCalculation(&df); err != nil {
			return df, report, err
		}
	}

	return df, report, nil
}

func sample(df dataframe.DataFrame, size int, seed int64) dataframe.DataFrame {
	n := df.Nrow()
	if size <= 0 || size >= n {
		return df
	}
	rng := rand.New(rand.NewSource(seed))
	return df.Subset(rng.Perm(n)[:size])
}

func missingValues(df dataframe.DataFrame) []ColumnCount {
	var out []ColumnCount
	for _, name := range df.Names() {
		count := 0
		for _, na := range df.Col(name).IsNaN() {
			if na {
				count++
			}
		}
		if count > 0 {
			out = append(out, ColumnCount{Column: name, Missing: count})
		}
	}
	return out
}

// dropNA 移除包含缺失值的行
func dropNA(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	keep := make([]bool, df.Nrow())
	for i := range keep {
		keep[i] = true
	}
	for _, name := range df.Names() {
		for i, na := range df.Col(name).IsNaN() {
			if na {
				keep[i] = false
			}
		}
	}
	return subsetRows(df, keep)
}

func dropInvalidTimes(df dataframe.DataFrame, col string) (dataframe.DataFrame, int, error) {
	keep := make([]bool, df.Nrow())
	invalid := 0
	for i, v := range df.Col(col).Records() {
		if _, err := utils.ParseTime(v); err != nil {
			invalid++
			continue
		}
		keep[i] = true
	}
	if invalid == 0 {
		return df, 0, nil
	}
	df, err := subsetRows(df, keep)
	return df, invalid, err
}

// subsetRows 按布尔掩码保留行, 全部丢弃时返回 ErrEmptyResult
func subsetRows(df dataframe.DataFrame, keep []bool) (dataframe.DataFrame, error) {
	idx := make([]int, 0, len(keep))
	for i, k := range keep {
		if k {
			idx = append(idx, i)
		}
	}
	if len(idx) == len(keep) {
		return df, nil
	}
	if len(idx) == 0 {
		return df, ErrEmptyResult
	}
	out := df.Subset(idx)
	if out.Err != nil {
		return df, fmt.Errorf("筛选行失败: %w", out.Err)
	}
	return out, nil
}

// TimeColumns 从上车时间派生小时与星期
type TimeColumns struct {
	Cols config.Columns
}

func (tc TimeColumns) ColCalculation(data *dataframe.DataFrame) error {
	records := data.Col(tc.Cols.Datetime).Records()
	hours := make([]int, len(records))
	days := make([]int, len(records))
	names := make([]string, len(records))
	for i, v := range records {
		t, err := utils.ParseTime(v)
		if err != nil {
			return fmt.Errorf("第%d行时间解析失败: %w", i, err)
		}
		hours[i] = t.Hour()
		// time.Weekday 以周日为0, 转换为周一为0
		days[i] = (int(t.Weekday()) + 6) % 7
		names[i] = Weekdays[days[i]]
	}

	df := data.Mutate(series.New(hours, series.Int, ColHour)).
		Mutate(series.New(days, series.Int, ColDayOfWeek)).
		Mutate(series.New(names, series.String, ColDayName))
	if df.Err != nil {
		return fmt.Errorf("追加时间列失败: %w", df.Err)
	}
	*data = df
	return nil
}

// DistanceColumn 计算上下车点球面距离
type DistanceColumn struct {
	Cols config.Columns
}

func (dc DistanceColumn) ColCalculation(data *dataframe.DataFrame) error {
	plat := data.Col(dc.Cols.PickupLat).Float()
	plon := data.Col(dc.Cols.PickupLon).Float()
	dlat := data.Col(dc.Cols.DropoffLat).Float()
	dlon := data.Col(dc.Cols.DropoffLon).Float()

	dist := make([]float64, len(plat))
	for i := range plat {
		dist[i] = utils.Haversine(plat[i], plon[i], dlat[i], dlon[i])
	}

	df := data.Mutate(series.New(dist, series.Float, ColDistance))
	if df.Err != nil {
		return fmt.Errorf("追加距离列失败: %w", df.Err)
	}
	*data = df
	return nil
}
