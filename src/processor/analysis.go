package processor

import (
	"UberFareAnalysis/src/config"
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// GroupMean 分组均值
type GroupMean struct {
	Key   int     `json:"key"`
	Label string  `json:"label"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// GroupCount 分组计数
type GroupCount struct {
	Key   int `json:"key"`
	Count int `json:"count"`
}

// Float JSON 中 NaN 输出为 null
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

// Matrix 带行列标签的数值矩阵
type Matrix struct {
	Rows   []string  `json:"rows"`
	Cols   []string  `json:"cols"`
	Values [][]Float `json:"values"`
}

// Table 通用表格, 用于页面展示
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// IntRange 闭区间
type IntRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// PassengerRange 乘客数滑块的取值范围
func PassengerRange(df dataframe.DataFrame, cols config.Columns) IntRange {
	s := df.Col(cols.Passengers)
	return IntRange{Min: int(s.Min()), Max: int(s.Max())}
}

// HourRange 小时滑块的取值范围
func HourRange(df dataframe.DataFrame) IntRange {
	s := df.Col(ColHour)
	return IntRange{Min: int(s.Min()), Max: int(s.Max())}
}

// filterIntRange 按整数列闭区间过滤
func filterIntRange(df dataframe.DataFrame, col string, lo, hi int) (dataframe.DataFrame, error) {
	if lo > hi {
		return df, fmt.Errorf("%w: %s [%d, %d]", ErrInvalidRange, col, lo, hi)
	}
	out := df.FilterAggregation(dataframe.And,
		dataframe.F{Colname: col, Comparator: series.GreaterEq, Comparando: lo},
		dataframe.F{Colname: col, Comparator: series.LessEq, Comparando: hi},
	)
	if out.Err != nil {
		return df, fmt.Errorf("过滤 %s 失败: %w", col, out.Err)
	}
	return out, nil
}

// groupMean 按整数列分组计算均值, 结果按键升序
func groupMean(df dataframe.DataFrame, key, value string) ([]GroupMean, error) {
	if df.Nrow() == 0 {
		return nil, ErrEmptyResult
	}
	grouped := df.GroupBy(key).Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_MEAN, dataframe.Aggregation_COUNT},
		[]string{value, value},
	)
	if grouped.Err != nil {
		return nil, fmt.Errorf("分组计算失败: %w", grouped.Err)
	}
	grouped = grouped.Arrange(dataframe.Sort(key))
	if grouped.Err != nil {
		return nil, fmt.Errorf("分组排序失败: %w", grouped.Err)
	}

	keys := grouped.Col(key)
	means := grouped.Col(value + "_" + dataframe.Aggregation_MEAN.String())
	counts := grouped.Col(value + "_" + dataframe.Aggregation_COUNT.String())

	out := make([]GroupMean, grouped.Nrow())
	for i := range out {
		k, err := keys.Elem(i).Int()
		if err != nil {
			return nil, fmt.Errorf("分组键 %s 非整数: %w", key, err)
		}
		out[i] = GroupMean{
			Key:   k,
			Label: fmt.Sprint(k),
			Mean:  means.Elem(i).Float(),
			Count: int(counts.Elem(i).Float()),
		}
	}
	return out, nil
}

// PassengerFare 问题1: 乘客数与平均车费的关系
func PassengerFare(df dataframe.DataFrame, cols config.Columns, lo, hi int) ([]GroupMean, error) {
	filtered, err := filterIntRange(df, cols.Passengers, lo, hi)
	if err != nil {
		return nil, err
	}
	return groupMean(filtered, cols.Passengers, cols.Fare)
}

// HourlyFare 问题2: 不同时段的平均车费
// 小时需同时属于所选时段分类且位于 [lo, hi] 内
func HourlyFare(df dataframe.DataFrame, dcfg *config.DataConfig, category string, lo, hi int) ([]GroupMean, error) {
	tc, ok := dcfg.GetTimeCategory(category)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	filtered, err := filterIntRange(df, ColHour, lo, hi)
	if err != nil {
		return nil, err
	}
	filtered = filtered.Filter(dataframe.F{
		Colname:    ColHour,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			h, err := el.Int()
			return err == nil && tc.Contains(h)
		},
	})
	if filtered.Err != nil {
		return nil, fmt.Errorf("过滤时段失败: %w", filtered.Err)
	}
	return groupMean(filtered, ColHour, dcfg.Columns.Fare)
}

// WeekdayFare 按星期统计平均车费
func WeekdayFare(df dataframe.DataFrame, cols config.Columns) ([]GroupMean, error) {
	out, err := groupMean(df, ColDayOfWeek, cols.Fare)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Key >= 0 && out[i].Key < len(Weekdays) {
			out[i].Label = Weekdays[out[i].Key]
		}
	}
	return out, nil
}

// PassengerDistribution 乘客数分布
func PassengerDistribution(df dataframe.DataFrame, cols config.Columns) ([]GroupCount, error) {
	means, err := groupMean(df, cols.Passengers, cols.Fare)
	if err != nil {
		return nil, err
	}
	out := make([]GroupCount, len(means))
	for i, m := range means {
		out[i] = GroupCount{Key: m.Key, Count: m.Count}
	}
	return out, nil
}

// FareDistribution 指定车费分类的直方图
func FareDistribution(df dataframe.DataFrame, dcfg *config.DataConfig, category string) (Histogram, error) {
	fc, ok := dcfg.GetFareCategory(category)
	if !ok {
		return Histogram{}, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	filtered := df.Filter(dataframe.F{
		Colname:    dcfg.Columns.Fare,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			return !el.IsNA() && fc.Match(el.Float())
		},
	})
	if filtered.Err != nil {
		return Histogram{}, fmt.Errorf("过滤车费分类失败: %w", filtered.Err)
	}
	if filtered.Nrow() == 0 {
		return Histogram{}, ErrEmptyResult
	}
	return NewHistogram(filtered.Col(dcfg.Columns.Fare).Float(), dcfg.HistogramBins), nil
}

// numericColumns 参与描述统计与相关性分析的数值列
func numericColumns(cols config.Columns) []string {
	return []string{
		cols.Fare, cols.Passengers,
		cols.PickupLat, cols.PickupLon, cols.DropoffLat, cols.DropoffLon,
		ColHour, ColDayOfWeek, ColDistance,
	}
}

// Describe 数值列的描述统计
func Describe(df dataframe.DataFrame, cols config.Columns) (Table, error) {
	if df.Nrow() == 0 {
		return Table{}, ErrEmptyResult
	}
	described := df.Select(numericColumns(cols)).Describe()
	if described.Err != nil {
		return Table{}, fmt.Errorf("描述统计失败: %w", described.Err)
	}
	records := described.Records()
	return Table{Header: records[0], Rows: records[1:]}, nil
}

// HourWeekdayMatrix 星期 x 小时 的平均车费, 无数据的格为 NaN
func HourWeekdayMatrix(df dataframe.DataFrame, cols config.Columns) (Matrix, error) {
	if df.Nrow() == 0 {
		return Matrix{}, ErrEmptyResult
	}
	grouped := df.GroupBy(ColDayOfWeek, ColHour).Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_MEAN},
		[]string{cols.Fare},
	)
	if grouped.Err != nil {
		return Matrix{}, fmt.Errorf("分组计算失败: %w", grouped.Err)
	}

	m := Matrix{Rows: Weekdays, Cols: make([]string, 24), Values: make([][]Float, len(Weekdays))}
	for h := range m.Cols {
		m.Cols[h] = fmt.Sprintf("%02d", h)
	}
	for d := range m.Values {
		row := make([]Float, 24)
		for h := range row {
			row[h] = Float(math.NaN())
		}
		m.Values[d] = row
	}

	days := grouped.Col(ColDayOfWeek)
	hours := grouped.Col(ColHour)
	means := grouped.Col(cols.Fare + "_" + dataframe.Aggregation_MEAN.String())
	for i := 0; i < grouped.Nrow(); i++ {
		d, err1 := days.Elem(i).Int()
		h, err2 := hours.Elem(i).Int()
		if err1 != nil || err2 != nil || d < 0 || d > 6 || h < 0 || h > 23 {
			continue
		}
		m.Values[d][h] = Float(means.Elem(i).Float())
	}
	return m, nil
}

// Points 地图散点
type Points struct {
	Lons      []float64 `json:"lons"`
	Lats      []float64 `json:"lats"`
	Threshold float64   `json:"threshold"`
	Total     int       `json:"total"`
}

// PickupPoints 去掉高于分位数的车费后, 均匀抽取最多 limit 个上车点
func PickupPoints(df dataframe.DataFrame, cols config.Columns, q float64, limit int) (Points, error) {
	trimmed, threshold, err := QuantileTrim(df, cols.Fare, q)
	if err != nil {
		return Points{}, err
	}
	lons := trimmed.Col(cols.PickupLon).Float()
	lats := trimmed.Col(cols.PickupLat).Float()

	p := Points{Threshold: threshold, Total: len(lons)}
	step := 1
	if limit > 0 && len(lons) > limit {
		step = int(math.Ceil(float64(len(lons)) / float64(limit)))
	}
	for i := 0; i < len(lons); i += step {
		p.Lons = append(p.Lons, lons[i])
		p.Lats = append(p.Lats, lats[i])
	}
	return p, nil
}
