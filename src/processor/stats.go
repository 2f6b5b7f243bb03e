package processor

import (
	"UberFareAnalysis/src/config"
	"fmt"
	"math"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"
)

// Histogram 等宽直方图, Edges 比 Counts 多一个元素
// KDE 为各箱中心处的核密度估计, 已按样本数与箱宽缩放到计数尺度
type Histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []int     `json:"counts"`
	KDE    []float64 `json:"kde,omitempty"`
	Total  int       `json:"total"`
}

// Centers 各箱中心
func (h Histogram) Centers() []float64 {
	if len(h.Edges) < 2 {
		return nil
	}
	out := make([]float64, len(h.Edges)-1)
	for i := range out {
		out[i] = (h.Edges[i] + h.Edges[i+1]) / 2
	}
	return out
}

// NewHistogram 将 values 分为 bins 个等宽箱
func NewHistogram(values []float64, bins int) Histogram {
	if bins <= 0 {
		bins = 30
	}
	h := Histogram{Total: len(values)}
	if len(values) == 0 {
		return h
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	width := (hi - lo) / float64(bins)

	h.Edges = make([]float64, bins+1)
	for i := range h.Edges {
		h.Edges[i] = lo + float64(i)*width
	}
	h.Edges[bins] = hi

	h.Counts = make([]int, bins)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		h.Counts[idx]++
	}

	h.KDE = gaussianKDE(values, h.Centers(), width)
	return h
}

// gaussianKDE 高斯核密度, 带宽按 Scott 规则
func gaussianKDE(values, at []float64, binWidth float64) []float64 {
	n := float64(len(values))
	if n < 2 {
		return nil
	}
	sd := stat.StdDev(values, nil)
	if sd == 0 || math.IsNaN(sd) {
		return nil
	}
	bw := sd * math.Pow(n, -0.2)

	out := make([]float64, len(at))
	norm := 1 / (n * bw * math.Sqrt(2*math.Pi))
	for i, x := range at {
		var sum float64
		for _, v := range values {
			z := (x - v) / bw
			sum += math.Exp(-0.5 * z * z)
		}
		out[i] = sum * norm * n * binWidth
	}
	return out
}

// Quantile 经验分位数
func Quantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

// QuantileTrim 保留 column <= 第 q 分位数的行, 0 < q <= 1
func QuantileTrim(df dataframe.DataFrame, column string, q float64) (dataframe.DataFrame, float64, error) {
	if q <= 0 || q > 1 || math.IsNaN(q) {
		return df, 0, fmt.Errorf("%w: quantile %v", ErrInvalidRange, q)
	}
	if df.Nrow() == 0 {
		return df, 0, ErrEmptyResult
	}
	threshold := Quantile(df.Col(column).Float(), q)
	out := df.Filter(dataframe.F{Colname: column, Comparator: series.LessEq, Comparando: threshold})
	if out.Err != nil {
		return df, 0, fmt.Errorf("分位数过滤失败: %w", out.Err)
	}
	if out.Nrow() == 0 {
		return out, threshold, ErrEmptyResult
	}
	return out, threshold, nil
}

// Correlation 数值列之间的皮尔逊相关系数矩阵
func Correlation(df dataframe.DataFrame, cols config.Columns) (Matrix, error) {
	if df.Nrow() < 2 {
		return Matrix{}, ErrEmptyResult
	}
	names := numericColumns(cols)
	data := make([][]float64, len(names))
	for i, name := range names {
		data[i] = df.Col(name).Float()
	}

	m := Matrix{Rows: names, Cols: names, Values: make([][]Float, len(names))}
	for i := range names {
		m.Values[i] = make([]Float, len(names))
		for j := range names {
			if i == j {
				m.Values[i][j] = 1
				continue
			}
			m.Values[i][j] = Float(stat.Correlation(data[i], data[j], nil))
		}
	}
	return m, nil
}
