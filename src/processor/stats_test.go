package processor

import (
	"errors"
	"math"
	"testing"
)

func TestNewHistogram(t *testing.T) {
	values := []float64{1, 2, 2, 3, 3, 3, 10}
	h := NewHistogram(values, 3)
	if len(h.Edges) != 4 || len(h.Counts) != 3 {
		t.Fatalf("Edges=%v Counts=%v", h.Edges, h.Counts)
	}
	if h.Edges[0] != 1 || h.Edges[3] != 10 {
		t.Errorf("边界 = %v", h.Edges)
	}
	// 最大值落入最后一个箱
	if h.Counts[0] != 6 || h.Counts[2] != 1 {
		t.Errorf("Counts = %v", h.Counts)
	}
	if h.Total != len(values) {
		t.Errorf("Total = %d", h.Total)
	}
	if len(h.KDE) != 3 {
		t.Errorf("KDE 长度 = %d", len(h.KDE))
	}
}

func TestNewHistogramConstant(t *testing.T) {
	h := NewHistogram([]float64{5, 5, 5}, 4)
	sum := 0
	for _, c := range h.Counts {
		sum += c
	}
	if sum != 3 {
		t.Errorf("计数之和 = %d", sum)
	}
	if h.Edges[0] >= h.Edges[len(h.Edges)-1] {
		t.Errorf("常数数据的边界应被展开: %v", h.Edges)
	}
	// 标准差为 0 时不估计密度
	if h.KDE != nil {
		t.Errorf("KDE = %v", h.KDE)
	}
}

func TestNewHistogramEmpty(t *testing.T) {
	h := NewHistogram(nil, 10)
	if h.Total != 0 || len(h.Counts) != 0 {
		t.Errorf("空输入 = %+v", h)
	}
}

func TestKDEScale(t *testing.T) {
	values := make([]float64, 200)
	for i := range values {
		values[i] = float64(i % 20)
	}
	h := NewHistogram(values, 20)
	var kdeSum float64
	for _, v := range h.KDE {
		kdeSum += v
	}
	// 按计数缩放后, 密度曲线下的面积应接近样本数
	if kdeSum < 150 || kdeSum > 210 {
		t.Errorf("KDE 总和 = %v, 应接近 200", kdeSum)
	}
}

func TestQuantile(t *testing.T) {
	values := []float64{5, 1, 4, 2, 3}
	if q := Quantile(values, 1); q != 5 {
		t.Errorf("Quantile(1) = %v", q)
	}
	if q := Quantile(values, 0.5); q != 3 {
		t.Errorf("Quantile(0.5) = %v", q)
	}
	// 不修改输入
	if values[0] != 5 {
		t.Error("Quantile 修改了输入切片")
	}
}

func TestQuantileTrim(t *testing.T) {
	df, dcfg := cleanSample(t)
	trimmed, threshold, err := QuantileTrim(df, dcfg.Columns.Fare, 0.9)
	if err != nil {
		t.Fatalf("QuantileTrim: %v", err)
	}
	if threshold != 24.5 {
		t.Errorf("threshold = %v, want 24.5", threshold)
	}
	for _, v := range trimmed.Col(dcfg.Columns.Fare).Float() {
		if v > threshold {
			t.Errorf("保留了高于阈值的车费 %v", v)
		}
	}
	if trimmed.Nrow() != 9 {
		t.Errorf("rows = %d, want 9", trimmed.Nrow())
	}

	for _, q := range []float64{0, -0.1, 1.5, math.NaN()} {
		if _, _, err := QuantileTrim(df, dcfg.Columns.Fare, q); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("q=%v err = %v, want ErrInvalidRange", q, err)
		}
	}
}

func TestCorrelation(t *testing.T) {
	df, dcfg := cleanSample(t)
	m, err := Correlation(df, dcfg.Columns)
	if err != nil {
		t.Fatalf("Correlation: %v", err)
	}
	n := len(m.Rows)
	if n != 9 || len(m.Values) != n {
		t.Fatalf("矩阵尺寸 = %d", n)
	}
	for i := 0; i < n; i++ {
		if m.Values[i][i] != 1 {
			t.Errorf("对角线 [%d] = %v", i, m.Values[i][i])
		}
		for j := 0; j < n; j++ {
			a, b := float64(m.Values[i][j]), float64(m.Values[j][i])
			if math.Abs(a-b) > 1e-12 {
				t.Errorf("矩阵不对称 [%d][%d]=%v [%d][%d]=%v", i, j, a, j, i, b)
			}
			if a < -1-1e-9 || a > 1+1e-9 {
				t.Errorf("相关系数越界 [%d][%d]=%v", i, j, a)
			}
		}
	}
}
