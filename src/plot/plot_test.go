package plot

import (
	"bytes"
	"image/png"
	"math"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) (int, int) {
	t.Helper()
	img, err := png.Decode(buf)
	if err != nil {
		t.Fatalf("输出不是合法PNG: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestBar(t *testing.T) {
	var buf bytes.Buffer
	err := Bar(&buf, "Average fare by passengers", "fare", []string{"1", "2", "3"}, []float64{10.5, 11.2, 12})
	if err != nil {
		t.Fatalf("Bar: %v", err)
	}
	if w, h := decode(t, &buf); w != Width || h != Height {
		t.Errorf("尺寸 %dx%d", w, h)
	}
}

func TestBarSingleValue(t *testing.T) {
	var buf bytes.Buffer
	if err := Bar(&buf, "one", "fare", []string{"1"}, []float64{8}); err != nil {
		t.Fatalf("Bar: %v", err)
	}
	decode(t, &buf)
}

func TestBarMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := Bar(&buf, "bad", "", []string{"a"}, nil); err == nil {
		t.Error("标签与数值数量不一致应报错")
	}
}

func TestLine(t *testing.T) {
	var buf bytes.Buffer
	err := Line(&buf, "Hourly fare", "hour", "fare", []float64{7, 8, 9}, []float64{10, 12, 11})
	if err != nil {
		t.Fatalf("Line: %v", err)
	}
	decode(t, &buf)

	// 单点时区间为零, 应仍可渲染
	buf.Reset()
	if err := Line(&buf, "single", "hour", "fare", []float64{7}, []float64{10}); err != nil {
		t.Fatalf("Line 单点: %v", err)
	}
	decode(t, &buf)
}

func TestHistogram(t *testing.T) {
	var buf bytes.Buffer
	edges := []float64{0, 5, 10, 15}
	counts := []int{2, 5, 1}
	kde := []float64{2.1, 4.2, 1.3}
	if err := Histogram(&buf, "Fare distribution", "fare", edges, counts, kde); err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	decode(t, &buf)
}

func TestHistogramEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Histogram(&buf, "empty", "fare", nil, nil, nil); err != nil {
		t.Fatalf("空直方图应返回占位图: %v", err)
	}
	decode(t, &buf)
}

func TestScatter(t *testing.T) {
	var buf bytes.Buffer
	xs := []float64{-73.99, -73.98, -73.95}
	ys := []float64{40.75, 40.76, 40.78}
	if err := Scatter(&buf, "Pickups", "lon", "lat", xs, ys, [2]float64{-74.3, -73.7}, [2]float64{40.4, 41}); err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	decode(t, &buf)
}

func TestHeatmap(t *testing.T) {
	var buf bytes.Buffer
	values := [][]float64{
		{1, 0.5, math.NaN()},
		{0.5, 1, -0.3},
	}
	err := Heatmap(&buf, "corr", []string{"a", "b"}, []string{"a", "b", "c"}, values, Diverging, true)
	if err != nil {
		t.Fatalf("Heatmap: %v", err)
	}
	w, h := decode(t, &buf)
	if w <= 0 || h <= 0 {
		t.Errorf("尺寸 %dx%d", w, h)
	}
}

func TestHeatmapShape(t *testing.T) {
	var buf bytes.Buffer
	err := Heatmap(&buf, "bad", []string{"a"}, []string{"x", "y"}, [][]float64{{1}}, Sequential, false)
	if err == nil {
		t.Error("行长度与列数不一致应报错")
	}
}

func TestPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	if err := Placeholder(&buf, 320, 120, "no data"); err != nil {
		t.Fatalf("Placeholder: %v", err)
	}
	if w, h := decode(t, &buf); w != 320 || h != 120 {
		t.Errorf("尺寸 %dx%d", w, h)
	}
}

func TestFit(t *testing.T) {
	if got := fit("abc", 100); got != "abc" {
		t.Errorf("fit 短文本 = %q", got)
	}
	got := fit("pickup_longitude", 50)
	if textWidth(got) > 50 {
		t.Errorf("fit 结果 %q 超宽", got)
	}
}

func TestColorAt(t *testing.T) {
	c := colorAt(Diverging, 0.5)
	if c.R != 245 || c.G != 245 || c.B != 245 {
		t.Errorf("发散色标中点应为白色, got %v", c)
	}
	if colorAt(Sequential, -1) != colorAt(Sequential, 0) {
		t.Error("越界取值应被截断")
	}
}
