// Package plot 将分析结果渲染为PNG图片
package plot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 800
	Height = 400
)

var (
	barColor  = drawing.ColorFromHex("1f77b4")
	lineColor = drawing.ColorFromHex("ff7f0e")
	dotColor  = drawing.Color{R: 31, G: 119, B: 180, A: 110}
)

// canvasStyle 统一的背景留白
func canvasStyle() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}}
}

// Bar 柱状图, labels 与 values 一一对应
func Bar(w io.Writer, title, yName string, labels []string, values []float64) error {
	if len(labels) != len(values) {
		return fmt.Errorf("柱状图标签与数值数量不一致: %d != %d", len(labels), len(values))
	}
	if len(values) == 0 {
		return Placeholder(w, Width, Height, title+": 无数据")
	}

	bars := make([]chart.Value, len(values))
	_, max := bounds(values)
	for i, v := range values {
		bars[i] = chart.Value{
			Label: labels[i],
			Value: v,
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor, StrokeWidth: 1},
		}
	}
	if max <= 0 {
		max = 1
	}

	// 柱宽随柱数收缩, 避免超出画布
	barWidth := (Width - 120) / len(bars) * 3 / 4
	if barWidth > 60 {
		barWidth = 60
	}
	if barWidth < 4 {
		barWidth = 4
	}

	bc := chart.BarChart{
		Title:      title,
		Width:      Width,
		Height:     Height,
		Background: canvasStyle(),
		BarWidth:   barWidth,
		BarSpacing: barWidth / 3,
		YAxis: chart.YAxis{
			Name:  yName,
			Range: &chart.ContinuousRange{Min: 0, Max: max * 1.1},
		},
		Bars: bars,
	}
	return render(w, bc.Render, title)
}

// Line 折线图, 带数据点
func Line(w io.Writer, title, xName, yName string, xs, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("折线图 x/y 数量不一致: %d != %d", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return Placeholder(w, Width, Height, title+": 无数据")
	}

	xmin, xmax := padded(bounds(xs))
	ymin, ymax := padded(bounds(ys))
	if ymin > 0 {
		ymin = 0
	}

	// go-chart 用刻度的极值覆盖 x 轴区间, 两端补空标签刻度保持显式区间
	ticks := make([]chart.Tick, 0, len(xs)+2)
	ticks = append(ticks, chart.Tick{Value: xmin})
	for _, x := range xs {
		ticks = append(ticks, chart.Tick{Value: x, Label: fmt.Sprintf("%g", x)})
	}
	ticks = append(ticks, chart.Tick{Value: xmax})

	ch := chart.Chart{
		Title:      title,
		Width:      Width,
		Height:     Height,
		Background: canvasStyle(),
		XAxis: chart.XAxis{
			Name:  xName,
			Range: &chart.ContinuousRange{Min: xmin, Max: xmax},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name:  yName,
			Range: &chart.ContinuousRange{Min: ymin, Max: ymax},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    yName,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: barColor,
					StrokeWidth: 2,
					DotColor:    barColor,
					DotWidth:    4,
				},
			},
		},
	}
	return render(w, ch.Render, title)
}

// Histogram 直方图, 可叠加按计数缩放的密度曲线
// edges 比 counts 多一个元素
func Histogram(w io.Writer, title, xName string, edges []float64, counts []int, kde []float64) error {
	if len(counts) == 0 || len(edges) != len(counts)+1 {
		return Placeholder(w, Width, Height, title+": 无数据")
	}

	// 阶梯折线 + 填充 = 直方图外观
	xs := make([]float64, 0, 2*len(counts)+2)
	ys := make([]float64, 0, 2*len(counts)+2)
	xs = append(xs, edges[0])
	ys = append(ys, 0)
	var ymax float64
	for i, c := range counts {
		v := float64(c)
		xs = append(xs, edges[i], edges[i+1])
		ys = append(ys, v, v)
		ymax = math.Max(ymax, v)
	}
	xs = append(xs, edges[len(edges)-1])
	ys = append(ys, 0)

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "count",
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: barColor,
				StrokeWidth: 1,
				FillColor:   barColor.WithAlpha(150),
			},
		},
	}

	if len(kde) == len(counts) {
		centers := make([]float64, len(counts))
		for i := range centers {
			centers[i] = (edges[i] + edges[i+1]) / 2
			ymax = math.Max(ymax, kde[i])
		}
		series = append(series, chart.ContinuousSeries{
			Name:    "kde",
			XValues: centers,
			YValues: kde,
			Style:   chart.Style{StrokeColor: lineColor, StrokeWidth: 2},
		})
	}
	if ymax <= 0 {
		ymax = 1
	}

	ch := chart.Chart{
		Title:      title,
		Width:      Width,
		Height:     Height,
		Background: canvasStyle(),
		XAxis: chart.XAxis{
			Name:  xName,
			Range: &chart.ContinuousRange{Min: edges[0], Max: edges[len(edges)-1]},
		},
		YAxis: chart.YAxis{
			Name:  "count",
			Range: &chart.ContinuousRange{Min: 0, Max: ymax * 1.1},
		},
		Series: series,
	}
	return render(w, ch.Render, title)
}

// Scatter 散点图, xr/yr 为坐标轴范围
func Scatter(w io.Writer, title, xName, yName string, xs, ys []float64, xr, yr [2]float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("散点图 x/y 数量不一致: %d != %d", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return Placeholder(w, Width, Height, title+": 无数据")
	}
	if xr[0] >= xr[1] {
		xr[0], xr[1] = padded(bounds(xs))
	}
	if yr[0] >= yr[1] {
		yr[0], yr[1] = padded(bounds(ys))
	}

	ch := chart.Chart{
		Title:      title,
		Width:      Height + Height/2,
		Height:     Height + Height/2,
		Background: canvasStyle(),
		XAxis:      chart.XAxis{Name: xName, Range: &chart.ContinuousRange{Min: xr[0], Max: xr[1]}},
		YAxis:      chart.YAxis{Name: yName, Range: &chart.ContinuousRange{Min: yr[0], Max: yr[1]}},
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotColor:    dotColor,
					DotWidth:    2,
				},
			},
		},
	}
	return render(w, ch.Render, title)
}

// render 渲染失败时写出占位图并返回错误
func render(w io.Writer, fn func(chart.RendererProvider, io.Writer) error, title string) error {
	var buf bytes.Buffer
	if err := fn(chart.PNG, &buf); err != nil {
		if perr := Placeholder(w, Width, Height, title+": 渲染失败"); perr != nil {
			return perr
		}
		return fmt.Errorf("渲染图表 %s 失败: %w", title, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Placeholder 带文字提示的空白图片
func Placeholder(w io.Writer, width, height int, text string) error {
	img := blank(width, height)
	drawText(img, text, 12, height/2, color.RGBA{R: 90, G: 90, B: 90, A: 255})
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("编码PNG失败: %w", err)
	}
	return nil
}

func blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// drawText 使用 7x13 点阵字体, (x, y) 为基线起点
func drawText(img draw.Image, text string, x, y int, col color.Color) {
	dr := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	dr.DrawString(text)
}

// textWidth 文本像素宽度
func textWidth(text string) int {
	return font.MeasureString(basicfont.Face7x13, text).Ceil()
}

// fit 截断文本使其不超过 width 像素
func fit(text string, width int) string {
	if textWidth(text) <= width {
		return text
	}
	r := []rune(text)
	for len(r) > 0 && textWidth(string(r)+".") > width {
		r = r[:len(r)-1]
	}
	if len(r) == 0 {
		return ""
	}
	return strings.TrimSpace(string(r)) + "."
}

func bounds(vs []float64) (float64, float64) {
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		if math.IsNaN(v) {
			continue
		}
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	if math.IsInf(min, 1) {
		return 0, 1
	}
	return min, max
}

// padded 两端各留 5% 空白, 区间为零时扩展为 ±0.5
func padded(min, max float64) (float64, float64) {
	if max-min == 0 {
		return min - 0.5, max + 0.5
	}
	pad := (max - min) * 0.05
	return min - pad, max + pad
}
