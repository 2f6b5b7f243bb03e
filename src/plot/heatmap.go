package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
)

// Scale 热力图取值到颜色的映射
type Scale int

const (
	// Sequential 从浅黄到深红, 用于非负数据
	Sequential Scale = iota
	// Diverging 蓝-白-红, 固定区间 [-1, 1], 用于相关系数
	Diverging
)

var (
	nanColor  = color.RGBA{R: 220, G: 220, B: 220, A: 255}
	textColor = color.RGBA{R: 30, G: 30, B: 30, A: 255}
)

// Heatmap 绘制带行列标签的热力图, NaN 单元格显示为灰色
// annotate 为真时在单元格内写出数值
func Heatmap(w io.Writer, title string, rows, cols []string, values [][]float64, scale Scale, annotate bool) error {
	if len(rows) == 0 || len(cols) == 0 || len(values) != len(rows) {
		return Placeholder(w, Width, Height, title+": 无数据")
	}
	for i, row := range values {
		if len(row) != len(cols) {
			return fmt.Errorf("热力图第%d行长度 %d 与列数 %d 不一致", i, len(row), len(cols))
		}
	}

	left := 10
	for _, r := range rows {
		left = max(left, textWidth(r)+16)
	}
	const (
		top    = 36
		bottom = 30
		right  = 70
	)
	cellW := (Width - left - right) / len(cols)
	if cellW < 8 {
		cellW = 8
	}
	cellH := 28
	if len(rows) > 10 {
		cellH = 20
	}
	width := left + cellW*len(cols) + right
	height := top + cellH*len(rows) + bottom
	img := blank(width, height)

	lo, hi := 0.0, 1.0
	if scale == Diverging {
		lo, hi = -1, 1
	} else {
		flat := make([]float64, 0, len(rows)*len(cols))
		for _, row := range values {
			flat = append(flat, row...)
		}
		lo, hi = bounds(flat)
		if hi == lo {
			hi = lo + 1
		}
	}

	drawText(img, title, left, 22, textColor)
	for i, row := range values {
		y := top + i*cellH
		drawText(img, rows[i], 6, y+cellH/2+5, textColor)
		for j, v := range row {
			x := left + j*cellW
			c := nanColor
			if !math.IsNaN(v) {
				c = colorAt(scale, (v-lo)/(hi-lo))
			}
			rect := image.Rect(x, y, x+cellW-1, y+cellH-1)
			draw.Draw(img, rect, image.NewUniform(c), image.Point{}, draw.Src)
			if annotate && !math.IsNaN(v) {
				label := fit(fmt.Sprintf("%.2f", v), cellW-4)
				drawText(img, label, x+(cellW-textWidth(label))/2, y+cellH/2+5, textColor)
			}
		}
	}
	for j, name := range cols {
		label := fit(name, cellW-2)
		x := left + j*cellW + (cellW-textWidth(label))/2
		drawText(img, label, x, top+len(rows)*cellH+16, textColor)
	}

	// 色标
	legendX := left + len(cols)*cellW + 14
	legendH := len(rows) * cellH
	for k := 0; k < legendH; k++ {
		t := 1 - float64(k)/float64(max(legendH-1, 1))
		rect := image.Rect(legendX, top+k, legendX+14, top+k+1)
		draw.Draw(img, rect, image.NewUniform(colorAt(scale, t)), image.Point{}, draw.Src)
	}
	drawText(img, fmt.Sprintf("%.1f", hi), legendX+18, top+10, textColor)
	drawText(img, fmt.Sprintf("%.1f", lo), legendX+18, top+legendH, textColor)

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("编码PNG失败: %w", err)
	}
	return nil
}

// colorAt t 取值 [0, 1]
func colorAt(scale Scale, t float64) color.RGBA {
	t = math.Max(0, math.Min(1, t))
	if scale == Diverging {
		blue := color.RGBA{R: 59, G: 76, B: 192, A: 255}
		white := color.RGBA{R: 245, G: 245, B: 245, A: 255}
		red := color.RGBA{R: 180, G: 4, B: 38, A: 255}
		if t < 0.5 {
			return lerp(blue, white, t*2)
		}
		return lerp(white, red, (t-0.5)*2)
	}
	light := color.RGBA{R: 255, G: 255, B: 204, A: 255}
	mid := color.RGBA{R: 253, G: 141, B: 60, A: 255}
	dark := color.RGBA{R: 128, G: 0, B: 38, A: 255}
	if t < 0.5 {
		return lerp(light, mid, t*2)
	}
	return lerp(mid, dark, (t-0.5)*2)
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}
