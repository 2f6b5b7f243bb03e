package utils

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// 支持的上车时间格式, 依次尝试
var timeLayouts = []string{
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02",
}

const earthRadiusKm = 6371.0

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// MissingColumns 返回 df 中缺失的列
func MissingColumns(df dataframe.DataFrame, names ...string) []string {
	var missing []string
	for _, name := range names {
		if !HasColumn(df, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// ParseTime 按多种格式解析时间, 结果统一为 UTC
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("时间为空")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析时间: %q", s)
}

// Haversine 计算两点间球面距离(公里)
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// WriteExcel 将DataFrame写入xlsx
func WriteExcel(df dataframe.DataFrame, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"

	// 写入列名
	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, name)
	}

	// 写入数据
	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			e := col.Elem(rowIdx)
			if e.IsNA() {
				continue
			}
			switch col.Type() {
			case series.Float:
				f.SetCellValue(sheetName, cell, e.Float())
			case series.Int:
				v, _ := e.Int()
				f.SetCellValue(sheetName, cell, v)
			default:
				f.SetCellValue(sheetName, cell, e.String())
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}
