// reader.go
package file

import (
	"UberFareAnalysis/src/config"
	"UberFareAnalysis/src/utils"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

const (
	Number string = "^[0-9]+(\\.[0-9]+)?$"
)

var (
	// ErrMissingColumn 数据集缺少清洗所需的列
	ErrMissingColumn = errors.New("缺少必需列")
	// ErrEmptyFile 数据集没有数据行
	ErrEmptyFile = errors.New("数据文件为空")

	numberRe = regexp.MustCompile(Number)
)

// nanValues 视为缺失值的单元格内容
var nanValues = []string{"", "NA", "NaN", "nan", "<nil>", "null"}

// Load 根据扩展名读取 .csv 或 .xlsx 数据集
func Load(path, sheetName string, cols config.Columns) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, sheetName, cols)
	case ".csv", "":
		return ReadCSV(path, cols)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("不支持的文件类型: %s", filepath.Ext(path))
	}
}

// ReadCSV 读取CSV为DataFrame, 必需列使用固定类型
func ReadCSV(path string, cols config.Columns) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("读取CSV失败: %w", err)
	}
	defer f.Close()

	// gota 会把空标题改名为 X0, 先读出原始标题行
	header, _ := csv.NewReader(f).Read()
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("读取CSV失败: %w", err)
	}

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(nanValues),
		dataframe.WithTypes(columnTypes(cols)),
	)
	if df.Err != nil {
		if strings.Contains(df.Err.Error(), "empty") {
			return dataframe.DataFrame{}, fmt.Errorf("%s: %w", path, ErrEmptyFile)
		}
		return dataframe.DataFrame{}, fmt.Errorf("解析CSV失败: %w", df.Err)
	}
	df = renameUnnamed(df, header)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("重命名空标题列失败: %w", df.Err)
	}
	return checkColumns(df, cols)
}

// unnamedColumn 空标题列的名称, 与 pandas 导出的 "Unnamed: 0" 一致
func unnamedColumn(i int) string {
	return fmt.Sprintf("Unnamed: %d", i)
}

// renameUnnamed 按原始标题行把空标题列改名为 unnamedColumn(i)
func renameUnnamed(df dataframe.DataFrame, header []string) dataframe.DataFrame {
	names := df.Names()
	for i, h := range header {
		if h != "" || i >= len(names) {
			continue
		}
		df = df.Rename(unnamedColumn(i), names[i])
	}
	return df
}

// ReadXLSX 读取xlsx工作表为DataFrame
// 第一行为标题行, sheetName 为空时读取第一个工作表
func ReadXLSX(path, sheetName string, cols config.Columns) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表: %s", path)
	}

	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 不存在", sheetName)
		}
		sheet = s
	}

	records := sheetRecords(sheet, cols.Datetime)
	if len(records) < 2 {
		return dataframe.DataFrame{}, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	for i, h := range records[0] {
		if h == "" {
			records[0][i] = unnamedColumn(i)
		}
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(nanValues),
		dataframe.WithTypes(columnTypes(cols)),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("转换为dataframe失败: %w", df.Err)
	}
	return checkColumns(df, cols)
}

// sheetRecords 将xlsx.Sheet转换为字符串记录, 时间列的Excel序列号转为时间字符串
func sheetRecords(sheet *xlsx.Sheet, timeCol string) [][]string {
	if len(sheet.Rows) == 0 {
		return nil
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}
	timeIdx := -1
	for i, h := range headers {
		if h == timeCol {
			timeIdx = i
		}
	}

	records := [][]string{headers}
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		rec := make([]string, len(headers))
		empty := true
		for i, cell := range row.Cells {
			if i >= len(headers) {
				break
			}
			v := strings.TrimSpace(cell.Value)
			if i == timeIdx {
				v = excelToTime(v)
			}
			rec[i] = v
			if v != "" {
				empty = false
			}
		}
		if !empty {
			records = append(records, rec)
		}
	}
	return records
}

// excelToTime Excel日期序列号转时间字符串, 非数值原样返回
func excelToTime(v string) string {
	if !numberRe.MatchString(v) {
		return v
	}
	excelDays, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}

	// 基准日 1899-12-30 已抵消Excel的1900年闰年错误
	base := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	days := int(excelDays)
	fraction := excelDays - float64(days)

	result := base.AddDate(0, 0, days).
		Add(time.Duration(86400*fraction*1e9) * time.Nanosecond).
		Round(time.Second)

	return result.Format("2006-01-02 15:04:05")
}

func columnTypes(cols config.Columns) map[string]series.Type {
	return map[string]series.Type{
		cols.Datetime:   series.String,
		cols.Fare:       series.Float,
		cols.Passengers: series.Int,
		cols.PickupLat:  series.Float,
		cols.PickupLon:  series.Float,
		cols.DropoffLat: series.Float,
		cols.DropoffLon: series.Float,
	}
}

func checkColumns(df dataframe.DataFrame, cols config.Columns) (dataframe.DataFrame, error) {
	if missing := utils.MissingColumns(df, cols.Required()...); len(missing) > 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	if df.Nrow() == 0 {
		return dataframe.DataFrame{}, ErrEmptyFile
	}
	return df, nil
}

// EnsureDir 确保目录存在
func EnsureDir(dirPath string) error {
	if info, err := os.Stat(dirPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return os.MkdirAll(dirPath, 0755)
}
