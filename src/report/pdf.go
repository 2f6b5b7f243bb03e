// Package report 生成PDF报告与定时导出
package report

import (
	"UberFareAnalysis/src/config"
	"UberFareAnalysis/src/plot"
	"UberFareAnalysis/src/processor"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/phpdave11/gofpdf"
)

// Build 根据数据快照生成A4报告
// 内置字体不支持中文, 报告正文使用英文
func Build(w io.Writer, snap processor.Snapshot, dcfg *config.DataConfig) error {
	cols := dcfg.Columns
	sum := snap.Summary(cols)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Uber Fare Analysis", false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Uber Fare Analysis Report")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, "Generated : "+time.Now().Format("2006-01-02 15:04"))
	pdf.Ln(6)
	pdf.Cell(0, 6, "Data loaded: "+snap.LoadedAt.Format("2006-01-02 15:04:05"))
	pdf.Ln(10)

	heading(pdf, "Summary")
	for _, line := range []string{
		fmt.Sprintf("Rows after cleaning : %d", sum.Rows),
		fmt.Sprintf("Mean fare           : $%.2f", sum.MeanFare),
		fmt.Sprintf("Median fare         : $%.2f", sum.MedianFare),
		fmt.Sprintf("Mean passengers     : %.2f", sum.MeanPassengers),
		fmt.Sprintf("Mean distance       : %.2f km", sum.MeanDistanceKm),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}
	pdf.Ln(4)

	r := snap.Report
	heading(pdf, "Cleaning stages")
	table(pdf, []string{"Stage", "Rows"}, [][]string{
		{"Raw", fmt.Sprint(r.RawRows)},
		{"Sampled", fmt.Sprint(r.SampledRows)},
		{"After dropping missing values", fmt.Sprint(r.AfterDropNA)},
		{"Invalid datetime dropped", fmt.Sprint(r.InvalidDatetime)},
		{"After fare > 0", fmt.Sprint(r.AfterFare)},
		{"After passengers > 0", fmt.Sprint(r.AfterPassengers)},
		{"After coordinate bounds", fmt.Sprint(r.AfterBounds)},
	}, []float64{90, 40})

	pr := processor.PassengerRange(snap.Frame, cols)
	pf, err := processor.PassengerFare(snap.Frame, cols, pr.Min, pr.Max)
	if err != nil && !errors.Is(err, processor.ErrEmptyResult) {
		return err
	}
	heading(pdf, "Average fare by passenger count")
	table(pdf, []string{"Passengers", "Mean fare", "Trips"}, groupRows(pf), []float64{40, 40, 40})

	wf, err := processor.WeekdayFare(snap.Frame, cols)
	if err != nil && !errors.Is(err, processor.ErrEmptyResult) {
		return err
	}
	heading(pdf, "Average fare by weekday")
	table(pdf, []string{"Weekday", "Mean fare", "Trips"}, groupRows(wf), []float64{40, 40, 40})

	charts, err := renderCharts(snap, dcfg, pf, wf)
	if err != nil {
		return err
	}
	pdf.AddPage()
	heading(pdf, "Charts")
	for i, png := range charts {
		name := fmt.Sprintf("chart%d", i)
		opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(png))
		// 宽 180mm, 高度按比例
		pdf.ImageOptions(name, 15, pdf.GetY(), 180, 0, true, opt, 0, "")
		pdf.Ln(4)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("生成PDF失败: %w", err)
	}
	return nil
}

func heading(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, text)
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 11)
}

func table(pdf *gofpdf.Fpdf, header []string, rows [][]string, widths []float64) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		for i, v := range row {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, v, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(5)
}

func groupRows(groups []processor.GroupMean) [][]string {
	rows := make([][]string, len(groups))
	for i, g := range groups {
		rows[i] = []string{g.Label, fmt.Sprintf("%.2f", g.Mean), fmt.Sprint(g.Count)}
	}
	return rows
}

// renderCharts 报告中嵌入的图表
func renderCharts(snap processor.Snapshot, dcfg *config.DataConfig, pf, wf []processor.GroupMean) ([][]byte, error) {
	var out [][]byte

	var buf bytes.Buffer
	labels, values := splitGroups(pf)
	if err := plot.Bar(&buf, "Average fare by passenger count", "fare ($)", labels, values); err != nil {
		return nil, err
	}
	out = append(out, append([]byte(nil), buf.Bytes()...))

	buf.Reset()
	xs := make([]float64, len(wf))
	ys := make([]float64, len(wf))
	for i, g := range wf {
		xs[i], ys[i] = float64(g.Key), g.Mean
	}
	if err := plot.Line(&buf, "Average fare by weekday (0=Monday)", "day of week", "fare ($)", xs, ys); err != nil {
		return nil, err
	}
	out = append(out, append([]byte(nil), buf.Bytes()...))

	buf.Reset()
	fares := snap.Frame.Col(dcfg.Columns.Fare).Float()
	h := processor.NewHistogram(fares, dcfg.HistogramBins)
	if err := plot.Histogram(&buf, "Fare distribution", "fare ($)", h.Edges, h.Counts, h.KDE); err != nil {
		return nil, err
	}
	out = append(out, append([]byte(nil), buf.Bytes()...))
	return out, nil
}

func splitGroups(groups []processor.GroupMean) ([]string, []float64) {
	labels := make([]string, len(groups))
	values := make([]float64, len(groups))
	for i, g := range groups {
		labels[i] = g.Label
		values[i] = g.Mean
	}
	return labels, values
}
