package web

import (
	"UberFareAnalysis/src/processor"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var printer = message.NewPrinter(language.English)

var templateFuncs = template.FuncMap{
	"num":   func(n int) string { return printer.Sprintf("%d", n) },
	"money": func(v float64) string { return printer.Sprintf("$%.2f", v) },
	"fixed": func(v float64) string { return printer.Sprintf("%.2f", v) },
}

// pageData 看板页面数据
type pageData struct {
	Title       string
	Error       string
	GeneratedAt time.Time

	Filters        filters
	Query          template.URL
	PassengerRange processor.IntRange
	HourRange      processor.IntRange
	TimeCategories []string
	FareCategories []string

	Summary       processor.Summary
	Report        processor.CleaningReport
	Describe      processor.Table
	PassengerFare []processor.GroupMean
	HourlyFare    []processor.GroupMean
	WeekdayFare   []processor.GroupMean
}

// index GET / 看板首页
func (s *Server) index(c *gin.Context) {
	dcfg := s.ds.DataConfig()
	cols := dcfg.Columns

	data := pageData{Title: "Uber Fare Dataset Analysis App", GeneratedAt: time.Now()}
	for _, tc := range dcfg.TimeCategories {
		data.TimeCategories = append(data.TimeCategories, tc.Name)
	}
	for _, fc := range dcfg.FareCategories {
		data.FareCategories = append(data.FareCategories, fc.Name)
	}

	snap, err := s.ds.Snapshot()
	if err != nil {
		status, _ := statusOf(err)
		data.Error = err.Error()
		c.HTML(status, "index.tmpl", data)
		return
	}

	data.PassengerRange = processor.PassengerRange(snap.Frame, cols)
	data.HourRange = processor.HourRange(snap.Frame)
	f, err := parseFilters(c, snap, dcfg)
	if err != nil {
		status, _ := statusOf(err)
		data.Error = err.Error()
		data.Filters = defaultFilters(snap, dcfg)
		data.Query = template.URL(data.Filters.values().Encode())
		c.HTML(status, "index.tmpl", data)
		return
	}
	data.Filters = f
	data.Query = template.URL(f.values().Encode())
	data.Summary = snap.Summary(cols)
	data.Report = snap.Report

	// 各区块独立计算, 单个区块无数据不影响整页
	if data.Describe, err = processor.Describe(snap.Frame, cols); err != nil {
		s.sectionError("describe", err)
	}
	if data.PassengerFare, err = processor.PassengerFare(snap.Frame, cols, f.PMin, f.PMax); err != nil {
		s.sectionError("passenger-fare", err)
	}
	if data.HourlyFare, err = processor.HourlyFare(snap.Frame, dcfg, f.TCat, f.HMin, f.HMax); err != nil {
		s.sectionError("hourly-fare", err)
	}
	if data.WeekdayFare, err = processor.WeekdayFare(snap.Frame, cols); err != nil {
		s.sectionError("weekday-fare", err)
	}
	c.HTML(http.StatusOK, "index.tmpl", data)
}

func (s *Server) sectionError(section string, err error) {
	if errors.Is(err, processor.ErrEmptyResult) {
		return
	}
	s.logger.Warning(fmt.Sprintf("页面区块 %s 计算失败: %v", section, err))
}
