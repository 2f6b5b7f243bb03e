package web

import (
	"UberFareAnalysis/src/processor"
	"UberFareAnalysis/src/report"
	"UberFareAnalysis/src/utils"
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) health(c *gin.Context) {
	resp := gin.H{"status": "ok", "loaded": false}
	if snap, err := s.ds.Snapshot(); err == nil {
		resp["loaded"] = true
		resp["rows"] = snap.Frame.Nrow()
		resp["loaded_at"] = snap.LoadedAt
	} else {
		resp["status"] = "degraded"
	}
	if err := s.ds.LastError(); err != nil {
		resp["last_error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) summary(c *gin.Context) {
	snap, err := s.ds.Snapshot()
	if err != nil {
		respondErr(c, err)
		return
	}
	dcfg := s.ds.DataConfig()
	tcats := make([]string, len(dcfg.TimeCategories))
	for i, tc := range dcfg.TimeCategories {
		tcats[i] = tc.Name
	}
	fcats := make([]string, len(dcfg.FareCategories))
	for i, fc := range dcfg.FareCategories {
		fcats[i] = fc.Name
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":         snap.Summary(dcfg.Columns),
		"passenger_range": processor.PassengerRange(snap.Frame, dcfg.Columns),
		"hour_range":      processor.HourRange(snap.Frame),
		"time_categories": tcats,
		"fare_categories": fcats,
	})
}

// 过滤结果为空时返回空表
func (s *Server) passengerFare(c *gin.Context) {
	snap, f, ok := s.load(c)
	if !ok {
		return
	}
	rows, err := processor.PassengerFare(snap.Frame, s.ds.DataConfig().Columns, f.PMin, f.PMax)
	if err != nil && !errors.Is(err, processor.ErrEmptyResult) {
		respondErr(c, err)
		return
	}
	if rows == nil {
		rows = []processor.GroupMean{}
	}
	c.JSON(http.StatusOK, gin.H{"pmin": f.PMin, "pmax": f.PMax, "rows": rows})
}

func (s *Server) hourlyFare(c *gin.Context) {
	snap, f, ok := s.load(c)
	if !ok {
		return
	}
	rows, err := processor.HourlyFare(snap.Frame, s.ds.DataConfig(), f.TCat, f.HMin, f.HMax)
	if err != nil && !errors.Is(err, processor.ErrEmptyResult) {
		respondErr(c, err)
		return
	}
	if rows == nil {
		rows = []processor.GroupMean{}
	}
	c.JSON(http.StatusOK, gin.H{"tcat": f.TCat, "hmin": f.HMin, "hmax": f.HMax, "rows": rows})
}

func (s *Server) fareDistribution(c *gin.Context) {
	snap, f, ok := s.load(c)
	if !ok {
		return
	}
	h, err := processor.FareDistribution(snap.Frame, s.ds.DataConfig(), f.FCat)
	if err != nil && !errors.Is(err, processor.ErrEmptyResult) {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fcat": f.FCat, "histogram": h})
}

func (s *Server) correlation(c *gin.Context) {
	snap, err := s.ds.Snapshot()
	if err != nil {
		respondErr(c, err)
		return
	}
	m, err := processor.Correlation(snap.Frame, s.ds.DataConfig().Columns)
	if errors.Is(err, processor.ErrEmptyResult) {
		// 少于两行无法计算相关系数
		m = processor.Matrix{Rows: []string{}, Cols: []string{}, Values: [][]processor.Float{}}
		err = nil
	}
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// reload POST /api/reload
func (s *Server) reload(c *gin.Context) {
	rep, err := s.Reload()
	if err != nil {
		s.logger.Error(fmt.Sprintf("手动重新加载失败: %v", err))
		respondError(c, http.StatusInternalServerError, "reload_failed", err.Error())
		return
	}
	s.logger.Info(fmt.Sprintf("手动重新加载完成, 清洗后 %d 行", rep.CleanedRows()))
	c.JSON(http.StatusOK, rep)
}

// logs 以 chunked 文本实时输出日志
func (s *Server) logs(c *gin.Context) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)

	logChan := s.logger.Subscribe()
	defer s.logger.Unsubscribe(logChan)

	for {
		select {
		case msg := <-logChan:
			if _, err := fmt.Fprint(c.Writer, msg); err != nil {
				return
			}
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (s *Server) downloadCSV(c *gin.Context) {
	snap, err := s.ds.Snapshot()
	if err != nil {
		respondErr(c, err)
		return
	}
	var buf bytes.Buffer
	if err := snap.WriteCSV(&buf); err != nil {
		respondErr(c, err)
		return
	}
	attachment(c, "processed_uber_fares.csv", "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) downloadExcel(c *gin.Context) {
	snap, err := s.ds.Snapshot()
	if err != nil {
		respondErr(c, err)
		return
	}
	var buf bytes.Buffer
	if err := utils.WriteExcel(snap.Export(), &buf); err != nil {
		respondErr(c, err)
		return
	}
	attachment(c, "processed_uber_fares.xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (s *Server) downloadReport(c *gin.Context) {
	snap, err := s.ds.Snapshot()
	if err != nil {
		respondErr(c, err)
		return
	}
	var buf bytes.Buffer
	if err := report.Build(&buf, snap, s.ds.DataConfig()); err != nil {
		respondErr(c, err)
		return
	}
	attachment(c, "uber_fare_report.pdf", "application/pdf", buf.Bytes())
}

func attachment(c *gin.Context, name, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, contentType, data)
}
