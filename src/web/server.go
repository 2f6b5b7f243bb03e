// Package web 车费数据看板的HTTP层
package web

import (
	"UberFareAnalysis/src/config"
	"UberFareAnalysis/src/processor"
	"UberFareAnalysis/src/storage"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Server 看板服务, 每个请求都基于当前数据快照重新计算
type Server struct {
	cfg    *config.Config
	ds     *processor.Dataset
	logger *storage.Logger
	charts map[string]chartFunc

	// Reload 重新加载数据集, 默认直接调用 Dataset.Reload
	Reload func() (processor.CleaningReport, error)
}

// NewServer 创建看板服务
func NewServer(cfg *config.Config, ds *processor.Dataset, logger *storage.Logger) *Server {
	s := &Server{cfg: cfg, ds: ds, logger: logger, Reload: ds.Reload}
	s.charts = s.chartFuncs()
	return s
}

// Router 注册全部路由
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logger(s.logger), gin.Recovery(), CORS(s.cfg.CORSOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		s.logger.Warning(fmt.Sprintf("设置可信代理失败: %v", err))
	}
	r.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.tmpl")))

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "not_found", "路由不存在: "+c.Request.URL.Path)
	})

	r.GET("/", s.index)
	r.GET("/chart/:name", s.chart)
	r.GET("/logs", s.logs)

	api := r.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/summary", s.summary)
		api.GET("/passenger-fare", s.passengerFare)
		api.GET("/hourly-fare", s.hourlyFare)
		api.GET("/fare-distribution", s.fareDistribution)
		api.GET("/correlation", s.correlation)
		api.POST("/reload", s.reload)
	}

	download := r.Group("/download")
	{
		download.GET("/processed_uber_fares.csv", s.downloadCSV)
		download.GET("/processed_uber_fares.xlsx", s.downloadExcel)
		download.GET("/report.pdf", s.downloadReport)
	}
	return r
}

// load 取快照并解析筛选参数, 失败时已写出错误响应
func (s *Server) load(c *gin.Context) (processor.Snapshot, filters, bool) {
	snap, err := s.ds.Snapshot()
	if err != nil {
		respondErr(c, err)
		return snap, filters{}, false
	}
	f, err := parseFilters(c, snap, s.ds.DataConfig())
	if err != nil {
		respondErr(c, err)
		return snap, f, false
	}
	return snap, f, true
}
