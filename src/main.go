package main

import (
	"UberFareAnalysis/src/config"
	"UberFareAnalysis/src/datasource/file"
	"UberFareAnalysis/src/processor"
	"UberFareAnalysis/src/report"
	"UberFareAnalysis/src/storage"
	"UberFareAnalysis/src/web"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	jsonFolder := "./config"
	jsonFile := "config.json"
	dataJsonFile := "dataconfig.json"
	cfg, dcfg, err := config.LoadConfig(jsonFolder, jsonFile, dataJsonFile)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	if err := writePidFile(cfg.PidFile); err != nil {
		logger.Warning(fmt.Sprintf("写入pid文件失败: %v", err))
	} else {
		defer os.Remove(cfg.PidFile)
	}

	ds := processor.NewDataset(cfg, dcfg)
	svc := newService(cfg, ds, logger)
	// 启动时加载失败只记录日志, 页面返回503直到重新加载成功
	svc.reload("启动")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitorFiles(ctx, cfg, svc, logger)

	c, err := newScheduler(cfg, svc)
	if err != nil {
		logger.Error("创建定时任务失败: " + err.Error())
		return
	}
	c.Start()
	defer c.Stop()

	server := web.NewServer(cfg, ds, logger)
	server.Reload = func() (processor.CleaningReport, error) {
		return svc.reloadAndNotify("手动")
	}
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info(fmt.Sprintf("看板服务已启动: http://localhost%s", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP服务异常退出: " + err.Error())
			cancel()
		}
	}()

	waitForSignals(ctx, cfg, svc, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭HTTP服务失败: " + err.Error())
	}
	logger.Info("服务已停止")
}

// monitorFiles 数据文件变更时重新加载
func monitorFiles(ctx context.Context, cfg *config.Config, svc *service, logger *storage.Logger) {
	if filepath.Clean(cfg.DataDir) != filepath.Dir(cfg.DataFile) {
		logger.Warning(fmt.Sprintf("data_dir(%s) 不是数据文件所在目录, 目录中的更新不会触发重新加载", cfg.DataDir))
	}
	monitor, err := file.NewFileMonitor(cfg.DataDir, filepath.Base(cfg.DataFile))
	if err != nil {
		logger.Error("启动文件监控失败: " + err.Error())
		return
	}
	defer monitor.Close()

	err = monitor.Watch(ctx, func(path string) {
		logger.Info("数据文件已更新: " + path)
		svc.reloadAndNotify("文件更新")
	})
	if err != nil {
		logger.Error("文件监控异常: " + err.Error())
	}
}

// waitForSignals SIGHUP 重新打开日志并重新加载数据, SIGINT/SIGTERM 退出
func waitForSignals(ctx context.Context, cfg *config.Config, svc *service, logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			if sig != syscall.SIGHUP {
				logger.Info("Received signal: " + sig.String() + ", shutting down...")
				return
			}
			if err := logger.Reopen(cfg.LogName); err != nil {
				log.Printf("重新打开日志失败: %v", err)
			}
			logger.Info("Received SIGHUP, reloading dataset")
			svc.reloadAndNotify("SIGHUP")
		}
	}
}

// writePidFile 记录当前进程号, 供 reload 工具发送 SIGHUP
func writePidFile(path string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := file.EnsureDir(dir); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

// exportJob 定时导出任务, 未配置间隔时返回 nil
func exportJob(cfg *config.Config, ds *processor.Dataset, logger *storage.Logger, notifiers []report.Notifier) *report.Exporter {
	if cfg.ExportInterval <= 0 {
		return nil
	}
	return report.NewExporter(cfg, ds, logger, notifiers...)
}
