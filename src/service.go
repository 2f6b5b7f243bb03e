package main

import (
	"UberFareAnalysis/src/config"
	"UberFareAnalysis/src/datapush"
	"UberFareAnalysis/src/datasource/email"
	"UberFareAnalysis/src/processor"
	"UberFareAnalysis/src/report"
	"UberFareAnalysis/src/storage"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron"
)

// service 串联数据集、通知与定时任务
type service struct {
	cfg    *config.Config
	ds     *processor.Dataset
	logger *storage.Logger

	pusher    *datapush.Pusher // 未启用钉钉推送时为 nil
	notifiers []report.Notifier
	exporter  *report.Exporter

	mailService email.MailService
	mailHandler *email.AttachmentHandler

	mu sync.Mutex // 串行化重新加载
}

func newService(cfg *config.Config, ds *processor.Dataset, logger *storage.Logger) *service {
	s := &service{cfg: cfg, ds: ds, logger: logger}
	if cfg.Push.Enabled {
		s.pusher = datapush.NewPusher(cfg.Push.Webhook, cfg.Push.Secret)
		s.notifiers = append(s.notifiers, s.pusher)
	}
	if cfg.SendEmail.Enabled {
		s.notifiers = append(s.notifiers, email.NewReporter(email.SMTPConfigFrom(cfg)))
	}
	s.exporter = exportJob(cfg, ds, logger, s.notifiers)

	if cfg.Email.Enabled {
		s.mailService = email.NewEmailClient(cfg.Email.Server, cfg.Email.Username, cfg.Email.Password)
		s.mailHandler = email.NewAttachmentHandler(cfg.Email.TargetSubject, cfg.DataDir,
			filepath.Base(cfg.DataFile), logger)
	}
	return s
}

// reload 重新加载数据集并记录清洗结果
func (s *service) reload(source string) (processor.CleaningReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t1 := time.Now()
	rep, err := s.ds.Reload()
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] %v", source, err))
		return rep, err
	}
	s.logger.Info(fmt.Sprintf("[%s] 数据集已加载: 原始 %d 行, 采样 %d 行, 清洗后 %d 行, 耗时 %v",
		source, rep.RawRows, rep.SampledRows, rep.CleanedRows(), time.Since(t1)))
	return rep, nil
}

// reloadAndNotify 重新加载成功后推送概要
func (s *service) reloadAndNotify(source string) (processor.CleaningReport, error) {
	rep, err := s.reload(source)
	if err != nil || s.pusher == nil {
		return rep, err
	}

	snap, err := s.ds.Snapshot()
	if err != nil {
		return rep, nil
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.pusher.PushSummary(ctx, snap.Summary(s.ds.DataConfig().Columns)); err != nil {
			s.logger.Warning("推送数据概要失败: " + err.Error())
		}
	}()
	return rep, nil
}

// pollMail 检查邮箱, 把新附件保存为数据文件, 由文件监控触发重新加载
func (s *service) pollMail() {
	if s.mailService == nil {
		return
	}
	newEmail, err := email.CheckAndProcessEmails(s.mailService, s.cfg.Email.TargetSubject, s.logger)
	if err != nil {
		s.logger.Error("检查处理邮件失败: " + err.Error())
		return
	}
	if newEmail == nil || s.mailHandler.IsProcessed(newEmail.UID) {
		return
	}
	path, err := s.mailHandler.Handle(newEmail)
	if err != nil {
		s.logger.Error(fmt.Sprintf("处理邮件失败(UID:%d): %v", newEmail.UID, err))
		return
	}
	if path != "" {
		s.logger.Info("邮件附件已保存为数据文件: " + path)
	}
}

// everySpec 间隔转换为 cron 的 @every 表达式
func everySpec(d config.Duration) string {
	return fmt.Sprintf("@every %s", time.Duration(d).String())
}

// newScheduler 注册定时任务: 日志轮转检查, 定时导出, 邮件轮询
func newScheduler(cfg *config.Config, s *service) (*cron.Cron, error) {
	c := cron.New()

	err := c.AddFunc("@every 1m", func() {
		if err := s.logger.CheckRotate(cfg); err != nil {
			s.logger.Error("日志轮转失败: " + err.Error())
		}
	})
	if err != nil {
		return nil, err
	}

	if s.exporter != nil {
		spec := everySpec(cfg.ExportInterval)
		if err := c.AddFunc(spec, s.exporter.Run); err != nil {
			return nil, fmt.Errorf("注册导出任务失败: %w", err)
		}
		s.logger.Info(fmt.Sprintf("定时导出已启用(%s)", spec))
	}

	if s.mailService != nil {
		spec := everySpec(cfg.Email.CheckInterval)
		if err := c.AddFunc(spec, s.pollMail); err != nil {
			return nil, fmt.Errorf("注册邮件检查任务失败: %w", err)
		}
		s.logger.Info(fmt.Sprintf("邮件监控已启用(%s)", spec))
	}
	return c, nil
}
