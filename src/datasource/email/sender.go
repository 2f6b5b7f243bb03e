// sender.go
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"

	"github.com/jordan-wright/email"

	"UberFareAnalysis/src/config"
	"UberFareAnalysis/src/processor"
)

// SMTPConfig 发件配置
type SMTPConfig struct {
	Server   string // 如 "smtp.qq.com" 或 "smtp.qq.com:465"
	Username string
	Password string
	To       []string
	Subject  string
}

// SMTPConfigFrom 从应用配置中取发件配置, 收件人为空时发给收件邮箱
func SMTPConfigFrom(c *config.Config) SMTPConfig {
	to := c.SendEmail.To
	if len(to) == 0 && c.Email.Username != "" {
		to = []string{c.Email.Username}
	}
	return SMTPConfig{
		Server:   c.SendEmail.Server,
		Username: c.SendEmail.Username,
		Password: c.SendEmail.Password,
		To:       to,
		Subject:  c.SendEmail.Subject,
	}
}

// addr 补全默认 SSL 端口
func (c SMTPConfig) addr() (string, string) {
	smtpAddr := c.Server
	if !strings.Contains(smtpAddr, ":") {
		smtpAddr += ":465"
	}
	return smtpAddr, strings.Split(smtpAddr, ":")[0]
}

// NewMessage 构造带附件的邮件, 不存在的附件返回错误
func NewMessage(c SMTPConfig, body string, attachments ...string) (*email.Email, error) {
	if len(c.To) == 0 {
		return nil, fmt.Errorf("未配置收件人")
	}
	e := email.NewEmail()
	e.From = fmt.Sprintf("Uber Fare Dashboard <%s>", c.Username)
	e.To = c.To
	e.Subject = c.Subject
	e.Text = []byte(body)

	for _, path := range attachments {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("附件文件不存在: %s", path)
		}
		if _, err := e.AttachFile(path); err != nil {
			return nil, fmt.Errorf("附件添加失败: %w", err)
		}
	}
	return e, nil
}

// Send 通过 SMTP(显式TLS) 发送邮件
func (c SMTPConfig) Send(e *email.Email) error {
	smtpAddr, host := c.addr()
	err := e.SendWithTLS(
		smtpAddr,
		smtp.PlainAuth("", c.Username, c.Password, host),
		&tls.Config{ServerName: host},
	)
	if err != nil {
		return fmt.Errorf("邮件发送失败: %w (Server: %s)", err, smtpAddr)
	}
	return nil
}

// Reporter 导出完成后把文件作为附件发出
type Reporter struct {
	Config SMTPConfig
	send   func(*email.Email) error
}

// NewReporter 创建邮件通知
func NewReporter(c SMTPConfig) *Reporter {
	return &Reporter{Config: c, send: c.Send}
}

// Notify 发送概要与导出文件
func (r *Reporter) Notify(ctx context.Context, summary processor.Summary, files []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := NewMessage(r.Config, FormatBody(summary, files), files...)
	if err != nil {
		return err
	}
	return r.send(e)
}

// FormatBody 邮件正文
func FormatBody(s processor.Summary, files []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "数据加载时间: %s\n", s.LoadedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "原始行数: %d, 清洗后行数: %d\n", s.Report.RawRows, s.Rows)
	fmt.Fprintf(&b, "平均车费: $%.2f, 中位数: $%.2f\n", s.MeanFare, s.MedianFare)
	fmt.Fprintf(&b, "平均乘客数: %.2f, 平均距离: %.2f km\n", s.MeanPassengers, s.MeanDistanceKm)
	for _, f := range files {
		fmt.Fprintf(&b, "附件: %s\n", filepath.Base(f))
	}
	return b.String()
}
