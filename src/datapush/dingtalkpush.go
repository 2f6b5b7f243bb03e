package datapush

import (
	"UberFareAnalysis/src/processor"
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// 常量定义
const (
	RETRY_TIMES    = 5
	RETRY_INTERVAL = 2 * time.Second
)

// 钉钉 API 响应结构体
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Pusher 钉钉群机器人推送
type Pusher struct {
	Webhook       string
	Secret        string // 加签密钥, 为空时不签名
	Client        *http.Client
	RetryTimes    int
	RetryInterval time.Duration

	now func() time.Time
}

// NewPusher 创建推送器
func NewPusher(webhook, secret string) *Pusher {
	return &Pusher{
		Webhook:       webhook,
		Secret:        secret,
		Client:        &http.Client{Timeout: 10 * time.Second},
		RetryTimes:    RETRY_TIMES,
		RetryInterval: RETRY_INTERVAL,
	}
}

// Notify 导出完成后推送概要
func (p *Pusher) Notify(ctx context.Context, summary processor.Summary, files []string) error {
	return p.PushSummary(ctx, summary, files...)
}

// PushSummary 以 markdown 消息推送数据集概要
func (p *Pusher) PushSummary(ctx context.Context, summary processor.Summary, files ...string) error {
	title := "Uber车费数据更新"
	text := FormatSummary(summary, files)
	return retry(ctx, func() error {
		return p.sendMarkdown(ctx, title, text)
	}, p.retryTimes(), p.RetryInterval)
}

// FormatSummary 生成 markdown 正文
func FormatSummary(s processor.Summary, files []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Uber车费数据更新\n\n")
	fmt.Fprintf(&b, "- 数据加载时间: %s\n", s.LoadedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "- 原始行数: %d, 清洗后: %d\n", s.Report.RawRows, s.Rows)
	fmt.Fprintf(&b, "- 平均车费: $%.2f, 中位数: $%.2f\n", s.MeanFare, s.MedianFare)
	fmt.Fprintf(&b, "- 平均乘客数: %.2f\n", s.MeanPassengers)
	fmt.Fprintf(&b, "- 平均距离: %.2f km\n", s.MeanDistanceKm)
	if len(files) > 0 {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = filepath.Base(f)
		}
		fmt.Fprintf(&b, "- 导出文件: %s\n", strings.Join(names, ", "))
	}
	return b.String()
}

func (p *Pusher) sendMarkdown(ctx context.Context, title, text string) error {
	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  text,
		},
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %v", err)
	}

	target, err := p.signedURL()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("创建请求失败: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("推送失败: HTTP %d", resp.StatusCode)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("发送消息失败: %s", result.ErrMsg)
	}
	return nil
}

// signedURL 在 webhook 上追加 timestamp 与 sign 参数
func (p *Pusher) signedURL() (string, error) {
	if p.Webhook == "" {
		return "", fmt.Errorf("未配置 webhook")
	}
	if p.Secret == "" {
		return p.Webhook, nil
	}
	u, err := url.Parse(p.Webhook)
	if err != nil {
		return "", fmt.Errorf("解析 webhook 失败: %v", err)
	}

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	timestamp := strconv.FormatInt(now().UnixMilli(), 10)

	q := u.Query()
	q.Set("timestamp", timestamp)
	q.Set("sign", Sign(timestamp, p.Secret))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Sign 钉钉加签: base64(HmacSHA256(timestamp+"\n"+secret, secret))
func Sign(timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "\n" + secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (p *Pusher) retryTimes() int {
	if p.RetryTimes <= 0 {
		return 1
	}
	return p.RetryTimes
}

// 重试函数
func retry(ctx context.Context, fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("重试中断: %w", ctx.Err())
			case <-time.After(interval):
			}
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %v", times, err)
}
