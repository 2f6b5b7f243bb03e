package datapush

import (
	"UberFareAnalysis/src/processor"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestSign(t *testing.T) {
	// 相同输入签名稳定, 不同密钥签名不同
	a := Sign("1700000000000", "SECabc")
	if a != Sign("1700000000000", "SECabc") {
		t.Error("签名不稳定")
	}
	if a == Sign("1700000000000", "SECabd") {
		t.Error("不同密钥签名相同")
	}
}

func TestPushSummary(t *testing.T) {
	var got struct {
		MsgType  string `json:"msgtype"`
		Markdown struct {
			Title string `json:"title"`
			Text  string `json:"text"`
		} `json:"markdown"`
	}
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("解析请求体失败: %v", err)
		}
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	p := NewPusher(srv.URL+"/robot/send?access_token=x", "SECtest")
	p.now = func() time.Time { return time.UnixMilli(1700000000000) }

	s := processor.Summary{Rows: 10, MeanFare: 14.85}
	if err := p.PushSummary(context.Background(), s, "/tmp/export/a.csv"); err != nil {
		t.Fatalf("PushSummary: %v", err)
	}
	if got.MsgType != "markdown" || !strings.Contains(got.Markdown.Text, "a.csv") {
		t.Errorf("消息内容 = %+v", got)
	}
	if !strings.Contains(got.Markdown.Text, "$14.85") {
		t.Errorf("缺少平均车费: %s", got.Markdown.Text)
	}
	if !strings.Contains(query, "timestamp=1700000000000") || !strings.Contains(query, "sign=") ||
		!strings.Contains(query, "access_token=x") {
		t.Errorf("query = %s", query)
	}
}

func TestPushSummaryRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Write([]byte(`{"errcode":310000,"errmsg":"sign not match"}`))
			return
		}
		w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	p := NewPusher(srv.URL, "")
	p.RetryInterval = time.Millisecond
	if err := p.PushSummary(context.Background(), processor.Summary{}); err != nil {
		t.Fatalf("PushSummary: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("调用次数 = %d, want 3", n)
	}
}

func TestPushSummaryFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errcode":300001,"errmsg":"invalid token"}`))
	}))
	defer srv.Close()

	p := NewPusher(srv.URL, "")
	p.RetryTimes = 2
	p.RetryInterval = time.Millisecond
	err := p.PushSummary(context.Background(), processor.Summary{})
	if err == nil || !strings.Contains(err.Error(), "invalid token") {
		t.Errorf("err = %v", err)
	}
}

func TestPushSummaryNoWebhook(t *testing.T) {
	p := NewPusher("", "")
	p.RetryTimes = 1
	if err := p.PushSummary(context.Background(), processor.Summary{}); err == nil {
		t.Error("未配置 webhook 应报错")
	}
}

func TestRetryContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := retry(ctx, func() error {
		calls++
		return context.DeadlineExceeded
	}, 5, time.Second)
	if err == nil || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}
