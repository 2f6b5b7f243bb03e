package email

import (
	"UberFareAnalysis/src/processor"
	"UberFareAnalysis/src/storage"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jordan-wright/email"
)

const rawMessage = "From: =?GBK?B?VWJlcsr9vt0=?= <data@example.com>\r\n" +
	"To: dashboard@example.com\r\n" +
	"Subject: =?GBK?B?VWJlcsr9vt0=?=\r\n" +
	"Date: Thu, 07 May 2015 19:52:06 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"XYZ\"\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"最新数据见附件\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/csv\r\n" +
	"Content-Disposition: attachment; filename=\"uber.csv\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"cGlja3VwX2RhdGV0aW1lLGZhcmVfYW1vdW50CjIwMTUtMDUtMDcgMTk6NTI6MDYgVVRDLDcuNQo=\r\n" +
	"--XYZ--\r\n"

func newTestLogger(t *testing.T) *storage.Logger {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "app.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestReadEmail(t *testing.T) {
	e, err := ReadEmail(strings.NewReader(rawMessage))
	if err != nil {
		t.Fatalf("ReadEmail: %v", err)
	}
	if e.Subject != "Uber数据" {
		t.Errorf("Subject = %q", e.Subject)
	}
	if !strings.Contains(e.From, "Uber数据") {
		t.Errorf("From = %q", e.From)
	}
	if want := time.Date(2015, 5, 7, 19, 52, 6, 0, time.UTC); !e.Date.Equal(want) {
		t.Errorf("Date = %v", e.Date)
	}
	if len(e.Attachments) != 1 {
		t.Fatalf("附件数 = %d, want 1", len(e.Attachments))
	}
	a := e.Attachments[0]
	if a.Filename != "uber.csv" || !strings.HasPrefix(string(a.Content), "pickup_datetime,fare_amount") {
		t.Errorf("附件 = %s %q", a.Filename, a.Content)
	}
}

func TestDecodeHeader(t *testing.T) {
	tests := map[string]string{
		"=?GBK?B?VWJlcsr9vt0=?=": "Uber数据",
		"=?utf-8?B?5pWw5o2u?=":   "数据",
		"plain subject":          "plain subject",
	}
	for in, want := range tests {
		if got := decodeHeader(in); got != want {
			t.Errorf("decodeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

type fakeMailService struct {
	emails     []*Email
	connectErr error
	fetchErr   error
	closed     bool
}

func (f *fakeMailService) Connect() error { return f.connectErr }
func (f *fakeMailService) Disconnect()    { f.closed = true }
func (f *fakeMailService) FetchUnreadEmails() ([]*Email, error) {
	return f.emails, f.fetchErr
}

func TestCheckAndProcessEmails(t *testing.T) {
	now := time.Now()
	svc := &fakeMailService{emails: []*Email{
		{UID: 1, Subject: "Uber数据 旧", Date: now.Add(-2 * time.Hour)},
		{UID: 2, Subject: "周报", Date: now},
		{UID: 3, Subject: "Uber数据 新", Date: now.Add(-time.Hour)},
		nil,
	}}
	got, err := CheckAndProcessEmails(svc, "Uber数据", newTestLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.UID != 3 {
		t.Errorf("目标邮件 = %+v, want UID 3", got)
	}
	if !svc.closed {
		t.Error("未断开连接")
	}
}

func TestCheckAndProcessEmailsNoTarget(t *testing.T) {
	logger := newTestLogger(t)
	got, err := CheckAndProcessEmails(&fakeMailService{}, "Uber数据", logger)
	if got != nil || err != nil {
		t.Errorf("空邮箱: %v %v", got, err)
	}

	svc := &fakeMailService{emails: []*Email{{UID: 1, Subject: "周报"}}}
	if got, err := CheckAndProcessEmails(svc, "Uber数据", logger); got != nil || err != nil {
		t.Errorf("无目标邮件: %v %v", got, err)
	}
}

func TestCheckAndProcessEmailsErrors(t *testing.T) {
	logger := newTestLogger(t)
	boom := errors.New("boom")
	if _, err := CheckAndProcessEmails(&fakeMailService{connectErr: boom}, "x", logger); !errors.Is(err, boom) {
		t.Errorf("连接错误 = %v", err)
	}
	if _, err := CheckAndProcessEmails(&fakeMailService{fetchErr: boom}, "x", logger); !errors.Is(err, boom) {
		t.Errorf("获取错误 = %v", err)
	}
}

func TestAttachmentHandler(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	h := NewAttachmentHandler("Uber数据", dir, "uber.csv", newTestLogger(t))

	e, err := ReadEmail(strings.NewReader(rawMessage))
	if err != nil {
		t.Fatal(err)
	}
	e.UID = 42

	path, err := h.Handle(e)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if path != filepath.Join(dir, "uber.csv") {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.HasPrefix(string(data), "pickup_datetime") {
		t.Errorf("保存内容 = %q, %v", data, err)
	}
	if !h.IsProcessed(42) {
		t.Error("未标记已处理")
	}

	// 重复邮件不再保存
	if again, err := h.Handle(e); again != "" || err != nil {
		t.Errorf("重复处理: %q %v", again, err)
	}
}

func TestAttachmentHandlerSkips(t *testing.T) {
	dir := t.TempDir()
	h := NewAttachmentHandler("Uber数据", dir, "uber.csv", nil)

	cases := []*Email{
		nil,
		{UID: 1, Subject: "周报", Attachments: []*Attachment{{Filename: "uber.csv", Content: []byte("a")}}},
		{UID: 2, Subject: "Uber数据", Attachments: []*Attachment{{Filename: "uber.xlsx", Content: []byte("a")}}},
		{UID: 3, Subject: "Uber数据", Attachments: []*Attachment{{Filename: "uber.csv"}}},
	}
	for _, e := range cases {
		if path, err := h.Handle(e); path != "" || err != nil {
			t.Errorf("Handle(%+v) = %q, %v", e, path, err)
		}
	}
	if h.IsProcessed(2) || h.IsProcessed(3) {
		t.Error("没有保存的邮件不应标记已处理")
	}
}

func TestNewMessage(t *testing.T) {
	dir := t.TempDir()
	csv := filepath.Join(dir, "a.csv")
	if err := os.WriteFile(csv, []byte("x,y\n1,2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	c := SMTPConfig{Server: "smtp.example.com", Username: "me@example.com", To: []string{"you@example.com"}, Subject: "report"}

	m, err := NewMessage(c, "body", csv)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Attachments) != 1 || m.Attachments[0].Filename != "a.csv" {
		t.Errorf("附件 = %+v", m.Attachments)
	}
	if _, err := NewMessage(c, "body", filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("附件不存在应报错")
	}
	c.To = nil
	if _, err := NewMessage(c, "body"); err == nil {
		t.Error("无收件人应报错")
	}

	addr, host := SMTPConfig{Server: "smtp.example.com"}.addr()
	if addr != "smtp.example.com:465" || host != "smtp.example.com" {
		t.Errorf("addr = %s %s", addr, host)
	}
}

func TestSMTPConfigSend(t *testing.T) {
	c := SMTPConfig{Server: "127.0.0.1:1", Username: "me@example.com", To: []string{"you@example.com"}}
	if r := NewReporter(c); r.send == nil {
		t.Fatal("Reporter 未设置发送函数")
	}
	e, err := NewMessage(c, "body")
	if err != nil {
		t.Fatal(err)
	}
	// 端口不可达
	if err := c.Send(e); err == nil || !strings.Contains(err.Error(), "127.0.0.1:1") {
		t.Errorf("err = %v", err)
	}
}

func TestReporterNotify(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "processed_uber_fares_1.csv")
	if err := os.WriteFile(file, []byte("x\n1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var sent *email.Email
	r := NewReporter(SMTPConfig{Username: "me@example.com", To: []string{"you@example.com"}, Subject: "report"})
	r.send = func(e *email.Email) error {
		sent = e
		return nil
	}

	s := processor.Summary{Rows: 10, MeanFare: 14.85}
	if err := r.Notify(context.Background(), s, []string{file}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if sent == nil {
		t.Fatal("未发送邮件")
	}
	if !strings.Contains(string(sent.Text), "$14.85") ||
		!strings.Contains(string(sent.Text), "processed_uber_fares_1.csv") {
		t.Errorf("邮件正文 = %q", sent.Text)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Notify(ctx, s, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
