// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"UberFareAnalysis/src/storage"
)

// ====================== 邮件处理器实现 ======================

// AttachmentHandler 将目标邮件中的数据集附件保存到数据目录
// 保存的文件名固定为 FileName, 文件监控据此触发重新加载
type AttachmentHandler struct {
	TargetSubject string          // 目标邮件主题关键词
	DataDir       string          // 附件保存目录
	FileName      string          // 保存的文件名, 如 uber.csv
	Logger        *storage.Logger // 可为空
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	mu            sync.RWMutex
}

// NewAttachmentHandler 创建附件处理器
func NewAttachmentHandler(subject, dataDir, fileName string, logger *storage.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		FileName:      fileName,
		Logger:        logger,
		processedUIDs: make(map[uint32]bool),
	}
}

// IsProcessed 检查邮件是否已处理过
func (h *AttachmentHandler) IsProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

func (h *AttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle 保存第一个扩展名与 FileName 一致的附件, 返回保存路径
// 已处理、主题不匹配或没有合适附件时返回空路径
func (h *AttachmentHandler) Handle(email *Email) (string, error) {
	if email == nil || h.IsProcessed(email.UID) {
		return "", nil
	}

	if !strings.Contains(email.Subject, h.TargetSubject) {
		h.info(fmt.Sprintf("跳过主题不匹配的邮件: %s", email.Subject))
		return "", nil
	}

	h.info(fmt.Sprintf("处理邮件: %s 发件人: %s 日期: %s",
		email.Subject, email.From, email.Date.Format("2006-01-02 15:04:05")))

	want := strings.ToLower(filepath.Ext(h.FileName))
	for _, attachment := range email.Attachments {
		if strings.ToLower(filepath.Ext(attachment.Filename)) != want {
			continue
		}
		if len(attachment.Content) == 0 {
			h.info(fmt.Sprintf("附件为空: %s", attachment.Filename))
			continue
		}

		if err := os.MkdirAll(h.DataDir, 0755); err != nil {
			return "", fmt.Errorf("创建目录失败: %w", err)
		}
		filePath := filepath.Join(h.DataDir, h.FileName)
		tmp := filePath + ".part"
		if err := os.WriteFile(tmp, attachment.Content, 0644); err != nil {
			return "", fmt.Errorf("保存附件失败: %w", err)
		}
		if err := os.Rename(tmp, filePath); err != nil {
			os.Remove(tmp)
			return "", fmt.Errorf("保存附件失败: %w", err)
		}

		h.markAsProcessed(email.UID)
		h.info(fmt.Sprintf("附件 %s 已保存到: %s", attachment.Filename, filePath))
		return filePath, nil
	}

	h.info(fmt.Sprintf("邮件(UID:%d)没有 %s 附件", email.UID, want))
	return "", nil
}

func (h *AttachmentHandler) info(msg string) {
	if h.Logger != nil {
		h.Logger.Info(msg)
	}
}
