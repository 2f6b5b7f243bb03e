// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监控数据目录, 数据文件更新时回调
type FileMonitor struct {
	watchDir string
	target   string // 只关心的文件名, 为空表示目录下任意文件
	watcher  *fsnotify.Watcher
	lastFile string
	lastMod  time.Time
	mu       sync.Mutex
}

// NewFileMonitor 创建目录监控器
// 参数:
//   - dir: 监控目录
//   - target: 目标文件名(不含目录), 为空时目录下所有文件的变更都会触发
func NewFileMonitor(dir, target string) (*FileMonitor, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		watchDir: dir,
		target:   target,
		watcher:  watcher,
	}, nil
}

// Watch 阻塞监听文件事件, ctx 取消或监听出错时返回
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if m.target != "" && filepath.Base(event.Name) != m.target {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil || info.IsDir() {
				continue
			}

			m.mu.Lock()
			if info.ModTime().After(m.lastMod) || event.Name != m.lastFile {
				m.lastMod = info.ModTime()
				m.lastFile = event.Name
				go handler(event.Name)
			}
			m.mu.Unlock()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// LastFile 最近一次触发回调的文件
func (m *FileMonitor) LastFile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFile
}

// Close 关闭监控
func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
