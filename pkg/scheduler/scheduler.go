package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yleoer/stataconv/pkg/processor"
	"github.com/yleoer/stataconv/pkg/scanner"
	"github.com/yleoer/stataconv/pkg/util"
)

// Converter 转换单个 .dta 文件，*processor.Processor 实现了它
type Converter interface {
	ConvertFile(ctx context.Context, path string) (*processor.Result, error)
}

// TaskScheduler 监听输入目录，在 .dta 文件写入完成后触发转换
type TaskScheduler struct {
	inputDir     string
	debounce     time.Duration
	scanner      *scanner.DTAScanner
	converter    Converter
	logger       *log.Logger
	pending      map[string]*time.Timer
	pendingMutex sync.Mutex    // 保护 pending map
	ready        chan string   // 安静下来的文件，由事件循环依次转换
	done         chan struct{} // 事件循环退出后关闭
}

// NewTaskScheduler 创建一个新的 TaskScheduler 实例
func NewTaskScheduler(
	inputDir string,
	debounce time.Duration,
	dtaScanner *scanner.DTAScanner,
	converter Converter,
	logger *log.Logger,
) *TaskScheduler {
	return &TaskScheduler{
		inputDir:  inputDir,
		debounce:  debounce,
		scanner:   dtaScanner,
		converter: converter,
		logger:    logger,
		pending:   make(map[string]*time.Timer),
		ready:     make(chan string, 64),
		done:      make(chan struct{}),
	}
}

// InitialScan 转换输入目录中已有的文件
func (ts *TaskScheduler) InitialScan(ctx context.Context) {
	ts.logger.Println("Performing initial scan for .dta files in input directory...")
	files, err := ts.scanner.ScanDTAFiles(ts.inputDir)
	if err != nil {
		ts.logger.Printf("ERROR: Error reading input directory %s for initial scan: %v", ts.inputDir, err)
		return
	}
	for _, path := range files {
		if ctx.Err() != nil {
			return
		}
		ts.convert(ctx, path)
	}
	ts.logger.Println("Initial scan completed.")
}

// TriggerConversion 把文件加入延迟转换队列，重复触发会重置计时器
func (ts *TaskScheduler) TriggerConversion(path string) {
	ts.pendingMutex.Lock()
	defer ts.pendingMutex.Unlock()
	// 如果这个文件已经有一个待定的转换任务，就重置计时器
	if timer, ok := ts.pending[path]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(ts.debounce, func() {
		ts.pendingMutex.Lock()
		if ts.pending[path] == timer {
			delete(ts.pending, path)
		}
		ts.pendingMutex.Unlock()
		select {
		case ts.ready <- path:
		case <-ts.done:
		}
	})
	ts.pending[path] = timer
	ts.logger.Printf("Scheduled conversion for %s in %v", filepath.Base(path), ts.debounce)
}

// cancel 取消尚未触发的转换
func (ts *TaskScheduler) cancel(path string) {
	ts.pendingMutex.Lock()
	defer ts.pendingMutex.Unlock()
	if timer, ok := ts.pending[path]; ok {
		timer.Stop()
		delete(ts.pending, path)
		ts.logger.Printf("  -> %s disappeared. Cancelled pending conversion.", filepath.Base(path))
	}
}

// Run 监听输入目录直到 ctx 结束。转换在事件循环中逐个执行。
func (ts *TaskScheduler) Run(ctx context.Context) error {
	defer close(ts.done)
	defer ts.stopAll()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(ts.inputDir); err != nil {
		return fmt.Errorf("failed to watch input directory %s: %w", ts.inputDir, err)
	}
	ts.logger.Printf("Monitoring input directory %s for .dta files...", ts.inputDir)

	for {
		select {
		case <-ctx.Done():
			ts.logger.Println("Stopping watcher.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			ts.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ts.logger.Printf("ERROR: Watcher error: %v", err)
		case path := <-ts.ready:
			ts.convert(ctx, path)
		}
	}
}

func (ts *TaskScheduler) handleEvent(event fsnotify.Event) {
	if !util.IsDTAFile(event.Name) {
		return
	}
	ts.logger.Printf("Watcher event: %s, on %s", event.Op.String(), event.Name)
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		ts.TriggerConversion(event.Name)
	case event.Has(fsnotify.Rename), event.Has(fsnotify.Remove):
		// 改名后新名字会收到 Create；旧名字仍存在时才继续转换
		if fileExists(event.Name) {
			ts.TriggerConversion(event.Name)
		} else {
			ts.cancel(event.Name)
		}
	}
}

func (ts *TaskScheduler) convert(ctx context.Context, path string) {
	if !fileExists(path) {
		ts.logger.Printf("  -> %s no longer exists. Skipping.", filepath.Base(path))
		return
	}
	ts.logger.Printf("-> Converting %s", filepath.Base(path))
	res, err := ts.converter.ConvertFile(ctx, path)
	if err != nil {
		ts.logger.Printf("ERROR: Failed to convert %s: %v", filepath.Base(path), err)
		return
	}
	if !res.Skipped {
		ts.logger.Printf("Successfully converted %s (%s).", filepath.Base(path), res.Stats)
	}
}

func (ts *TaskScheduler) stopAll() {
	ts.pendingMutex.Lock()
	defer ts.pendingMutex.Unlock()
	for path, timer := range ts.pending {
		timer.Stop()
		delete(ts.pending, path)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
