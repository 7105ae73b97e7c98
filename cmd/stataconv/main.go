package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// 1. 初始化日志器
	logger := log.New(os.Stdout, "[StataConv] ", log.LstdFlags|log.Lshortfile)

	// 2. Ctrl+C 在两个文件之间停止
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		logger.Printf("ERROR: %v", err)
		stop()
		os.Exit(1)
	}
}
