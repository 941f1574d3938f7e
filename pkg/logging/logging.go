// Package logging 初始化 slog + tint 彩色结构化日志。
// 日志级别通过 LOG_LEVEL 环境变量控制：debug / info / warn / error。
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup 按 LOG_LEVEL 配置全局日志，默认 info
func Setup() {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      parseLevel(os.Getenv("LOG_LEVEL")),
			TimeFormat: time.DateTime,
		}),
	))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
