package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config 日志配置
type Config struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // text, json
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`

	// Output 覆盖默认输出（测试用）
	Output io.Writer `yaml:"-"`
}

// Logger 结构化日志记录器
type Logger struct {
	entry   *logrus.Entry
	logFile *os.File
}

// New 创建日志记录器
func New(cfg Config) (*Logger, error) {
	base := logrus.New()

	level, err := logrus.ParseLevel(defaultString(cfg.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 %q: %w", cfg.Level, err)
	}
	base.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "", "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	default:
		return nil, fmt.Errorf("不支持的日志格式: %s", cfg.Format)
	}

	l := &Logger{}

	var writer io.Writer = os.Stderr
	if cfg.Output != nil {
		writer = cfg.Output
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("创建日志文件失败: %w", err)
		}
		l.logFile = f
		if cfg.Console {
			// 同时写入文件和控制台
			writer = io.MultiWriter(f, writer)
		} else {
			writer = f
		}
	}
	base.SetOutput(writer)

	l.entry = logrus.NewEntry(base)
	return l, nil
}

// Discard 返回丢弃所有输出的日志记录器
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(base)}
}

// With 返回附带固定字段的子记录器
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields)), logFile: l.logFile}
}

// Debug 记录调试信息
func (l *Logger) Debug(message string, data ...map[string]interface{}) {
	l.withData(data).Debug(message)
}

// Info 记录信息
func (l *Logger) Info(message string, data ...map[string]interface{}) {
	l.withData(data).Info(message)
}

// Warn 记录警告
func (l *Logger) Warn(message string, data ...map[string]interface{}) {
	l.withData(data).Warn(message)
}

// Error 记录错误
func (l *Logger) Error(message string, err error, data ...map[string]interface{}) {
	entry := l.withData(data)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}

func (l *Logger) withData(data []map[string]interface{}) *logrus.Entry {
	if len(data) == 0 || data[0] == nil {
		return l.entry
	}
	return l.entry.WithFields(logrus.Fields(data[0]))
}

// LogOperationTiming 记录操作耗时
func (l *Logger) LogOperationTiming(operation string, duration time.Duration, data ...map[string]interface{}) {
	fields := map[string]interface{}{
		"operation":   operation,
		"duration":    duration.String(),
		"duration_ms": duration.Milliseconds(),
	}
	if len(data) > 0 {
		for k, v := range data[0] {
			fields[k] = v
		}
	}
	l.Info("操作耗时统计", fields)
}

// LogStatistics 记录统计信息
func (l *Logger) LogStatistics(stats map[string]interface{}) {
	l.Info("处理统计", stats)
}

// IsDebug 是否启用调试级别
func (l *Logger) IsDebug() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}

// GetLogFilePath 获取日志文件路径
func (l *Logger) GetLogFilePath() string {
	if l.logFile != nil {
		return l.logFile.Name()
	}
	return ""
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// Truncate 截断字符串用于日志输出
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
