// Package logger 提供全局 zerolog 日志实例
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger 默认的全局日志实例
var Logger = log.Logger

// Config 日志配置
type Config struct {
	Level        string `json:"level" yaml:"level"`                 // debug, info, warn, error
	Format       string `json:"format" yaml:"format"`               // json 或 pretty
	TimeFormat   string `json:"time_format" yaml:"time_format"`     // 时间戳格式
	ReportCaller bool   `json:"report_caller" yaml:"report_caller"` // 是否记录调用位置

	// Output 日志输出目标，默认 os.Stdout
	Output io.Writer `json:"-" yaml:"-"`
}

// Init 根据配置重建全局日志实例，同时替换 zerolog 的全局 logger
func Init(config Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.TimeFormat == "" {
		zerolog.TimeFieldFormat = time.RFC3339
	} else {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	if config.Format == "pretty" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: config.TimeFormat}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if config.ReportCaller {
		ctx = ctx.Caller()
	}

	Logger = ctx.Logger()
	log.Logger = Logger
	return Logger
}

// Component 返回带 component 字段的子日志实例
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// Debug 开始一条调试级别的日志事件
func Debug() *zerolog.Event { return Logger.Debug() }

// Info 开始一条信息级别的日志事件
func Info() *zerolog.Event { return Logger.Info() }

// Warn 开始一条警告级别的日志事件
func Warn() *zerolog.Event { return Logger.Warn() }

// Error 开始一条错误级别的日志事件
func Error() *zerolog.Event { return Logger.Error() }

// Fatal 记录后程序将退出
func Fatal() *zerolog.Event { return Logger.Fatal() }

// Ctx 从上下文中获取日志实例，不存在时返回全局实例
func Ctx(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &Logger
}

// WithContext 将全局日志实例放入上下文
func WithContext(ctx context.Context) context.Context {
	return Logger.WithContext(ctx)
}
