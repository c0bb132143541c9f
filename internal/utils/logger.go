package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	MainLogFile  = "serp_harvest.log"
	ErrorLogFile = "serp_harvest_error.log"
)

// 控制台日志格式
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Logger 全局日志器,InitLogger 之前为 zerolog 的空日志器
var Logger zerolog.Logger

// LogConfig 日志配置,文件始终写 JSON,Format 只影响控制台
type LogConfig struct {
	Level      string
	Format     string
	LogDir     string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // 天
	Compress   bool
	NoConsole  bool
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     LogFormatConsole,
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

func (c LogConfig) rotate(name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(c.LogDir, name),
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// consoleWriter 写到 stderr,stdout 留给结果表格和汇总
func (c LogConfig) consoleWriter() (io.Writer, error) {
	switch strings.ToLower(c.Format) {
	case "", LogFormatConsole:
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, nil
	case LogFormatJSON:
		return os.Stderr, nil
	default:
		return nil, fmt.Errorf("不支持的日志格式: %s", c.Format)
	}
}

// InitLogger 主日志记录所有级别,错误日志只记录 error 及以上
// 无法识别的级别按 info 处理
func InitLogger(config LogConfig) error {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	writers := []io.Writer{
		config.rotate(MainLogFile),
		&FilteredWriter{Writer: config.rotate(ErrorLogFile), MinLevel: zerolog.ErrorLevel},
	}
	if !config.NoConsole {
		console, err := config.consoleWriter()
		if err != nil {
			return err
		}
		writers = append(writers, console)
	}

	Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Caller().
		Logger()
	log.Logger = Logger

	Logger.Info().
		Str("level", level.String()).
		Str("log_dir", config.LogDir).
		Msg("日志系统初始化完成")
	return nil
}

// FilteredWriter 按级别过滤,MultiLevelWriter 只会调用 WriteLevel
type FilteredWriter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

// Write 没有级别信息,丢弃
func (w *FilteredWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (w *FilteredWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level == zerolog.NoLevel || level < w.MinLevel {
		return len(p), nil
	}
	return w.Writer.Write(p)
}

// WithTask worker 内使用,日志带上任务ID和根关键词
func WithTask(taskID, keyword string) zerolog.Logger {
	ctx := Logger.With().Str("keyword", keyword)
	if taskID != "" {
		ctx = ctx.Str("task_id", taskID)
	}
	return ctx.Logger()
}

func Info(msg string) { Logger.Info().Msg(msg) }

func Infof(format string, args ...interface{}) { Logger.Info().Msgf(format, args...) }

func Warn(msg string) { Logger.Warn().Msg(msg) }

func Warnf(format string, args ...interface{}) { Logger.Warn().Msgf(format, args...) }

func Debug(msg string) { Logger.Debug().Msg(msg) }

func Debugf(format string, args ...interface{}) { Logger.Debug().Msgf(format, args...) }

func Error(err error, msg string) { Logger.Error().Err(err).Msg(msg) }

func Errorf(format string, args ...interface{}) { Logger.Error().Msgf(format, args...) }

// Fatal 记录后退出进程
func Fatal(err error, msg string) { Logger.Fatal().Err(err).Msg(msg) }
