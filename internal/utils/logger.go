package utils

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var (
	base    = newBase()
	verbose atomic.Bool
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	if os.Getenv("DEBUG") == "true" {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// SetVerbose 打开或关闭全局调试日志
func SetVerbose(on bool) {
	verbose.Store(on)
	if on {
		base.SetLevel(logrus.DebugLevel)
	} else if os.Getenv("DEBUG") != "true" {
		base.SetLevel(logrus.InfoLevel)
	}
}

// Verbose 是否处于调试模式
func Verbose() bool {
	return verbose.Load() || base.IsLevelEnabled(logrus.DebugLevel)
}

// SetOutput 修改全局日志输出位置
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// SetJSON 切换为JSON格式输出（serve模式下便于采集）
func SetJSON() {
	base.SetFormatter(&logrus.JSONFormatter{})
}

type Logger struct {
	name  string
	entry *logrus.Entry
}

func NewLogger(name string) *Logger {
	return &Logger{
		name:  name,
		entry: base.WithField("module", name),
	}
}

// With 返回携带附加字段的子日志器
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{
		name:  l.name,
		entry: l.entry.WithField(key, value),
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}
