// Package logx 负责构造 logrus logger。
package logx

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New 创建 logger：TextFormatter + 完整时间戳；未知级别回退到 info。
func New(level string, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// Discard 返回丢弃全部输出的 logger。
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// OrDiscard 在 l 为 nil 时返回 Discard()。
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}
