package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey int

const (
	ctxKeyLog ctxKey = iota
)

// Entry 取出 ctx 中的日志 entry，没有时退回到全局 logger
func Entry(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if e, ok := ctx.Value(ctxKeyLog).(*logrus.Entry); ok && e != nil {
			return e
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func WithLogEntry(ctx context.Context, e *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKeyLog, e)
}

// WithFields 在 ctx 已有的 entry 上追加字段
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return WithLogEntry(ctx, Entry(ctx).WithFields(fields))
}

// SetLevel 解析并设置全局日志级别，空字符串保持不变
func SetLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	return nil
}
