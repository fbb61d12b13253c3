package database

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLogger forwards gorm's query log to slog.
type gormLogger struct {
	log           *slog.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger adapts l (or the slog default when nil) to gorm's logger
// interface. Record-not-found errors are not logged.
func NewGormLogger(l *slog.Logger, level logger.LogLevel, slowThreshold time.Duration) logger.Interface {
	return &gormLogger{log: l, level: level, slowThreshold: slowThreshold}
}

func (g *gormLogger) logger() *slog.Logger {
	if g.log != nil {
		return g.log
	}
	return slog.Default()
}

func (g *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= logger.Info {
		g.logger().InfoContext(ctx, msg, "args", args)
	}
}

func (g *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= logger.Warn {
		g.logger().WarnContext(ctx, msg, "args", args)
	}
}

func (g *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= logger.Error {
		g.logger().ErrorContext(ctx, msg, "args", args)
	}
}

func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && g.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.logger().ErrorContext(ctx, "query failed", "error", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case g.slowThreshold > 0 && elapsed > g.slowThreshold && g.level >= logger.Warn:
		sql, rows := fc()
		g.logger().WarnContext(ctx, "slow query", "elapsed", elapsed, "threshold", g.slowThreshold, "rows", rows, "sql", sql)
	case g.level >= logger.Info:
		sql, rows := fc()
		g.logger().DebugContext(ctx, "query", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
