package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// GormLogger routes gorm's SQL logging through zerolog
type GormLogger struct {
	level logger.LogLevel
}

// NewGormLogger creates a gorm logger. level is silent, error, warn or info.
func NewGormLogger(level string) *GormLogger {
	lvl := logger.Warn
	switch level {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	return &GormLogger{level: lvl}
}

// LogMode implements logger.Interface
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &GormLogger{level: level}
}

// Info implements logger.Interface
func (l *GormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		log.Info().Str("component", "gorm").Msgf(msg, args...)
	}
}

// Warn implements logger.Interface
func (l *GormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		log.Warn().Str("component", "gorm").Msgf(msg, args...)
	}
}

// Error implements logger.Interface
func (l *GormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		log.Error().Str("component", "gorm").Msgf(msg, args...)
	}
}

// Trace implements logger.Interface
func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var evt *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		evt = log.Error().Err(err)
	case elapsed > slowQueryThreshold && l.level >= logger.Warn:
		evt = log.Warn().Bool("slow", true)
	case l.level >= logger.Info:
		evt = log.Debug()
	default:
		return
	}

	sql, rows := fc()
	evt.Str("component", "gorm").
		Dur("elapsed", elapsed).
		Int64("rows", rows).
		Str("sql", sql).
		Msg("query")
}
