package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormConfig tunes SQL logging. Level is one of silent, error, warn or info.
type GormConfig struct {
	Level         string
	SlowThreshold time.Duration
	LogNotFound   bool
}

// SQLLogger routes gorm output through zap, tagged with the request and
// recompute run carried by the context. Bound values are never logged.
type SQLLogger struct {
	base          *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
	logNotFound   bool
}

func NewSQLLogger(base *zap.Logger, cfg GormConfig) *SQLLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &SQLLogger{
		base:          base.Named("sql"),
		level:         parseGormLevel(cfg.Level),
		slowThreshold: cfg.SlowThreshold,
		logNotFound:   cfg.LogNotFound,
	}
}

func parseGormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent", "off":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *SQLLogger) message(ctx context.Context, min gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.level < min {
		return
	}
	var fields []zap.Field
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	if ce := WithContext(ctx, l.base).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Trace logs failed statements at error, slow ones at warn and, at info
// level, everything else at debug.
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold

	var level zapcore.Level
	switch {
	case err != nil && l.level >= gormlogger.Error && (l.logNotFound || !errors.Is(err, gormlogger.ErrRecordNotFound)):
		level = zapcore.ErrorLevel
	case slow && l.level >= gormlogger.Warn:
		level = zapcore.WarnLevel
	case l.level >= gormlogger.Info:
		level = zapcore.DebugLevel
	default:
		return
	}

	log := WithContext(ctx, l.base)
	ce := log.Check(level, "sql.statement")
	if ce == nil {
		return
	}
	stmt, rows := fc()
	stmt = strings.TrimSpace(stmt)
	verb, table := describeStatement(stmt)
	fields := []zap.Field{
		zap.String("sql", stmt),
		zap.String("verb", verb),
		zap.Duration("elapsed", elapsed),
		zap.Bool("slow", slow),
	}
	if table != "" {
		fields = append(fields, zap.String("table", table))
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

// ParamsFilter drops bound values; sales amounts and seller ids stay out of logs.
func (l *SQLLogger) ParamsFilter(_ context.Context, stmt string, _ ...interface{}) (string, []interface{}) {
	return stmt, nil
}

// describeStatement returns the leading verb of stmt and the first table it
// reads from or writes to. Leading CTEs are skipped.
func describeStatement(stmt string) (verb, table string) {
	tokens := strings.Fields(stmt)
	verb = "OTHER"
	for i := 0; i < len(tokens); i++ {
		tok := strings.ToUpper(strings.Trim(tokens[i], "();"))
		if verb == "OTHER" {
			switch tok {
			case "SELECT", "INSERT", "UPDATE", "DELETE":
				verb = tok
				if tok == "UPDATE" && i+1 < len(tokens) {
					return verb, cleanTable(tokens[i+1])
				}
			}
			continue
		}
		if (tok == "FROM" || tok == "INTO") && i+1 < len(tokens) {
			return verb, cleanTable(tokens[i+1])
		}
	}
	return verb, ""
}

func cleanTable(tok string) string {
	return strings.Trim(tok, "`\"();")
}

var _ gormlogger.Interface = (*SQLLogger)(nil)
