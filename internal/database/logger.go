package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/alex65536/formgate/internal/util/httputil"
	"github.com/alex65536/formgate/internal/util/slogx"
	"github.com/mattn/go-colorable"
	"gorm.io/gorm/logger"
)

type ourLogger struct {
	log *slog.Logger
	o   *Options
}

func Logger(srcLog *slog.Logger, o Options) logger.Interface {
	if slogx.IsDiscard(srcLog) && !o.Debug {
		return logger.Discard
	}
	if o.Debug {
		// In debug mode, use a fancier logger built into gorm itself.
		return logger.New(
			log.New(colorable.NewColorableStdout(), "", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Info,
				SlowThreshold:             o.SlowThreshold,
				IgnoreRecordNotFoundError: false,
				Colorful:                  true,
			},
		)
	}
	return &ourLogger{
		log: srcLog.With(slog.String("component", "gorm")),
		o:   &o,
	}
}

func (l *ourLogger) LogMode(level logger.LogLevel) logger.Interface {
	// No-op.
	return l
}

func (l *ourLogger) with(ctx context.Context) *slog.Logger {
	if rid := httputil.ExtractReqID(ctx); rid != "" {
		return l.log.With(slog.String("rid", rid))
	}
	return l.log
}

func (l *ourLogger) Info(ctx context.Context, msg string, data ...any) {
	l.with(ctx).InfoContext(ctx, "gorm info", slog.String("msg", fmt.Sprintf(msg, data...)))
}

func (l *ourLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.with(ctx).WarnContext(ctx, "gorm warn", slog.String("msg", fmt.Sprintf(msg, data...)))
}

func (l *ourLogger) Error(ctx context.Context, msg string, data ...any) {
	l.with(ctx).ErrorContext(ctx, "gorm error", slog.String("msg", fmt.Sprintf(msg, data...)))
}

func (l *ourLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound):
		sql, rows := fc()
		l.with(ctx).ErrorContext(ctx, "gorm sql error",
			slog.Duration("elapsed", elapsed),
			slogx.Err(err),
			slog.String("sql", sql),
			slog.Int64("rows", rows),
		)
	case elapsed > l.o.SlowThreshold:
		sql, rows := fc()
		l.with(ctx).WarnContext(ctx, "slow sql",
			slog.Duration("elapsed", elapsed),
			slog.String("sql", sql),
			slog.Int64("rows", rows),
		)
	}
}
