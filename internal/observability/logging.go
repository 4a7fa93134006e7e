// Package observability builds the structured logger shared by every component.
package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/tactician/internal/config"
)

// NewLogger creates a structured logger from the given logging configuration.
// Every entry carries an "app" field set to app; an empty app is omitted.
//
// cfg.Components sets a minimum level per component. A component is one
// segment of a logger's name as given to zap.Logger.Named, so "sequence"
// matches "sequence" and "planner.sequence"; the rightmost matching segment
// wins and unmatched loggers use cfg.Level.
//
// Precondition: cfg.Level and every cfg.Components value must be one of
// "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig, app string) (*zap.Logger, error) {
	base, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}
	levels := make(map[string]zapcore.Level, len(cfg.Components))
	floor := base
	for name, raw := range cfg.Components {
		l, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing level %q for component %q: %w", raw, name, err)
		}
		levels[name] = l
		floor = min(floor, l)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(floor)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.Sampling = nil
	if app != "" {
		zapCfg.InitialFields = map[string]any{"app": app}
	}

	var opts []zap.Option
	if len(levels) > 0 {
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return WithComponentLevels(c, base, levels)
		}))
	}
	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// WithComponentLevels wraps core so that each entry is filtered by the level
// of the component its logger is named for, or by base when none matches.
// core must itself be enabled at the lowest of those levels.
func WithComponentLevels(core zapcore.Core, base zapcore.Level, levels map[string]zapcore.Level) zapcore.Core {
	return &componentCore{Core: core, base: base, levels: levels}
}

type componentCore struct {
	zapcore.Core
	base   zapcore.Level
	levels map[string]zapcore.Level
}

func (c *componentCore) With(fields []zapcore.Field) zapcore.Core {
	return &componentCore{Core: c.Core.With(fields), base: c.base, levels: c.levels}
}

func (c *componentCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if ent.Level < c.levelFor(ent.LoggerName) {
		return ce
	}
	return c.Core.Check(ent, ce)
}

func (c *componentCore) levelFor(name string) zapcore.Level {
	segs := strings.Split(name, ".")
	for i := len(segs) - 1; i >= 0; i-- {
		if l, ok := c.levels[segs[i]]; ok {
			return l
		}
	}
	return c.base
}
