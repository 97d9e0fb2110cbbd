// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package coplog is the coprocessor's process-wide logger setup: a
// zap.Logger configured from a LogConfig the same way pkg/logutil's
// SetupMOLogger builds one (console or json encoding, level/stacktrace
// thresholds, optional lumberjack file rotation). The retrieved copy of
// pkg/logutil kept only its test files with no surviving implementation
// (see DESIGN.md), so this package rebuilds the contract those tests
// pin down rather than carrying over dead test-only files.
//
// Info/Warn/Error/Debug take a context.Context and add zap.AddCallerSkip(1)
// before logging, the way pkg/logutil/logutil2's helpers wrap
// logutil.GetGlobalLogger(): a log line attributes to the real call site
// (the coprocessor code that called coplog.Warn), not to this wrapper.
package coplog

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig mirrors the fields pkg/logutil's tests exercised: level and
// format selection, optional rotating file output, and a stacktrace
// threshold independent of the log level itself.
type LogConfig struct {
	Level           string // zapcore.Level string, e.g. "debug", "info"
	Format          string // "console" or "json"
	Filename        string // empty means stderr
	MaxSize         int    // megabytes, lumberjack.Logger.MaxSize
	MaxDays         int    // lumberjack.Logger.MaxAge
	MaxBackups      int    // lumberjack.Logger.MaxBackups
	StacktraceLevel string // zapcore.Level string; defaults to "error"
}

func (c *LogConfig) getLevel() zap.AtomicLevel {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		l = zapcore.InfoLevel
	}
	return zap.NewAtomicLevelAt(l)
}

func (c *LogConfig) getStacktraceLevel() zapcore.Level {
	s := c.StacktraceLevel
	if s == "" {
		s = "error"
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		l = zapcore.ErrorLevel
	}
	return l
}

func (c *LogConfig) getOptions() []zap.Option {
	return []zap.Option{zap.AddStacktrace(c.getStacktraceLevel()), zap.AddCaller()}
}

func (c *LogConfig) getSyncer() zapcore.WriteSyncer {
	if c.Filename == "" {
		return zapcore.AddSync(os.Stderr)
	}
	if fi, err := os.Stat(c.Filename); err == nil && fi.IsDir() {
		panic("log file can't be a directory")
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   c.Filename,
		MaxSize:    c.MaxSize,
		MaxAge:     c.MaxDays,
		MaxBackups: c.MaxBackups,
	})
}

func getLoggerEncoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	switch format {
	case "console":
		return zapcore.NewConsoleEncoder(encCfg)
	case "json":
		return zapcore.NewJSONEncoder(encCfg)
	default:
		panic(fmt.Sprintf("unsupported log format: %s", format))
	}
}

func (c *LogConfig) getEncoder() zapcore.Encoder {
	return getLoggerEncoder(c.Format)
}

var global *zap.Logger = zap.NewNop()

// Setup builds the process-wide logger from conf and installs it as the
// package-level logger every Info/Warn/Error/Debug call below uses.
func Setup(conf *LogConfig) {
	core := zapcore.NewCore(conf.getEncoder(), conf.getSyncer(), conf.getLevel())
	global = zap.New(core, conf.getOptions()...)
}

// L returns the current process-wide logger.
func L() *zap.Logger { return global }

type requestIDKey struct{}

// WithRequestID attaches a request (or RPC call) identifier to ctx so every
// Info/Warn/Error/Debug call made with that context carries it as a field,
// the way pkg/logutil's ContextFields pulls trace/span identifiers out of
// the context it is given.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// contextFields mirrors logutil.ContextFields()(ctx): it returns the
// zap.Option that injects whatever identifying fields ctx carries, so the
// caller doesn't have to repeat them at every log call site.
func contextFields(ctx context.Context) zap.Option {
	if ctx == nil {
		return zap.Fields()
	}
	id, ok := ctx.Value(requestIDKey{}).(string)
	if !ok || id == "" {
		return zap.Fields()
	}
	return zap.Fields(zap.String("request_id", id))
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	global.WithOptions(zap.AddCallerSkip(1), contextFields(ctx)).Info(msg, fields...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	global.WithOptions(zap.AddCallerSkip(1), contextFields(ctx)).Error(msg, fields...)
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	global.WithOptions(zap.AddCallerSkip(1), contextFields(ctx)).Debug(msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	global.WithOptions(zap.AddCallerSkip(1), contextFields(ctx)).Warn(msg, fields...)
}
