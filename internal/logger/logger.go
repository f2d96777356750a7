// Copyright (C) 2024 The Dagu Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package logger provides the structured logger used throughout the
// scheduling engine: a thin wrapper over log/slog that reports the
// caller's source location rather than this package's own frames.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Logger is the logging surface every component depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
}

type logger struct {
	h     slog.Handler
	debug bool
}

type options struct {
	debug     bool
	format    string
	writer    io.Writer
	writerSet bool
	quiet     bool
}

// Option configures a Logger built with NewLogger.
type Option func(*options)

// WithDebug enables debug-level logging and source-location
// reporting.
func WithDebug() Option { return func(o *options) { o.debug = true } }

// WithFormat selects "text" (default) or "json" output.
func WithFormat(format string) Option { return func(o *options) { o.format = format } }

// WithWriter redirects output away from os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
		o.writerSet = true
	}
}

// WithQuiet discards output unless an explicit writer was provided.
func WithQuiet() Option { return func(o *options) { o.quiet = true } }

// NewLogger builds a Logger from the given options.
func NewLogger(opts ...Option) Logger {
	o := &options{format: "text", writer: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}
	if o.quiet && !o.writerSet {
		o.writer = io.Discard
	}

	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: o.debug,
	}

	var base slog.Handler
	if o.format == "json" {
		base = slog.NewJSONHandler(o.writer, handlerOpts)
	} else {
		base = slog.NewTextHandler(o.writer, handlerOpts)
	}

	// slogmulti.Pipe lets us rewrite each record's PC before it
	// reaches base, so AddSource reports the call site in the
	// caller's file rather than this package's own frames.
	h := slogmulti.
		Pipe(sourceFixupMiddleware()).
		Handler(base)

	return &logger{h: h, debug: o.debug}
}

// sourceFixupMiddleware returns a slogmulti middleware that replaces
// each record's program counter with the first frame outside this
// package, so AddSource attributes logs to the actual call site.
func sourceFixupMiddleware() slogmulti.Middleware {
	return func(next slog.Handler) slog.Handler {
		return &sourceFixupHandler{next: next}
	}
}

// sourceFixupHandler wraps a slog.Handler to rewrite each record's
// program counter before delegating to next.
type sourceFixupHandler struct {
	next slog.Handler
}

func (h *sourceFixupHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *sourceFixupHandler) Handle(ctx context.Context, record slog.Record) error {
	record.PC = callerPC()
	return h.next.Handle(ctx, record)
}

func (h *sourceFixupHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sourceFixupHandler{next: h.next.WithAttrs(attrs)}
}

func (h *sourceFixupHandler) WithGroup(name string) slog.Handler {
	return &sourceFixupHandler{next: h.next.WithGroup(name)}
}

// callerPC walks the stack past every frame inside this package and
// returns the PC of the first external caller.
func callerPC() uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isOwnFrame(frame.File) {
			return frame.PC
		}
		if !more {
			break
		}
	}
	return 0
}

func isOwnFrame(file string) bool {
	return strings.Contains(file, "internal/logger/logger.go") ||
		strings.Contains(file, "internal/logger/context.go") ||
		strings.Contains(file, "slog-multi")
}

func (l *logger) log(level slog.Level, msg string, args ...any) {
	if !l.h.Enabled(context.Background(), level) {
		return
	}
	r := slog.NewRecord(nowFn(), level, msg, callerPC())
	r.Add(args...)
	_ = l.h.Handle(context.Background(), r)
}

func (l *logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *logger) Debugf(format string, args ...any) { l.log(slog.LevelDebug, sprintf(format, args...)) }
func (l *logger) Infof(format string, args ...any)  { l.log(slog.LevelInfo, sprintf(format, args...)) }
func (l *logger) Warnf(format string, args ...any)  { l.log(slog.LevelWarn, sprintf(format, args...)) }
func (l *logger) Errorf(format string, args ...any) { l.log(slog.LevelError, sprintf(format, args...)) }

func (l *logger) With(args ...any) Logger {
	return &logger{h: l.h.WithAttrs(argsToAttrs(args)), debug: l.debug}
}

func (l *logger) WithGroup(name string) Logger {
	return &logger{h: l.h.WithGroup(name), debug: l.debug}
}
