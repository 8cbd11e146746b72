// Copyright The NRI Plugins Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides the leveled, per-source Logger used throughout this
// module, backed by log/slog. The shape of the interface follows
// intel-cri-resource-manager's pkg/log; the slog backend follows the newer
// containers-nri-plugins/pkg/log/slog-logger.go bridge.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Level describes the severity of a log message.
type Level int

const (
	// LevelDebug is the severity for debug messages.
	LevelDebug Level = iota
	// LevelInfo is the severity for informational messages.
	LevelInfo
	// LevelWarn is the severity for warnings.
	LevelWarn
	// LevelError is the severity for errors.
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger is the interface for producing log messages for/from a particular
// source.
type Logger interface {
	// Debug formats and emits a debug message.
	Debug(format string, args ...interface{})
	// Info formats and emits an informational message.
	Info(format string, args ...interface{})
	// Warn formats and emits a warning message.
	Warn(format string, args ...interface{})
	// Error formats and emits an error message.
	Error(format string, args ...interface{})
	// Fatal formats and emits an error message, then os.Exit(1)'s.
	Fatal(format string, args ...interface{})
	// DebugEnabled reports whether debug messages are enabled for this source.
	DebugEnabled() bool
	// Source returns the source name of this Logger.
	Source() string
}

type namedLogger struct {
	source string
}

var (
	mu      sync.RWMutex
	loggers = map[string]*namedLogger{}
	level   = LevelInfo
	backend = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

// SetLevel sets the global minimum severity emitted by every Logger.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// Get returns the (possibly newly created) Logger for the given source.
func Get(source string) Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[source]; ok {
		return l
	}
	l := &namedLogger{source: source}
	loggers[source] = l
	return l
}

// Default returns the Logger for the unnamed default source.
func Default() Logger {
	return Get("default")
}

func (l *namedLogger) enabled(lvl Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return lvl >= level
}

func (l *namedLogger) log(lvl Level, format string, args ...interface{}) {
	if !l.enabled(lvl) {
		return
	}
	backend.Log(context.Background(), lvl.slogLevel(), fmt.Sprintf(format, args...), slog.String("source", l.source))
}

func (l *namedLogger) Debug(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }
func (l *namedLogger) Info(format string, args ...interface{})  { l.log(LevelInfo, format, args...) }
func (l *namedLogger) Warn(format string, args ...interface{})  { l.log(LevelWarn, format, args...) }
func (l *namedLogger) Error(format string, args ...interface{}) { l.log(LevelError, format, args...) }

func (l *namedLogger) Fatal(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
	os.Exit(1)
}

func (l *namedLogger) DebugEnabled() bool { return l.enabled(LevelDebug) }
func (l *namedLogger) Source() string     { return l.source }
