// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
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

package config

import (
	"io"
	"log"
	"os"
)

// LogLevel is the verbosity of a LogGroup
type LogLevel int

const (
	// ErrLevel=1 - the minimum level of logging.
	ErrLevel LogLevel = iota + 1

	// WarnLevel=2 - the level for logging warnings, and errors
	WarnLevel

	// InfoLevel=3 - the level for logging high-level information, results
	InfoLevel

	// DebugLevel=4 - the level for debugging information. The solvers log their statistics at that level.
	DebugLevel

	// TraceLevel=5 - the level for tracing. Every processed path edge and every hand-off is logged; use it only on
	// small programs.
	TraceLevel
)

// LogGroup is a group of loggers, one per level. A message is printed when the level of the group is at least the
// level of the message.
type LogGroup struct {
	level LogLevel
	trace *log.Logger
	debug *log.Logger
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
}

// NewLogGroup returns a log group writing to standard output, with the level set in config.
func NewLogGroup(config *Config) *LogGroup {
	level := InfoLevel
	if config != nil && config.LogLevel != 0 {
		level = LogLevel(config.LogLevel)
	}
	return &LogGroup{
		level: level,
		trace: log.New(os.Stdout, "[TRACE] ", log.Flags()),
		debug: log.New(os.Stdout, "[DEBUG] ", log.Flags()),
		info:  log.New(os.Stdout, "[INFO] ", log.Flags()),
		warn:  log.New(os.Stdout, "[WARN] ", log.Flags()),
		err:   log.New(os.Stderr, "[ERROR] ", log.Flags()),
	}
}

// SetAllOutput redirects all the loggers of the group to w
func (l *LogGroup) SetAllOutput(w io.Writer) {
	l.trace.SetOutput(w)
	l.debug.SetOutput(w)
	l.info.SetOutput(w)
	l.warn.SetOutput(w)
	l.err.SetOutput(w)
}

// Level returns the level of the group
func (l *LogGroup) Level() LogLevel {
	return l.level
}

// LogsTrace returns true when trace messages are printed. Callers use it to skip building expensive messages.
func (l *LogGroup) LogsTrace() bool {
	return l.level >= TraceLevel
}

func (l *LogGroup) Tracef(format string, v ...any) {
	if l.level >= TraceLevel {
		l.trace.Printf(format, v...)
	}
}

func (l *LogGroup) Debugf(format string, v ...any) {
	if l.level >= DebugLevel {
		l.debug.Printf(format, v...)
	}
}

func (l *LogGroup) Infof(format string, v ...any) {
	if l.level >= InfoLevel {
		l.info.Printf(format, v...)
	}
}

func (l *LogGroup) Warnf(format string, v ...any) {
	if l.level >= WarnLevel {
		l.warn.Printf(format, v...)
	}
}

func (l *LogGroup) Errorf(format string, v ...any) {
	if l.level >= ErrLevel {
		l.err.Printf(format, v...)
	}
}
