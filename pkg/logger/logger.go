// Copyright 2021 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	LogContainer     logContainer
	loggerInit       sync.Once
	simpleLoggerInit sync.Once
)

type logContainer struct {
	logger       *zap.Logger
	simpleLogger *zap.SugaredLogger
}

// Options selects where log entries go.
type Options struct {
	// Console receives human readable entries. Nil means stdout.
	Console io.Writer
	// Fs and File add a second core writing to File on Fs. An empty File
	// disables it.
	Fs   afero.Fs
	File string
	// Level is the minimum level of both cores.
	Level zapcore.Level
}

// GetLogger returns the pointer to the logger and creates one if none exists
func (l *logContainer) GetLogger() *zap.Logger {
	loggerInit.Do(func() {
		l.logger = zap.New(getConsoleCore(os.Stdout, zapcore.InfoLevel))
	})
	return l.logger
}

// GetSimpleLogger returns the pointer to the sugared logger and creates one
// if none exists
func (l *logContainer) GetSimpleLogger() *zap.SugaredLogger {
	simpleLoggerInit.Do(func() {
		l.simpleLogger = l.GetLogger().Sugar()
	})
	return l.simpleLogger
}

// New builds a logger from opts. The returned close function flushes and
// closes the log file, if any.
func New(opts Options) (*zap.Logger, func() error, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	core := getConsoleCore(console, opts.Level)
	if opts.File == "" {
		return zap.New(core), func() error { return nil }, nil
	}

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	f, err := fs.Create(opts.File)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create logfile: %v", err)
	}
	l := zap.New(zapcore.NewTee(core, getJsonCore(f, opts.Level)))
	closeFn := func() error {
		_ = l.Sync()
		return f.Close()
	}
	return l, closeFn, nil
}

// LineSink prints backtrace lines as info entries.
type LineSink struct {
	*zap.SugaredLogger
}

func (s LineSink) EmitLine(text string) {
	s.Info(text)
}

func getConsoleEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func getJsonEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.EpochTimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

func getConsoleCore(w io.Writer, level zapcore.Level) zapcore.Core {
	return zapcore.NewCore(getConsoleEncoder(), zapcore.AddSync(w), level)
}

func getJsonCore(w io.Writer, level zapcore.Level) zapcore.Core {
	return zapcore.NewCore(getJsonEncoder(), zapcore.AddSync(w), level)
}
