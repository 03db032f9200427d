// Copyright 2018 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package console mirrors backtrace lines to a serial port, the way the
// SPL prints them on its debug UART.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/sunxi-spl/spl-bt/pkg/unwind"
	"github.com/tarm/serial"
	"go.uber.org/zap"
)

// Writer sends CRLF terminated lines to a port. Write errors are logged
// once and further lines are dropped.
type Writer struct {
	mu     sync.Mutex
	port   io.WriteCloser
	log    *zap.SugaredLogger
	broken bool
}

// Open opens the serial device f at the given baud rate.
func Open(f string, baud int, log *zap.SugaredLogger) (*Writer, error) {
	c := &serial.Config{Name: f, Baud: baud}
	s, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("serial.OpenPort: %v", err)
	}
	return NewWriter(s, log), nil
}

// NewWriter wraps an already opened port.
func NewWriter(port io.WriteCloser, log *zap.SugaredLogger) *Writer {
	return &Writer{port: port, log: log}
}

func (w *Writer) EmitLine(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.broken {
		return
	}
	if _, err := io.WriteString(w.port, text+"\r\n"); err != nil {
		w.log.Errorf("UART write error: %v", err)
		w.broken = true
	}
}

func (w *Writer) Close() error {
	return w.port.Close()
}

type tee []unwind.LineWriter

func (t tee) EmitLine(text string) {
	for _, w := range t {
		w.EmitLine(text)
	}
}

// Tee sends every line to all of ws in order. Nil writers are skipped.
func Tee(ws ...unwind.LineWriter) unwind.LineWriter {
	var t tee
	for _, w := range ws {
		if w != nil {
			t = append(t, w)
		}
	}
	return t
}
