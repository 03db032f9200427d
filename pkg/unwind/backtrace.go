// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package unwind walks the stack of ARM and Thumb code without frame
// pointers or unwind tables, by decoding the instructions around each
// return address.
package unwind

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	// MaxDepth is the most frames a trace holds, the fault PC included.
	MaxDepth = 64
	// DefaultScanLimit bounds every instruction scan, in bytes.
	DefaultScanLimit = 0xFFFFFF
)

// LineWriter receives the backtrace, one line per frame.
type LineWriter interface {
	EmitLine(text string)
}

// LineWriterFunc adapts a function to LineWriter.
type LineWriterFunc func(text string)

func (f LineWriterFunc) EmitLine(text string) {
	f(text)
}

// Observer is told about every finished trace.
type Observer interface {
	ObserveTrace(t *Trace)
}

// StopReason says why a walk ended.
type StopReason uint8

const (
	StopNone StopReason = iota
	StopDepthLimit
	StopInvalidAddress
	StopScanLimit
	StopNoLinkRegister
	StopUnreadable
	StopNullFrame
)

var stopNames = map[StopReason]string{
	StopNone:           "none",
	StopDepthLimit:     "depth_limit",
	StopInvalidAddress: "invalid_address",
	StopScanLimit:      "scan_limit",
	StopNoLinkRegister: "no_lr",
	StopUnreadable:     "unreadable",
	StopNullFrame:      "null_frame",
}

func (s StopReason) String() string {
	if n, ok := stopNames[s]; ok {
		return n
	}
	return fmt.Sprintf("StopReason(%d)", uint8(s))
}

// StopReasons lists every reason a walk can end with.
func StopReasons() []StopReason {
	return []StopReason{StopDepthLimit, StopInvalidAddress, StopScanLimit,
		StopNoLinkRegister, StopUnreadable, StopNullFrame}
}

func stopReason(err error) StopReason {
	switch {
	case err == nil:
		return StopNone
	case errors.Is(err, errDepthLimit):
		return StopDepthLimit
	case errors.Is(err, ErrInvalidAddress):
		return StopInvalidAddress
	case errors.Is(err, ErrScanLimit):
		return StopScanLimit
	case errors.Is(err, ErrNoLinkRegister):
		return StopNoLinkRegister
	}
	return StopUnreadable
}

var errDepthLimit = errors.New("depth limit reached")

// Trace is the result of one walk, innermost frame first.
type Trace struct {
	PCs   [MaxDepth]uint32
	Depth int
	Stop  StopReason
	// Err is the error that ended the walk.
	Err error
	// Fallback is set when the caller of the innermost frame came from the
	// live link register rather than from the stack.
	Fallback bool
}

// Frames returns the resolved addresses.
func (t *Trace) Frames() []uint32 {
	return t.PCs[:t.Depth]
}

func (t *Trace) add(pc uint32) bool {
	if t.Depth >= MaxDepth {
		return false
	}
	t.PCs[t.Depth] = pc
	t.Depth++
	return true
}

// Unwinder walks the stacks of one firmware image.
type Unwinder struct {
	bounds    Range
	mem       Memory
	scanLimit uint32
	log       *zap.Logger
	out       LineWriter
	observer  Observer
}

// Option configures an Unwinder.
type Option func(*Unwinder)

// WithLogger traces unwinding decisions at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(u *Unwinder) {
		u.log = l
	}
}

// WithLineWriter sets where Backtrace prints frames.
func WithLineWriter(w LineWriter) Option {
	return func(u *Unwinder) {
		u.out = w
	}
}

// WithObserver reports every trace to o.
func WithObserver(o Observer) Option {
	return func(u *Unwinder) {
		u.observer = o
	}
}

// WithScanLimit bounds instruction scans to n bytes.
func WithScanLimit(n uint32) Option {
	return func(u *Unwinder) {
		if n > 0 {
			u.scanLimit = n
		}
	}
}

// New returns an Unwinder for the image spanning bounds in mem.
func New(bounds Range, mem Memory, opts ...Option) *Unwinder {
	u := &Unwinder{
		bounds:    bounds,
		mem:       mem,
		scanLimit: DefaultScanLimit,
		log:       zap.NewNop(),
		out:       LineWriterFunc(func(string) {}),
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Bounds returns the image span.
func (u *Unwinder) Bounds() Range {
	return u.bounds
}

// IsValidCode reports whether addr lies strictly inside the image.
func (u *Unwinder) IsValidCode(addr uint32) bool {
	return u.bounds.Contains(addr)
}

func (u *Unwinder) reader() reader {
	return reader{bounds: u.bounds, mem: u.mem}
}

// Walk unwinds from a register snapshot. Bit 0 of pc selects Thumb. If the
// stack cannot explain even the first caller, the walk is retried trusting
// lr, for faults hit before the prologue ran.
func (u *Unwinder) Walk(pc, sp, lr uint32) Trace {
	var t Trace
	if pc&^1 == 0 || sp == 0 {
		t.Stop = StopNullFrame
		return t
	}
	start := Frame{PC: pc &^ 1, SP: sp, LR: lr, HasLR: true, Mode: ModeOf(pc)}
	t.add(start.PC)
	if ce := u.log.Check(zap.DebugLevel, "backtrace"); ce != nil {
		ce.Write(zap.Stringer("frame", start))
	}

	err := u.walkFrom(&t, start)
	if t.Depth == 1 {
		next, ferr := u.stepFromLR(start)
		if ferr == nil {
			if ce := u.log.Check(zap.DebugLevel, "fallback to lr"); ce != nil {
				ce.Write(zap.Stringer("frame", next))
			}
			t.Fallback = true
			t.add(next.PC)
			err = u.walkFrom(&t, next)
		} else {
			if ce := u.log.Check(zap.DebugLevel, "fallback failed"); ce != nil {
				ce.Write(zap.Error(ferr))
			}
		}
	}
	t.Err = err
	t.Stop = stopReason(err)
	return t
}

func (u *Unwinder) walkFrom(t *Trace, f Frame) error {
	for t.Depth < MaxDepth {
		next, err := u.Step(f)
		if err != nil {
			if ce := u.log.Check(zap.DebugLevel, "walk stopped"); ce != nil {
				ce.Write(zap.Int("depth", t.Depth), zap.Error(err))
			}
			return err
		}
		t.add(next.PC)
		f = next
	}
	return errDepthLimit
}

// Backtrace walks from a register snapshot and prints one line per frame,
// the fault PC first. It returns the number of frames, 0 if pc or sp is
// null.
func (u *Unwinder) Backtrace(pc, sp, lr uint32) int {
	t := u.Walk(pc, sp, lr)
	for _, a := range t.Frames() {
		u.out.EmitLine(FormatFrame(a))
	}
	if u.observer != nil {
		u.observer.ObserveTrace(&t)
	}
	return t.Depth
}

// FormatFrame renders one backtrace line.
func FormatFrame(addr uint32) string {
	return fmt.Sprintf("backtrace: 0x%08x", addr)
}

func hex(a uint32) string {
	return fmt.Sprintf("0x%08x", a)
}
