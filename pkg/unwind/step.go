// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package unwind

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrNoLinkRegister is returned when a frame did not save its return
	// address and the live link register is no longer known.
	ErrNoLinkRegister = errors.New("return address not saved and link register unknown")
)

// Step unwinds one frame: it finds the caller of the function executing at
// f.PC. Any error ends the walk at f.
func (u *Unwinder) Step(f Frame) (Frame, error) {
	r := u.reader()
	if !u.bounds.Contains(f.PC) {
		return Frame{}, fmt.Errorf("pc %08x: %w", f.PC, ErrInvalidAddress)
	}
	fs, err := u.EstimateFrame(f.Mode, f.PC)
	if err != nil {
		return Frame{}, err
	}
	sp := f.SP + uint32(fs.Words)*4

	var lr uint32
	switch {
	case fs.LRSaved:
		lr, err = r.word(sp - uint32(fs.LRSlot)*4)
		if err != nil {
			return Frame{}, fmt.Errorf("saved lr: %w", err)
		}
	case f.HasLR:
		lr = f.LR
	default:
		return Frame{}, fmt.Errorf("pc %08x: %w", f.PC, ErrNoLinkRegister)
	}
	return u.caller(lr, sp, f.Mode)
}

// caller builds the frame that resumes at return address lr.
func (u *Unwinder) caller(lr, sp uint32, m Mode) (Frame, error) {
	if !u.bounds.Contains(lr &^ 1) {
		return Frame{}, fmt.Errorf("lr %08x: %w", lr, ErrInvalidAddress)
	}
	call, cm, ok := u.reader().resolveCallSite(lr, m)
	if !ok {
		return Frame{}, fmt.Errorf("call site before %08x: %w", lr, ErrInvalidAddress)
	}
	next := Frame{PC: call, SP: sp, Mode: cm}
	if ce := u.log.Check(zap.DebugLevel, "step"); ce != nil {
		ce.Write(
			zap.String("lr", hex(lr)),
			zap.String("call", hex(call)),
			zap.String("sp", hex(sp)),
			zap.Stringer("mode", cm))
	}
	return next, nil
}

// stepFromLR unwinds a frame whose function has not saved anything yet:
// the live link register is taken as the return address. The stack
// pointer is raised by whatever the epilogue ahead of PC pops. If PC is
// outside the image only LR is used.
func (u *Unwinder) stepFromLR(f Frame) (Frame, error) {
	if !f.HasLR {
		return Frame{}, fmt.Errorf("pc %08x: %w", f.PC, ErrNoLinkRegister)
	}
	sp := f.SP
	if u.bounds.Contains(f.PC) {
		words, err := u.reader().scanEpilogue(f.Mode, f.PC, u.scanLimit)
		if err != nil {
			return Frame{}, err
		}
		sp += uint32(words) * 4
	}
	return u.caller(f.LR, sp, f.Mode)
}

// scanEpilogue walks forward from pc to the function's return, summing the
// words released on the way. Reaching another function's push first means
// nothing is released.
func (r reader) scanEpilogue(m Mode, pc, limit uint32) (int, error) {
	words := 0
	for addr := pc; addr-pc <= limit; {
		insn, width, wide, err := r.insn(m, addr)
		if err != nil {
			return 0, err
		}
		f := m.classify(insn, wide)
		switch f.Kind {
		case FramePop:
			words += f.Words
		case Return:
			return words + f.Words, nil
		case FramePush:
			return 0, nil
		}
		addr += width
	}
	return 0, fmt.Errorf("epilogue after %08x: %w", pc, ErrScanLimit)
}
