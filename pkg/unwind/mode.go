// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package unwind

import (
	"fmt"
)

// Mode is the instruction set the CPU executes a frame in.
type Mode uint8

const (
	// WideISA is the ARM state: fixed 32-bit instructions.
	WideISA Mode = iota
	// CompressedISA is the Thumb state: 16-bit instructions with a
	// 32-bit Thumb-2 escape.
	CompressedISA
)

// ModeOf returns the mode encoded in bit 0 of an interworking address.
func ModeOf(addr uint32) Mode {
	if addr&1 != 0 {
		return CompressedISA
	}
	return WideISA
}

// Toggle returns the other instruction set.
func (m Mode) Toggle() Mode {
	if m == CompressedISA {
		return WideISA
	}
	return CompressedISA
}

// Step is the natural instruction width in bytes.
func (m Mode) Step() uint32 {
	if m == CompressedISA {
		return 2
	}
	return 4
}

func (m Mode) String() string {
	switch m {
	case WideISA:
		return "arm"
	case CompressedISA:
		return "thumb"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// classify dispatches to the decoder of the mode. wide is only meaningful
// for Thumb, where it marks a 32-bit instruction stored as
// first<<16 | second halfword.
func (m Mode) classify(insn uint32, wide bool) Fact {
	switch m {
	case CompressedISA:
		return classifyThumb(insn, wide)
	default:
		return classifyARM(insn)
	}
}

// Frame is the state carried between unwinding steps.
type Frame struct {
	// PC is a return address (the caller's call site once unwound), with
	// the interworking bit cleared.
	PC uint32
	// SP is the stack pointer at the moment execution resumes at PC.
	SP uint32
	// LR is the live link register. It is only meaningful when HasLR is
	// set, which is the case for the innermost frame.
	LR    uint32
	HasLR bool
	Mode  Mode
}

func (f Frame) String() string {
	lr := "-"
	if f.HasLR {
		lr = fmt.Sprintf("%08x", f.LR)
	}
	return fmt.Sprintf("{pc %08x sp %08x lr %s %v}", f.PC, f.SP, lr, f.Mode)
}
