// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package unwind

// CPSRThumb is the T bit of the current program status register.
const CPSRThumb = 1 << 5

// Registers is a snapshot of the registers the unwinder starts from.
type Registers struct {
	PC   uint32
	SP   uint32
	LR   uint32
	CPSR uint32
}

// RegisterSource captures the registers of the faulting context in one go.
type RegisterSource interface {
	CaptureRegisters() Registers
}

// StaticRegisters is a snapshot taken elsewhere, e.g. from a crash dump.
type StaticRegisters Registers

func (s StaticRegisters) CaptureRegisters() Registers {
	return Registers(s)
}

// DumpStack captures the registers from src and prints their backtrace. It
// returns 0 without printing anything if the stack pointer or program
// counter is null.
func (u *Unwinder) DumpStack(src RegisterSource) int {
	regs := src.CaptureRegisters()
	pc := regs.PC
	if regs.CPSR&CPSRThumb != 0 {
		pc |= 1
	}
	if regs.SP == 0 || pc&^1 == 0 {
		return 0
	}
	return u.Backtrace(pc, regs.SP, regs.LR)
}
