// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package unwind

import (
	"math/bits"
)

// ARM (A32) encodings that touch the stack. The condition field is masked
// off, so conditional forms match too.
const (
	// stmdb sp!, {...}
	armPushMask = 0x0FFF0000
	armPush     = 0x092D0000

	// str rX, [sp, #-4]!
	armStrPreMask = 0x0FFF0FFF
	armStrPre     = 0x052D0004

	// sub sp, sp, #imm
	armSubSPMask = 0x0FFFF000
	armSubSP     = 0x024DD000

	// vpush {d/s...}
	armVpushMask = 0x0FBF0E00
	armVpush     = 0x0D2D0A00

	// ldmia sp!, {...}
	armPopMask = 0x0FFF0000
	armPop     = 0x08BD0000

	// add sp, sp, #imm
	armAddSPMask = 0x0FFFF000
	armAddSP     = 0x028DD000

	// vpop {d/s...}
	armVpopMask = 0x0FBF0E00
	armVpop     = 0x0CBD0A00

	// ldr rX, [sp], #4
	armLdrPostMask = 0x0FFF0FFF
	armLdrPost     = 0x049D0004

	// bx lr
	armBxLRMask = 0x0FFFFFFF
	armBxLR     = 0x012FFF1E

	regLR = 14
	regPC = 15
)

// armImm decodes an A32 modified immediate: imm8 rotated right by twice
// the rotate field.
func armImm(insn uint32) uint32 {
	rot := int(insn>>8) & 0xF
	return bits.RotateLeft32(insn&0xFF, -2*rot)
}

// classifyARM matches one A32 instruction against the stack-affecting
// forms. Anything else is NotRecognized.
func classifyARM(insn uint32) Fact {
	switch {
	case insn&armBxLRMask == armBxLR:
		return ret(0)
	case insn&armPushMask == armPush:
		return push(bits.OnesCount32(insn&0xFFFF), insn&(1<<regLR) != 0, insn&(1<<regPC) != 0)
	case insn&armStrPreMask == armStrPre:
		return push(1, (insn>>12)&0xF == regLR, false)
	case insn&armSubSPMask == armSubSP:
		return grow(int(armImm(insn) / 4))
	case insn&armVpushMask == armVpush:
		return vpush(int(insn & 0xFF))
	case insn&armPopMask == armPop:
		n := bits.OnesCount32(insn & 0xFFFF)
		if insn&(1<<regPC) != 0 {
			return ret(n)
		}
		return pop(n)
	case insn&armAddSPMask == armAddSP:
		return pop(int(armImm(insn) / 4))
	case insn&armVpopMask == armVpop:
		return vpop(int(insn & 0xFF))
	case insn&armLdrPostMask == armLdrPost:
		if (insn>>12)&0xF == regPC {
			return ret(1)
		}
		return pop(1)
	}
	return notRecognized
}
