// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package unwind

import (
	"math/bits"
)

// Thumb encodings. 32-bit forms are matched against first<<16 | second
// halfword.
const (
	// push {..., [lr]}
	thPushMask = 0xFE00
	thPush     = 0xB400

	// pop {..., [pc]}
	thPopMask = 0xFE00
	thPop     = 0xBC00

	// sub sp, #imm7<<2 and add sp, #imm7<<2
	thSPImmMask = 0xFF80
	thSubSP     = 0xB080
	thAddSP     = 0xB000

	thBxLR = 0x4770

	// stmdb sp!, {...} and ldmia sp!, {...}
	thStmdbMask = 0xFFFF0000
	thStmdb     = 0xE92D0000
	thLdmiaMask = 0xFFFF0000
	thLdmia     = 0xE8BD0000

	// str.w rX, [sp, #-4]! and ldr.w rX, [sp], #4
	thStrPreMask  = 0xFFFF0FFF
	thStrPre      = 0xF84D0D04
	thLdrPostMask = 0xFFFF0FFF
	thLdrPost     = 0xF85D0B04

	// sub.w/add.w sp, sp, #const
	thSPConstMask = 0xFBEF8F00
	thSubWSP      = 0xF1AD0D00
	thAddWSP      = 0xF10D0D00

	// subw/addw sp, sp, #imm12
	thSPImm12Mask = 0xFBFF8F00
	thSubWImm12   = 0xF2AD0D00
	thAddWImm12   = 0xF20D0D00

	// vpush/vpop {d/s...}
	thVMask = 0xFFBF0E00
	thVpush = 0xED2D0A00
	thVpop  = 0xECBD0A00
)

// IsThumb32 reports whether hw is the first halfword of a 32-bit Thumb-2
// instruction: its top five bits are 0b11101, 0b11110 or 0b11111.
func IsThumb32(hw uint16) bool {
	switch hw >> 11 {
	case 0x1D, 0x1E, 0x1F:
		return true
	}
	return false
}

func thumbImm12(insn uint32) uint32 {
	return (insn>>26&1)<<11 | (insn>>12&7)<<8 | insn&0xFF
}

// thumbExpandImm decodes the modified immediate of 32-bit Thumb data
// processing instructions.
func thumbExpandImm(imm12 uint32) uint32 {
	if imm12&0xC00 == 0 {
		b := imm12 & 0xFF
		switch (imm12 >> 8) & 3 {
		case 0:
			return b
		case 1:
			return b<<16 | b
		case 2:
			return b<<24 | b<<8
		default:
			return b<<24 | b<<16 | b<<8 | b
		}
	}
	return bits.RotateLeft32(0x80|imm12&0x7F, -int(imm12>>7))
}

// classifyThumb matches one Thumb instruction. The caller has already
// fetched one or two halfwords according to IsThumb32 and says which with
// wide.
func classifyThumb(insn uint32, wide bool) Fact {
	if wide {
		return classifyThumb32(insn)
	}
	return classifyThumb16(uint16(insn))
}

func classifyThumb16(insn uint16) Fact {
	switch {
	case insn == thBxLR:
		return ret(0)
	case insn&thPushMask == thPush:
		lr := insn&0x100 != 0
		n := bits.OnesCount8(uint8(insn))
		if lr {
			n++
		}
		return push(n, lr, false)
	case insn&thPopMask == thPop:
		n := bits.OnesCount8(uint8(insn))
		if insn&0x100 != 0 {
			return ret(n + 1)
		}
		return pop(n)
	case insn&thSPImmMask == thSubSP:
		return grow(int(insn & 0x7F))
	case insn&thSPImmMask == thAddSP:
		return pop(int(insn & 0x7F))
	}
	return notRecognized
}

func classifyThumb32(insn uint32) Fact {
	switch {
	case insn&thStmdbMask == thStmdb:
		return push(bits.OnesCount32(insn&0xFFFF), insn&(1<<regLR) != 0, insn&(1<<regPC) != 0)
	case insn&thStrPreMask == thStrPre:
		return push(1, (insn>>12)&0xF == regLR, false)
	case insn&thSPConstMask == thSubWSP:
		return grow(int(thumbExpandImm(thumbImm12(insn)) / 4))
	case insn&thSPImm12Mask == thSubWImm12:
		return grow(int(thumbImm12(insn) / 4))
	case insn&thVMask == thVpush:
		return vpush(int(insn & 0xFF))
	case insn&thLdmiaMask == thLdmia:
		n := bits.OnesCount32(insn & 0xFFFF)
		if insn&(1<<regPC) != 0 {
			return ret(n)
		}
		return pop(n)
	case insn&thLdrPostMask == thLdrPost:
		if (insn>>12)&0xF == regPC {
			return ret(1)
		}
		return pop(1)
	case insn&thSPConstMask == thAddWSP:
		return pop(int(thumbExpandImm(thumbImm12(insn)) / 4))
	case insn&thSPImm12Mask == thAddWImm12:
		return pop(int(thumbImm12(insn) / 4))
	case insn&thVMask == thVpop:
		return vpop(int(insn & 0xFF))
	}
	return notRecognized
}
