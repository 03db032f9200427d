// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package unwind

// Interworking call-site encodings found right before a return address.
const (
	csThumbBxMask = 0xFF80
	csThumbBx     = 0x4700 // bx Rm
	csThumbBlx    = 0x4780 // blx Rm

	csArmBxMask = 0x0FFFFFF0
	csArmBx     = 0x012FFF10 // bx Rm
	csArmBlx    = 0x012FFF30 // blx Rm

	csArmBlxImmMask = 0xFE000000
	csArmBlxImm     = 0xFA000000 // blx #imm
	csArmBlMask     = 0x0F000000
	csArmBl         = 0x0B000000 // bl #imm, any condition but 0b1111

	// 32-bit Thumb blx/bl #imm as first<<16 | second halfword.
	csT2BlxImmMask = 0xF800D000
	csT2BlxImm     = 0xF000C000
	csT2Bl         = 0xF000D000
)

var (
	modeSwitch2 = Fact{Kind: ModeSwitchCall, Width: 2}
	modeSwitch4 = Fact{Kind: ModeSwitchCall, Width: 4}
)

func thumb16CallSite(hw uint16) Fact {
	if hw&csThumbBxMask == csThumbBx || hw&csThumbBxMask == csThumbBlx {
		return modeSwitch2
	}
	return notRecognized
}

func armCallSite(w uint32) Fact {
	switch {
	case w&csArmBxMask == csArmBx, w&csArmBxMask == csArmBlx:
		return modeSwitch4
	case w&csArmBlxImmMask == csArmBlxImm:
		return modeSwitch4
	}
	return notRecognized
}

func thumb32CallSite(t2 uint32) Fact {
	if t2&csT2BlxImmMask == csT2BlxImm {
		return modeSwitch4
	}
	return notRecognized
}

// ResolveCallSite steps back from a return address to the call instruction
// that produced it and reports the instruction set of the caller. Every
// interworking form flips the mode; anything else is a plain call of the
// natural width for m. Bit 0 of retAddr is the caller's state and is
// only consulted for words that decode both as a plain bl and as an
// interworking call. ok is false when the bytes before retAddr are
// outside the image.
func (u *Unwinder) ResolveCallSite(retAddr uint32, m Mode) (call uint32, caller Mode, ok bool) {
	return u.reader().resolveCallSite(retAddr, m)
}

func (r reader) resolveCallSite(retAddr uint32, m Mode) (uint32, Mode, bool) {
	addr := retAddr &^ 1
	if !r.bounds.Contains(addr) {
		return 0, m, false
	}
	hw, err := r.half(addr - 2)
	if err != nil {
		return 0, m, false
	}
	// The word may straddle the image start while the halfword does not;
	// only the 16-bit forms can match then.
	w, werr := r.word(addr - 4)
	hasWord := werr == nil
	t2 := (w&0xFFFF)<<16 | w>>16

	// Both instruction sets are tried, the current one first, since the
	// caller may be in either. Some ARM blx #imm words also read as a
	// Thumb bl and some Thumb-2 blx pairs as an ARM bl; bit 0 of the
	// return address carries the caller's state and settles those, so a
	// plain bl is only taken when it agrees with m.
	sameState := ModeOf(retAddr) == m
	var f Fact
	if m == CompressedISA {
		f = thumb16CallSite(hw)
		if f.Kind == NotRecognized && hasWord {
			if sameState && t2&csT2BlxImmMask == csT2Bl {
				return addr - 4, m, true
			}
			f = thumb32CallSite(t2)
			if f.Kind == NotRecognized {
				f = armCallSite(w)
			}
		}
	} else {
		if hasWord {
			if sameState && w&csArmBlMask == csArmBl && w>>28 != 0xF {
				return addr - 4, m, true
			}
			f = armCallSite(w)
			if f.Kind == NotRecognized {
				f = thumb32CallSite(t2)
			}
		}
		if f.Kind == NotRecognized {
			f = thumb16CallSite(hw)
		}
	}
	if f.Kind == ModeSwitchCall {
		return addr - uint32(f.Width), m.Toggle(), true
	}

	width := m.Step()
	if m == CompressedISA && hasWord && IsThumb32(uint16(w)) {
		width = 4
	}
	return addr - width, m, true
}
