// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package unwind

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAddress is returned for addresses outside the image.
	ErrInvalidAddress = errors.New("address outside image")
)

// Memory is the target's address space. Values are little-endian.
type Memory interface {
	Read16(addr uint32) (uint16, error)
	Read32(addr uint32) (uint32, error)
}

// Range is the span of the loaded image, code and stack included. The
// firmware links it between __spl_start and __stack_srv_end.
type Range struct {
	Start uint32
	End   uint32
}

// Contains reports whether Start < addr < End. Both bounds are excluded,
// matching the firmware's check.
func (r Range) Contains(addr uint32) bool {
	return addr > r.Start && addr < r.End
}

func (r Range) String() string {
	return fmt.Sprintf("(%08x, %08x)", r.Start, r.End)
}

// reader is the only path from the unwinder to target memory. Every access
// is validated against the image bounds first.
type reader struct {
	bounds Range
	mem    Memory
}

func (r reader) check(addr, width uint32) error {
	last := addr + width - 1
	if last < addr || !r.bounds.Contains(addr) || !r.bounds.Contains(last) {
		return fmt.Errorf("%08x: %w", addr, ErrInvalidAddress)
	}
	return nil
}

func (r reader) half(addr uint32) (uint16, error) {
	if err := r.check(addr, 2); err != nil {
		return 0, err
	}
	return r.mem.Read16(addr)
}

func (r reader) word(addr uint32) (uint32, error) {
	if err := r.check(addr, 4); err != nil {
		return 0, err
	}
	return r.mem.Read32(addr)
}

// thumb decodes the Thumb instruction starting at addr. 32-bit encodings
// are returned as first<<16 | second halfword.
func (r reader) thumb(addr uint32) (insn uint32, wide bool, err error) {
	hw, err := r.half(addr)
	if err != nil {
		return 0, false, err
	}
	if !IsThumb32(hw) {
		return uint32(hw), false, nil
	}
	lo, err := r.half(addr + 2)
	if err != nil {
		return 0, false, err
	}
	return uint32(hw)<<16 | uint32(lo), true, nil
}

// thumbEndingAt decodes the Thumb instruction whose last halfword is at
// addr. If the halfword before addr is a 32-bit prefix the instruction
// starts there.
func (r reader) thumbEndingAt(addr uint32) (insn uint32, start uint32, wide bool, err error) {
	hw, err := r.half(addr)
	if err != nil {
		return 0, 0, false, err
	}
	if prev, perr := r.half(addr - 2); perr == nil && IsThumb32(prev) {
		return uint32(prev)<<16 | uint32(hw), addr - 2, true, nil
	}
	return uint32(hw), addr, false, nil
}

// insn fetches the instruction at addr in the given mode.
func (r reader) insn(m Mode, addr uint32) (insn uint32, width uint32, wide bool, err error) {
	if m == CompressedISA {
		insn, wide, err = r.thumb(addr)
		if wide {
			return insn, 4, true, err
		}
		return insn, 2, false, err
	}
	insn, err = r.word(addr)
	return insn, 4, true, err
}
