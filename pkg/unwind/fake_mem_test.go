// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package unwind

import (
	"fmt"
	"testing"
)

type read struct {
	address uint32
	size    int
}

func (r read) String() string {
	return fmt.Sprintf("{read @ %08x, %v bit}", r.address, r.size)
}

// fakeMem is a little-endian byte map. Unset bytes read as zero, which
// decodes as a harmless instruction in both modes.
type fakeMem struct {
	t     *testing.T
	bytes map[uint32]uint8
	reads []read
	quiet bool // don't record reads
}

func fakeMemory(t *testing.T) *fakeMem {
	return &fakeMem{t: t, bytes: make(map[uint32]uint8)}
}

func (m *fakeMem) Read16(a uint32) (uint16, error) {
	if !m.quiet {
		m.reads = append(m.reads, read{a, 16})
	}
	return uint16(m.bytes[a]) | uint16(m.bytes[a+1])<<8, nil
}

func (m *fakeMem) Read32(a uint32) (uint32, error) {
	if !m.quiet {
		m.reads = append(m.reads, read{a, 32})
	}
	var v uint32
	for i := uint32(0); i < 4; i++ {
		v |= uint32(m.bytes[a+i]) << (8 * i)
	}
	return v, nil
}

// Arm stores consecutive A32 instructions from addr.
func (m *fakeMem) Arm(addr uint32, insns ...uint32) {
	for i, insn := range insns {
		m.Word(addr+uint32(i)*4, insn)
	}
}

// Thumb stores consecutive halfwords from addr. 32-bit instructions are
// given as two halfwords, first halfword first.
func (m *fakeMem) Thumb(addr uint32, hws ...uint16) {
	for i, hw := range hws {
		a := addr + uint32(i)*2
		m.bytes[a] = uint8(hw)
		m.bytes[a+1] = uint8(hw >> 8)
	}
}

// Word stores a 32-bit value.
func (m *fakeMem) Word(addr uint32, v uint32) {
	for i := uint32(0); i < 4; i++ {
		m.bytes[addr+i] = uint8(v >> (8 * i))
	}
}

// Stack stores consecutive words from sp upward.
func (m *fakeMem) Stack(sp uint32, words ...uint32) {
	for i, w := range words {
		m.Word(sp+uint32(i)*4, w)
	}
}

// ExpectNoReads fails if any access touched [lo, hi).
func (m *fakeMem) ExpectNoReads(lo, hi uint32) {
	for _, r := range m.reads {
		if r.address+uint32(r.size/8) > lo && r.address < hi {
			m.t.Errorf("Unexpected %s in [%08x, %08x)", r, lo, hi)
		}
	}
}

// testBounds spans both the code and the stack used by the tests.
var testBounds = Range{Start: 0x1000, End: 0x20000}

func testUnwinder(m *fakeMem, opts ...Option) *Unwinder {
	return New(testBounds, m, opts...)
}
