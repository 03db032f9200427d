// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memory provides the target address spaces the unwinder reads
// from: dumps loaded into an Image, or the live physical memory of the
// machine.
package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnmapped = errors.New("address not mapped")
	ErrOverlap  = errors.New("segment overlaps")
)

type segment struct {
	base uint32
	data []byte
}

func (s segment) end() uint64 {
	return uint64(s.base) + uint64(len(s.data))
}

// Image is a sparse little-endian address space made of segments, for
// example a code dump and a stack dump taken at different addresses.
type Image struct {
	segs []segment
}

// AddSegment maps data at base. Segments may not overlap.
func (m *Image) AddSegment(base uint32, data []byte) error {
	s := segment{base: base, data: data}
	if s.end() > 1<<32 {
		return fmt.Errorf("segment at %#08x: %d bytes do not fit below 4GiB", base, len(data))
	}
	for _, o := range m.segs {
		if uint64(base) < o.end() && uint64(o.base) < s.end() {
			return fmt.Errorf("segment at %#08x: %w %#08x", base, ErrOverlap, o.base)
		}
	}
	m.segs = append(m.segs, s)
	sort.Slice(m.segs, func(i, j int) bool { return m.segs[i].base < m.segs[j].base })
	return nil
}

// Span returns the lowest mapped address and one past the highest.
func (m *Image) Span() (lo uint32, hi uint64) {
	if len(m.segs) == 0 {
		return 0, 0
	}
	return m.segs[0].base, m.segs[len(m.segs)-1].end()
}

func (m *Image) slice(addr uint32, n int) ([]byte, error) {
	i := sort.Search(len(m.segs), func(i int) bool { return m.segs[i].end() > uint64(addr) })
	if i == len(m.segs) || m.segs[i].base > addr {
		return nil, fmt.Errorf("%#08x: %w", addr, ErrUnmapped)
	}
	s := m.segs[i]
	off := addr - s.base
	if uint64(off)+uint64(n) > uint64(len(s.data)) {
		return nil, fmt.Errorf("%#08x+%d: %w", addr, n, ErrUnmapped)
	}
	return s.data[off : off+uint32(n)], nil
}

func (m *Image) Read16(addr uint32) (uint16, error) {
	b, err := m.slice(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *Image) Read32(addr uint32) (uint32, error) {
	b, err := m.slice(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}
