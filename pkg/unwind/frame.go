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
	// ErrScanLimit is returned when no prologue or epilogue is found within
	// the scan limit.
	ErrScanLimit = errors.New("scan limit reached")
)

// FrameSize is the stack usage of a function at a given PC.
type FrameSize struct {
	// Prologue is the address of the register push that opened the frame.
	Prologue uint32
	// Words is the number of stack words between the current stack
	// pointer and the caller's stack pointer.
	Words int
	// LRSaved reports whether the return address was pushed. If so it
	// lives LRSlot words below the caller's stack pointer.
	LRSaved bool
	LRSlot  int
}

// prologue is the register push found by the backward scan.
type prologue struct {
	addr   uint32
	width  uint32
	words  int
	lrSlot int
}

// findPrologue scans backward from pc for the nearest register push.
func (r reader) findPrologue(m Mode, pc, limit uint32) (prologue, error) {
	step := m.Step()
	for dist := step; dist <= limit && dist < pc; dist += step {
		addr := pc - dist
		var (
			f     Fact
			start = addr
			width = step
		)
		if m == CompressedISA {
			insn, s, wide, err := r.thumbEndingAt(addr)
			if err != nil {
				return prologue{}, err
			}
			f = classifyThumb(insn, wide)
			if wide {
				start, width = s, 4
			}
		} else {
			insn, err := r.word(addr)
			if err != nil {
				return prologue{}, err
			}
			f = classifyARM(insn)
		}
		if f.Kind != FramePush || f.Vector {
			continue
		}
		p := prologue{addr: start, width: width, words: f.Words}
		if f.LR {
			p.lrSlot = f.lrSlot()
		}
		if m == WideISA {
			r.foldPrePrologue(&p)
		}
		return p, nil
	}
	return prologue{}, fmt.Errorf("prologue before %08x: %w", pc, ErrScanLimit)
}

// foldPrePrologue adds a push or stack adjustment placed right before the
// prologue, as compilers emit for variadic functions. That block sits
// above the prologue's registers.
func (r reader) foldPrePrologue(p *prologue) {
	insn, err := r.word(p.addr - 4)
	if err != nil {
		return
	}
	f := classifyARM(insn)
	if (f.Kind != FramePush || f.Vector) && f.Kind != FrameGrow {
		return
	}
	p.words += f.Words
	switch {
	case p.lrSlot != 0:
		p.lrSlot += f.Words
	case f.LR:
		p.lrSlot = f.lrSlot()
	}
}

// accumulateGrowth sums the stack words reserved by pushes and stack
// pointer subtractions in [from, pc). Other instructions are skipped.
func (r reader) accumulateGrowth(m Mode, from, pc, limit uint32) (int, error) {
	words := 0
	for addr := from; addr < pc; {
		if addr-from > limit {
			return 0, fmt.Errorf("growth after %08x: %w", from, ErrScanLimit)
		}
		insn, width, wide, err := r.insn(m, addr)
		if err != nil {
			return 0, err
		}
		f := m.classify(insn, wide)
		if f.Kind == FramePush || f.Kind == FrameGrow {
			words += f.Words
		}
		addr += width
	}
	return words, nil
}

// EstimateFrame computes how many stack words the function containing pc
// has consumed and where it saved its return address.
func (u *Unwinder) EstimateFrame(m Mode, pc uint32) (FrameSize, error) {
	r := u.reader()
	pc &^= 1
	p, err := r.findPrologue(m, pc, u.scanLimit)
	if err != nil {
		return FrameSize{}, err
	}
	extra, err := r.accumulateGrowth(m, p.addr+p.width, pc, u.scanLimit)
	if err != nil {
		return FrameSize{}, err
	}
	fs := FrameSize{
		Prologue: p.addr,
		Words:    p.words + extra,
		LRSaved:  p.lrSlot != 0,
		LRSlot:   p.lrSlot,
	}
	// Checked first so a disabled logger costs nothing per frame.
	if ce := u.log.Check(zap.DebugLevel, "frame estimate"); ce != nil {
		ce.Write(
			zap.Stringer("mode", m),
			zap.String("pc", hex(pc)),
			zap.String("prologue", hex(p.addr)),
			zap.Int("words", fs.Words),
			zap.Int("lr_slot", fs.LRSlot))
	}
	return fs, nil
}
