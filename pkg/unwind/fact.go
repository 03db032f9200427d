// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package unwind

import (
	"fmt"
)

// FactKind is the stack effect of a decoded instruction.
type FactKind uint8

const (
	NotRecognized FactKind = iota
	// FramePush stores registers below the stack pointer.
	FramePush
	// FrameGrow subtracts an immediate from the stack pointer.
	FrameGrow
	// FramePop loads registers from the stack or adds to the stack pointer.
	FramePop
	// Return leaves the function, possibly popping the return address.
	Return
	// ModeSwitchCall is an interworking call or branch at a call site.
	ModeSwitchCall
)

var factNames = map[FactKind]string{
	NotRecognized:  "none",
	FramePush:      "push",
	FrameGrow:      "grow",
	FramePop:       "pop",
	Return:         "return",
	ModeSwitchCall: "mode-switch",
}

func (k FactKind) String() string {
	if n, ok := factNames[k]; ok {
		return n
	}
	return fmt.Sprintf("FactKind(%d)", uint8(k))
}

// Fact is the classification of one instruction.
type Fact struct {
	Kind FactKind
	// Words is the number of stack words pushed, reserved, popped or
	// released.
	Words int
	// Width is the byte width of a ModeSwitchCall instruction.
	Width int
	// LR and PC report whether a push stores the link register or the
	// program counter.
	LR bool
	PC bool
	// Vector marks vpush/vpop, which never start a prologue.
	Vector bool
}

var notRecognized = Fact{Kind: NotRecognized}

func push(words int, lr, pc bool) Fact {
	return Fact{Kind: FramePush, Words: words, LR: lr, PC: pc}
}

func vpush(words int) Fact {
	return Fact{Kind: FramePush, Words: words, Vector: true}
}

func grow(words int) Fact {
	return Fact{Kind: FrameGrow, Words: words}
}

func pop(words int) Fact {
	return Fact{Kind: FramePop, Words: words}
}

func vpop(words int) Fact {
	return Fact{Kind: FramePop, Words: words, Vector: true}
}

func ret(words int) Fact {
	return Fact{Kind: Return, Words: words}
}

// lrSlot is the position of the saved link register counted in words down
// from the top of the block written by a push. Registers are stored in
// ascending order, so LR sits on top unless PC was stored above it.
func (f Fact) lrSlot() int {
	if f.PC {
		return 2
	}
	return 1
}
