// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package unwind

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEstimateFrame(t *testing.T) {
	for _, tt := range []struct {
		name  string
		setup func(m *fakeMem)
		mode  Mode
		pc    uint32
		want  FrameSize
	}{
		{
			name: "arm push and sub",
			setup: func(m *fakeMem) {
				m.Arm(0x2000,
					0xE92D4030, // push {r4, r5, lr}
					0xE24DD008, // sub sp, sp, #8
					0xE1A00000, // nop
					0xEB000000) // bl
			},
			mode: WideISA,
			pc:   0x2010,
			want: FrameSize{Prologue: 0x2000, Words: 5, LRSaved: true, LRSlot: 1},
		},
		{
			name: "thumb push and sub",
			setup: func(m *fakeMem) {
				m.Thumb(0x3000,
					0xB530,         // push {r4, r5, lr}
					0xB082,         // sub sp, #8
					0x4608,         // mov r0, r1
					0xF000, 0xF800) // bl
			},
			mode: CompressedISA,
			pc:   0x300A,
			want: FrameSize{Prologue: 0x3000, Words: 5, LRSaved: true, LRSlot: 1},
		},
		{
			name: "thumb interworking bit",
			setup: func(m *fakeMem) {
				m.Thumb(0x3000, 0xB530, 0xB082, 0x4608, 0xF000, 0xF800)
			},
			mode: CompressedISA,
			pc:   0x300B,
			want: FrameSize{Prologue: 0x3000, Words: 5, LRSaved: true, LRSlot: 1},
		},
		{
			name: "thumb-2 prologue",
			setup: func(m *fakeMem) {
				m.Thumb(0x3100,
					0xE92D, 0x41F0, // push.w {r4-r8, lr}
					0xF5AD, 0x7D80) // sub.w sp, sp, #256
			},
			mode: CompressedISA,
			pc:   0x3108,
			want: FrameSize{Prologue: 0x3100, Words: 70, LRSaved: true, LRSlot: 1},
		},
		{
			name: "leaf without lr",
			setup: func(m *fakeMem) {
				m.Arm(0x2000, 0xE92D0030) // push {r4, r5}
			},
			mode: WideISA,
			pc:   0x2008,
			want: FrameSize{Prologue: 0x2000, Words: 2},
		},
		{
			name: "pc pushed above lr",
			setup: func(m *fakeMem) {
				m.Arm(0x2000, 0xE92DD800) // push {r11, r12, lr, pc}
			},
			mode: WideISA,
			pc:   0x2004,
			want: FrameSize{Prologue: 0x2000, Words: 4, LRSaved: true, LRSlot: 2},
		},
		{
			name: "arm push before prologue",
			setup: func(m *fakeMem) {
				m.Arm(0x2000,
					0xE92D000F, // push {r0-r3}
					0xE92D4010) // push {r4, lr}
			},
			mode: WideISA,
			pc:   0x200C,
			want: FrameSize{Prologue: 0x2004, Words: 6, LRSaved: true, LRSlot: 5},
		},
		{
			name: "arm sub before prologue",
			setup: func(m *fakeMem) {
				m.Arm(0x2000,
					0xE24DD010, // sub sp, sp, #16
					0xE92D4010) // push {r4, lr}
			},
			mode: WideISA,
			pc:   0x2008,
			want: FrameSize{Prologue: 0x2004, Words: 6, LRSaved: true, LRSlot: 5},
		},
		{
			name: "arm str lr before push",
			setup: func(m *fakeMem) {
				m.Arm(0x2000,
					0xE52DE004, // str lr, [sp, #-4]!
					0xE92D0030) // push {r4, r5}
			},
			mode: WideISA,
			pc:   0x2008,
			want: FrameSize{Prologue: 0x2004, Words: 3, LRSaved: true, LRSlot: 1},
		},
		{
			name: "thumb does not fold",
			setup: func(m *fakeMem) {
				m.Thumb(0x3000,
					0xB40F, // push {r0-r3}
					0xB510) // push {r4, lr}
			},
			mode: CompressedISA,
			pc:   0x3004,
			want: FrameSize{Prologue: 0x3002, Words: 2, LRSaved: true, LRSlot: 1},
		},
		{
			name: "vpush never opens a frame",
			setup: func(m *fakeMem) {
				m.Arm(0x2000,
					0xE92D4010, // push {r4, lr}
					0xED2D8B04) // vpush {d8, d9}
			},
			mode: WideISA,
			pc:   0x2008,
			want: FrameSize{Prologue: 0x2000, Words: 6, LRSaved: true, LRSlot: 1},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			m := fakeMemory(t)
			tt.setup(m)
			got, err := testUnwinder(m).EstimateFrame(tt.mode, tt.pc)
			if err != nil {
				t.Fatalf("EstimateFrame(%v, %#x) = %v", tt.mode, tt.pc, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("EstimateFrame(%v, %#x) mismatch (-want +got):\n%s", tt.mode, tt.pc, diff)
			}
		})
	}
}

func TestEstimateFrameErrors(t *testing.T) {
	m := fakeMemory(t)
	m.Arm(0x2200, 0xE92D4830, 0xE24DD010, 0xE1A00000)

	// The scan runs into the image start before finding a push.
	u := testUnwinder(m)
	if _, err := u.EstimateFrame(WideISA, 0x100C); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("EstimateFrame(0x100C) = %v, want %v", err, ErrInvalidAddress)
	}

	u = testUnwinder(m, WithScanLimit(8))
	if _, err := u.EstimateFrame(WideISA, 0x220C); !errors.Is(err, ErrScanLimit) {
		t.Errorf("EstimateFrame(0x220C) with limit 8 = %v, want %v", err, ErrScanLimit)
	}
	u = testUnwinder(m, WithScanLimit(12))
	if _, err := u.EstimateFrame(WideISA, 0x220C); err != nil {
		t.Errorf("EstimateFrame(0x220C) with limit 12 = %v, want nil", err)
	}
}

func TestScanEpilogue(t *testing.T) {
	for _, tt := range []struct {
		name  string
		setup func(m *fakeMem)
		mode  Mode
		want  int
	}{
		{
			name: "arm add and bx",
			setup: func(m *fakeMem) {
				m.Arm(0x2000, 0xE1A00000, 0xE28DD008, 0xE12FFF1E)
			},
			mode: WideISA,
			want: 2,
		},
		{
			name: "arm pop pc",
			setup: func(m *fakeMem) {
				m.Arm(0x2000, 0xE28DD008, 0xE8BD8070)
			},
			mode: WideISA,
			want: 6,
		},
		{
			name: "thumb add and pop pc",
			setup: func(m *fakeMem) {
				m.Thumb(0x2000, 0xB002, 0xBD10)
			},
			mode: CompressedISA,
			want: 4,
		},
		{
			name: "thumb-2 ldr pc",
			setup: func(m *fakeMem) {
				m.Thumb(0x2000, 0xF10D, 0x0D08, 0xF85D, 0xFB04)
			},
			mode: CompressedISA,
			want: 3,
		},
		{
			name: "next function first",
			setup: func(m *fakeMem) {
				m.Arm(0x2000, 0xE28DD008, 0xE92D4010)
			},
			mode: WideISA,
			want: 0,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			m := fakeMemory(t)
			tt.setup(m)
			got, err := testUnwinder(m).reader().scanEpilogue(tt.mode, 0x2000, DefaultScanLimit)
			if err != nil {
				t.Fatalf("scanEpilogue = %v", err)
			}
			if got != tt.want {
				t.Errorf("scanEpilogue = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScanEpilogueLimit(t *testing.T) {
	m := fakeMemory(t)
	u := testUnwinder(m)
	if _, err := u.reader().scanEpilogue(WideISA, 0x2000, 16); !errors.Is(err, ErrScanLimit) {
		t.Errorf("scanEpilogue = %v, want %v", err, ErrScanLimit)
	}
	// Running off the end of the image is an address error.
	if _, err := u.reader().scanEpilogue(WideISA, 0x1FFF0, DefaultScanLimit); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("scanEpilogue = %v, want %v", err, ErrInvalidAddress)
	}
}
