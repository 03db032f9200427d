// Copyright 2018 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package memory

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMem reads physical memory through /dev/mem, for unwinding a target
// that is halted but still powered.
type DevMem struct {
	mf *os.File
}

func OpenDevMem(path string) (*DevMem, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %v", path, err)
	}
	return &DevMem{f}, nil
}

// TODO: map the image bounds once in OpenDevMem instead of a page per
// read.
func (m *DevMem) mapAt(address uint32, size int) ([]byte, uintptr, error) {
	ps := uintptr(unix.Getpagesize())
	page := uintptr(address) & ^(ps - 1)
	offset := uintptr(address) - page
	mem, err := unix.Mmap(int(m.mf.Fd()), int64(page), int(offset)+size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, 0, fmt.Errorf("mmap %#08x: %v", address, err)
	}
	return mem, offset, nil
}

func (m *DevMem) Read32(address uint32) (uint32, error) {
	mem, offset, err := m.mapAt(address, 4)
	if err != nil {
		return 0, err
	}
	v := *(*uint32)(unsafe.Pointer(&mem[offset]))
	if err := unix.Munmap(mem); err != nil {
		return 0, fmt.Errorf("munmap %#08x: %v", address, err)
	}
	return v, nil
}

func (m *DevMem) Read16(address uint32) (uint16, error) {
	mem, offset, err := m.mapAt(address, 2)
	if err != nil {
		return 0, err
	}
	v := *(*uint16)(unsafe.Pointer(&mem[offset]))
	if err := unix.Munmap(mem); err != nil {
		return 0, fmt.Errorf("munmap %#08x: %v", address, err)
	}
	return v, nil
}

func (m *DevMem) Close() error {
	return m.mf.Close()
}
