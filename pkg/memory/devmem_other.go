// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package memory

import (
	"errors"
)

type DevMem struct{}

func OpenDevMem(path string) (*DevMem, error) {
	return nil, errors.New("physical memory access is only supported on linux")
}

func (m *DevMem) Read32(address uint32) (uint32, error) {
	return 0, errors.New("not supported")
}

func (m *DevMem) Read16(address uint32) (uint16, error) {
	return 0, errors.New("not supported")
}

func (m *DevMem) Close() error {
	return nil
}
