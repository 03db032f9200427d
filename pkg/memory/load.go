// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"fmt"

	"github.com/spf13/afero"
)

// Load maps the contents of file at base.
func (m *Image) Load(file string, base uint32) error {
	return m.LoadFile(afero.NewOsFs(), file, base)
}

func (m *Image) LoadFile(fs afero.Fs, file string, base uint32) error {
	b, err := afero.ReadFile(fs, file)
	if err != nil {
		return fmt.Errorf("could not read dump %s: %v", file, err)
	}
	if len(b) == 0 {
		return fmt.Errorf("dump %s is empty", file)
	}
	if err := m.AddSegment(base, b); err != nil {
		return fmt.Errorf("could not map dump %s: %w", file, err)
	}
	return nil
}
