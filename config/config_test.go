// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	if err := DefaultConfig.Validate(); err != nil {
		t.Fatalf("DefaultConfig.Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	for _, tt := range []struct {
		name   string
		modify func(c *Config)
	}{
		{"inverted bounds", func(c *Config) { c.Bounds.SPLStart, c.Bounds.StackEnd = 0x38000, 0x20000 }},
		{"no address inside", func(c *Config) { c.Bounds.StackEnd = c.Bounds.SPLStart + 1 }},
		{"empty at top of memory", func(c *Config) { c.Bounds.SPLStart, c.Bounds.StackEnd = 0xFFFFFFFF, 0xFFFFFFFF }},
		{"no address inside at top of memory", func(c *Config) { c.Bounds.SPLStart, c.Bounds.StackEnd = 0xFFFFFFFE, 0xFFFFFFFF }},
		{"zero scan limit", func(c *Config) { c.ScanLimit = 0 }},
		{"console without baud", func(c *Config) { c.Console = Console{Device: "/dev/ttyS0"} }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := *DefaultConfig
			tt.modify(&c)
			if err := c.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}

	c := *DefaultConfig
	c.Bounds = Bounds{SPLStart: 0xFFFFFFFD, StackEnd: 0xFFFFFFFF}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate(%#x-%#x) = %v, want nil", c.Bounds.SPLStart, c.Bounds.StackEnd, err)
	}
}
