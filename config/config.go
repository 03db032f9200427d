// Copyright 2018 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
)

type Bounds struct {
	// SPLStart and StackEnd are the linker symbols __spl_start and
	// __stack_srv_end. Code and stack both lie strictly between them.
	SPLStart uint32
	StackEnd uint32
}

type Console struct {
	Device string
	Baud   int
}

type Config struct {
	Bounds    Bounds
	ScanLimit uint32
	LogFile   string
	LogLevel  string
	// MetricsAddress is where /metrics is served. Empty disables it.
	MetricsAddress string
	Console        Console
}

var DefaultConfig = &Config{
	// SRAM A1 on the sunxi SoCs, where the SPL and its service stack live.
	Bounds: Bounds{
		SPLStart: 0x00020000,
		StackEnd: 0x00038000,
	},

	// Scans never leave the image anyway; this only caps runaway loops
	// over very large dumps.
	ScanLimit: 0xFFFFFF,

	LogLevel: "info",

	Console: Console{
		Device: "",
		Baud:   115200,
	},
}

// Validate reports settings the unwinder cannot work with.
func (c *Config) Validate() error {
	if c.Bounds.StackEnd <= c.Bounds.SPLStart || c.Bounds.StackEnd-c.Bounds.SPLStart < 2 {
		return fmt.Errorf("empty image bounds (%#08x, %#08x)", c.Bounds.SPLStart, c.Bounds.StackEnd)
	}
	if c.ScanLimit == 0 {
		return errors.New("scan limit must be positive")
	}
	if c.Console.Device != "" && c.Console.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d for %s", c.Console.Baud, c.Console.Device)
	}
	return nil
}
