// Copyright 2026 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// btdump prints the backtrace of a crashed SPL from its register values
// and either memory dumps or the live physical memory.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/sunxi-spl/spl-bt/config"
	"github.com/sunxi-spl/spl-bt/pkg/console"
	"github.com/sunxi-spl/spl-bt/pkg/logger"
	"github.com/sunxi-spl/spl-bt/pkg/memory"
	"github.com/sunxi-spl/spl-bt/pkg/metric"
	"github.com/sunxi-spl/spl-bt/pkg/unwind"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// hexFlag is a 32-bit flag accepting 0x prefixed values.
type hexFlag uint32

func (h *hexFlag) String() string {
	return fmt.Sprintf("0x%08x", uint32(*h))
}

func (h *hexFlag) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return err
	}
	*h = hexFlag(v)
	return nil
}

// dump is a file mapped at an address, given as file@0xaddr.
type dump struct {
	file string
	base uint32
}

type dumpFlag []dump

func (d *dumpFlag) String() string {
	var s []string
	for _, x := range *d {
		s = append(s, fmt.Sprintf("%s@0x%08x", x.file, x.base))
	}
	return strings.Join(s, ",")
}

func (d *dumpFlag) Set(s string) error {
	i := strings.LastIndex(s, "@")
	if i <= 0 {
		return fmt.Errorf("want file@address, got %q", s)
	}
	base, err := strconv.ParseUint(s[i+1:], 0, 32)
	if err != nil {
		return err
	}
	*d = append(*d, dump{file: s[:i], base: uint32(base)})
	return nil
}

type options struct {
	cfg    config.Config
	dumps  []dump
	devMem string
	regs   unwind.Registers
}

var (
	dumps    dumpFlag
	pc       hexFlag
	sp       hexFlag
	lr       hexFlag
	cpsr     hexFlag
	splStart = hexFlag(config.DefaultConfig.Bounds.SPLStart)
	stackEnd = hexFlag(config.DefaultConfig.Bounds.StackEnd)

	devMem    = flag.String("devmem", "", "Read the target from this physical memory device (e.g. /dev/mem) instead of dumps")
	scanLimit = flag.Uint("scan-limit", uint(config.DefaultConfig.ScanLimit), "Maximum bytes scanned for a prologue or epilogue")
	logFile   = flag.String("log", config.DefaultConfig.LogFile, "Also write JSON log entries to this file")
	logLevel  = flag.String("level", config.DefaultConfig.LogLevel, "Log level, debug traces every unwinding decision")
	metrics   = flag.String("metrics", config.DefaultConfig.MetricsAddress, "Serve Prometheus metrics on this address and keep running")
	uart      = flag.String("console", config.DefaultConfig.Console.Device, "Mirror the backtrace to this serial device")
	baud      = flag.Int("baud", config.DefaultConfig.Console.Baud, "Baud rate of the serial console")
)

func init() {
	flag.Var(&dumps, "dump", "Memory dump to map, as file@address. Repeat for code and stack")
	flag.Var(&pc, "pc", "Program counter at the fault, bit 0 set for Thumb")
	flag.Var(&sp, "sp", "Stack pointer at the fault")
	flag.Var(&lr, "lr", "Link register at the fault")
	flag.Var(&cpsr, "cpsr", "CPSR at the fault, the T bit selects Thumb")
	flag.Var(&splStart, "spl-start", "Address of __spl_start, the lower image bound")
	flag.Var(&stackEnd, "stack-end", "Address of __stack_srv_end, the upper image bound")
}

// openMemory maps the dumps, or opens devMem when set.
func openMemory(fs afero.Fs, o *options) (unwind.Memory, func() error, error) {
	if o.devMem != "" {
		m, err := memory.OpenDevMem(o.devMem)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	}
	if len(o.dumps) == 0 {
		return nil, nil, fmt.Errorf("no memory: give -dump or -devmem")
	}
	var img memory.Image
	for _, d := range o.dumps {
		if err := img.LoadFile(fs, d.file, d.base); err != nil {
			return nil, nil, err
		}
	}
	return &img, func() error { return nil }, nil
}

// run prints the backtrace described by o and returns its depth.
func run(fs afero.Fs, o *options, l *zap.Logger, out unwind.LineWriter, obs unwind.Observer) (int, error) {
	if err := o.cfg.Validate(); err != nil {
		return 0, err
	}
	mem, closeMem, err := openMemory(fs, o)
	if err != nil {
		return 0, err
	}
	defer closeMem()

	bounds := unwind.Range{Start: o.cfg.Bounds.SPLStart, End: o.cfg.Bounds.StackEnd}
	opts := []unwind.Option{
		unwind.WithLogger(l),
		unwind.WithLineWriter(out),
		unwind.WithScanLimit(o.cfg.ScanLimit),
	}
	if obs != nil {
		opts = append(opts, unwind.WithObserver(obs))
	}
	u := unwind.New(bounds, mem, opts...)
	l.Info("unwinding",
		zap.Stringer("bounds", bounds),
		zap.String("pc", fmt.Sprintf("0x%08x", o.regs.PC)),
		zap.String("sp", fmt.Sprintf("0x%08x", o.regs.SP)),
		zap.String("lr", fmt.Sprintf("0x%08x", o.regs.LR)))
	return u.DumpStack(unwind.StaticRegisters(o.regs)), nil
}

// optionsFromFlags collects the parsed command line.
func optionsFromFlags() *options {
	o := &options{
		cfg:    *config.DefaultConfig,
		dumps:  dumps,
		devMem: *devMem,
		regs: unwind.Registers{
			PC:   uint32(pc),
			SP:   uint32(sp),
			LR:   uint32(lr),
			CPSR: uint32(cpsr),
		},
	}
	o.cfg.Bounds = config.Bounds{SPLStart: uint32(splStart), StackEnd: uint32(stackEnd)}
	o.cfg.ScanLimit = uint32(*scanLimit)
	o.cfg.LogFile = *logFile
	o.cfg.LogLevel = *logLevel
	o.cfg.MetricsAddress = *metrics
	o.cfg.Console = config.Console{Device: *uart, Baud: *baud}
	return o
}

// realMain runs btdump and returns the exit code. Failures are returned
// rather than fatal so the log file and console are flushed and closed.
func realMain(fs afero.Fs, o *options, stdout io.Writer) int {
	// Setup errors go to the default console logger.
	log := logger.LogContainer.GetSimpleLogger()
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(o.cfg.LogLevel)); err != nil {
		log.Errorf("Invalid log level %q: %v", o.cfg.LogLevel, err)
		return 1
	}
	l, closeLog, err := logger.New(logger.Options{Console: stdout, Fs: fs, File: o.cfg.LogFile, Level: level})
	if err != nil {
		log.Errorf("Could not set up logging: %v", err)
		return 1
	}
	defer closeLog()
	sl := l.Sugar()

	var out unwind.LineWriter = logger.LineSink{SugaredLogger: sl}
	if o.cfg.Console.Device != "" {
		c, err := console.Open(o.cfg.Console.Device, o.cfg.Console.Baud, sl)
		if err != nil {
			sl.Errorf("Could not open console: %v", err)
			return 1
		}
		defer c.Close()
		out = console.Tee(out, c)
	}

	var obs unwind.Observer
	if o.cfg.MetricsAddress != "" {
		r, err := metric.NewRecorder(metric.DefaultOpts, prometheus.DefaultRegisterer)
		if err != nil {
			sl.Errorf("Could not set up metrics: %v", err)
			return 1
		}
		addr, err := metric.StartMetrics(o.cfg.MetricsAddress, prometheus.DefaultGatherer, sl)
		if err != nil {
			sl.Errorf("Could not serve metrics: %v", err)
			return 1
		}
		sl.Infof("Serving metrics on http://%s/metrics", addr)
		obs = r
	}

	n, err := run(fs, o, l, out, obs)
	if err != nil {
		sl.Errorf("Backtrace failed: %v", err)
		return 1
	}
	sl.Infof("%d frames", n)

	if o.cfg.MetricsAddress != "" {
		select {}
	}
	return 0
}

func main() {
	flag.Parse()
	os.Exit(realMain(afero.NewOsFs(), optionsFromFlags(), os.Stdout))
}
