// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// aurcord is the runtime-core entry point: it constructs the Engine
// with fixed pool sizes and the real clock, and drives its scheduler
// loop. It does not load bus or preset configuration from the store
// (the config-dir flag is only logged), so the engine has no buses or
// presets. The physical transmitter backends, filesystem layout,
// and UDP listener are external collaborators out of scope for this
// binary (see SPEC_FULL.md's Non-goals); they would be wired in here by
// a fuller aurcord build.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"aurcor.io/x/aurcor/aurcorlog"
	"aurcor.io/x/aurcor/bus"
	"aurcor.io/x/aurcor/engine"
	"aurcor.io/x/aurcor/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

var log = aurcorlog.New("aurcord", nil)

// logLevelFlag is a pflag.Value wrapping aurcorlog's level names, the
// same shape as cmd/config/flag.go's Flag wrapper: it rejects an
// unrecognized level name at parse time instead of at first log call.
type logLevelFlag struct {
	level aurcorlog.Level
	name  string
}

func (f *logLevelFlag) String() string { return f.name }

func (f *logLevelFlag) Set(s string) error {
	lvl, ok := aurcorlog.ParseLevelName(s)
	if !ok {
		return fmt.Errorf("unrecognized log level %q", s)
	}
	f.level, f.name = lvl, s
	return nil
}

func (f *logLevelFlag) Type() string { return "level" }

var (
	flagConfigDir string
	flagLogLevel  = &logLevelFlag{level: aurcorlog.WARNING, name: "WARNING"}
	flagTickMs    int
)

var rootCmd = &cobra.Command{
	Use:           "aurcord",
	Short:         "Run the Aurora-Coriolis LED scripting engine",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagConfigDir, "config-dir", "/etc/aurcor", "directory holding bus/preset/profile CBOR files")
	flags.VarP(flagLogLevel, "log-level", "l", "root log level (TRACE..EMERG)")
	flags.IntVar(&flagTickMs, "tick-ms", 20, "scheduler poll interval in milliseconds")
}

func run(cmd *cobra.Command, args []string) error {
	log.SetLevel(flagLogLevel.level)
	cmd.Flags().VisitAll(func(pf *pflag.Flag) {
		if pf.Changed {
			log.Info("flag %s = %s", pf.Name, pf.Value.String())
		}
	})

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	eng := engine.New(engine.PoolSizes{
		HeapBlockSize: 16 * 1024, HeapCapacity: 4,
		WorkStackBlockSize: 8 * 1024, WorkStackCapacity: 4,
		LEDBufferBlockSize: 1500 * 3, LEDBufferCapacity: 4,
	}, bus.RealClock{})

	log.Notice("aurcord starting: config-dir=%s tick=%dms", flagConfigDir, flagTickMs)

	ticker := time.NewTicker(time.Duration(flagTickMs) * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		eng.RunLoops()
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "aurcord: %s\n", err)
		os.Exit(1)
	}
}
