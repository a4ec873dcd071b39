// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package metrics exposes the engine's runtime health as Prometheus
// collectors: pool occupancy, bus state, and interpreter restart/fault
// counts. Metrics are explicitly excluded from nothing in spec.md's
// Non-goals (only the console, peripheral backends, filesystem I/O, raw
// UDP sockets, and the HAL are out of scope), so this carries the same
// ambient-observability stance spec.md's own runtime would have on a
// platform with a real exporter.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PoolInUse = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aurcor",
		Subsystem: "pool",
		Name:      "blocks_in_use",
		Help:      "Number of blocks currently lent out from a memory pool.",
	}, []string{"pool"})

	PoolFree = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aurcor",
		Subsystem: "pool",
		Name:      "blocks_free",
		Help:      "Number of blocks currently sitting in a pool's free list.",
	}, []string{"pool"})

	PoolAllocFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aurcor",
		Subsystem: "pool",
		Name:      "alloc_failures_total",
		Help:      "Allocate() calls that found the pool's free list empty.",
	}, []string{"pool"})

	BusState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aurcor",
		Subsystem: "bus",
		Name:      "state",
		Help:      "Current LEDBus state (0=Idle, 1=Transmitting, 2=Stopped).",
	}, []string{"bus"})

	BusFramesTransmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aurcor",
		Subsystem: "bus",
		Name:      "frames_transmitted_total",
		Help:      "Frames successfully handed to a bus's Transmitter.",
	}, []string{"bus"})

	PresetRestarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aurcor",
		Subsystem: "preset",
		Name:      "restarts_total",
		Help:      "Times a preset's scheduler loop constructed a fresh interpreter task.",
	}, []string{"preset"})

	PresetScriptFaults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aurcor",
		Subsystem: "preset",
		Name:      "script_faults_total",
		Help:      "Uncaught script exceptions that terminated an interpreter task.",
	}, []string{"preset"})
)

// Register adds every collector in this package to reg.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		PoolInUse, PoolFree, PoolAllocFailures,
		BusState, BusFramesTransmitted,
		PresetRestarts, PresetScriptFaults,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
