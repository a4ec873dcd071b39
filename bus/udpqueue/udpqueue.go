// Copyright 2024 The Aurora-Coriolis Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package udpqueue implements the bounded per-bus UDP ingress deque from
// spec.md §4.5/§6: a mutex+CV protected ring of received packets,
// evicting the oldest entry when full, grounded on the same
// mutex-plus-condvar shape as iobuf.IOBuffer.
package udpqueue

import (
	"net"
	"sync"
)

// Packet is one received UDP datagram, timestamped at arrival.
type Packet struct {
	ReceiveTimeUs int64
	Source        *net.UDPAddr
	Data          []byte
}

// Queue is a bounded FIFO of Packets shared between the network receive
// loop and script-facing receive() calls.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []Packet
	capacity int
	stopped  bool
}

// New returns a queue that holds at most capacity packets.
func New(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends p, evicting the oldest entry first if the queue is full.
func (q *Queue) Push(p Packet) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
	}
	q.items = append(q.items, p)
	q.cond.Broadcast()
}

// Receive drains the queue into sink. If wait is true and the queue is
// currently empty, it blocks until a packet arrives or Stop is called.
// Returns false if it woke up because of Stop with nothing to deliver.
func (q *Queue) Receive(wait bool, sink func(Packet)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.stopped && wait {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return !q.stopped
	}
	for _, p := range q.items {
		sink(p)
	}
	q.items = q.items[:0]
	return true
}

// Len reports the number of currently queued packets.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Interrupt wakes all waiters without setting the terminal stop flag,
// used to force a receive(wait=true) call to re-check its predicate.
func (q *Queue) Interrupt() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cond.Broadcast()
}

// Stop sets the terminal flag and wakes all waiters; subsequent Push
// calls are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.cond.Broadcast()
}

func (q *Queue) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}
