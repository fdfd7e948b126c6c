// Copyright (c) 2026 The dsd-nexus contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of dsd-nexus.
//
// dsd-nexus is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// dsd-nexus is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with dsd-nexus.  If not, see <https://www.gnu.org/licenses/>.

// Package decoderpool schedules DST decode work across a fixed set of
// decoder instances bound to a persistent worker pool, preserving
// dispatch order on the way back out (spec §4.I).
package decoderpool

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/wichers/dsd-nexus/internal/sacderr"
	"github.com/wichers/dsd-nexus/internal/sacdsource"
)

// Job is one unit of decode work: a DST-compressed frame and the
// pre-allocated buffer its raw DSD bytes should land in.
type Job struct {
	Input  []byte
	Output []byte
}

type task struct {
	job  Job
	done chan error
}

// Coordinator owns N decoder instances and a persistent queue of
// decode tasks. Acquire/release of a decoder is guarded by a mutex and
// condition variable per spec §4.I/§5, never by a channel-based
// semaphore, so the "mark busy, block until free" language in the spec
// maps directly onto the implementation.
type Coordinator struct {
	mu        sync.Mutex
	cond      *sync.Cond
	decoders  []sacdsource.DSTDecoder
	available []bool

	queue  chan task
	wg     sync.WaitGroup
	closed bool
	log    *slog.Logger

	// singleMu/singleDone back the fast path for single-frame batches: a
	// pre-allocated task slot and completion channel, reused across
	// calls so steady-state decoding of one frame at a time never
	// allocates.
	singleMu   sync.Mutex
	singleDone chan error
}

// New creates a coordinator with n decoder instances for the given
// channel count, and starts n persistent worker goroutines. A nil
// logger falls back to slog.Default().
func New(n int, channels int, factory sacdsource.DecoderFactory, logger *slog.Logger) (*Coordinator, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: decoder pool size must be positive, got %d", sacderr.ErrInvalidArgument, n)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Coordinator{
		decoders:   make([]sacdsource.DSTDecoder, n),
		available:  make([]bool, n),
		queue:      make(chan task, n),
		singleDone: make(chan error, 1),
		log:        logger,
	}
	c.cond = sync.NewCond(&c.mu)

	for i := range n {
		dec, err := factory(channels)
		if err != nil {
			return nil, fmt.Errorf("create decoder %d: %w", i, err)
		}
		c.decoders[i] = dec
		c.available[i] = true
	}

	c.wg.Add(n)
	for range n {
		go c.worker()
	}

	return c, nil
}

// acquire blocks until a decoder is free, marks it busy, and returns its
// index.
func (c *Coordinator) acquire() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		for i, free := range c.available {
			if free {
				c.available[i] = false
				return i
			}
		}
		c.cond.Wait()
	}
}

// release returns decoder idx to the available set and wakes one waiter.
func (c *Coordinator) release(idx int) {
	c.mu.Lock()
	c.available[idx] = true
	c.mu.Unlock()
	c.cond.Signal()
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for t := range c.queue {
		idx := c.acquire()
		_, err := c.decoders[idx].DecodeFrame(t.job.Input, t.job.Output)
		c.release(idx)
		if err != nil {
			err = fmt.Errorf("%w: %v", sacderr.ErrDecode, err)
			c.log.Error("DST frame decode failed", "decoder_index", idx, "error", err)
		}
		t.done <- err
	}
}

// DecodeBatch dispatches jobs to the worker pool and returns results to
// the caller in jobs' original order, regardless of actual completion
// order: each job gets its own completion channel, and the coordinator
// waits on them in submission order. A decoder error invalidates only
// its own job; the coordinator still drains every remaining completion
// before returning the first error encountered.
func (c *Coordinator) DecodeBatch(jobs []Job) error {
	if len(jobs) == 0 {
		return nil
	}
	if len(jobs) == 1 {
		return c.decodeOne(jobs[0])
	}

	dones := make([]chan error, len(jobs))
	for i, j := range jobs {
		dones[i] = make(chan error, 1)
		c.queue <- task{job: j, done: dones[i]}
	}

	var firstErr error
	for _, done := range dones {
		if err := <-done; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// decodeOne is the fast path for a single-frame batch: it reuses a
// pre-allocated completion channel instead of allocating one per call.
func (c *Coordinator) decodeOne(job Job) error {
	c.singleMu.Lock()
	defer c.singleMu.Unlock()
	c.queue <- task{job: job, done: c.singleDone}
	return <-c.singleDone
}

// Close drains and stops the worker pool. It must only be called once
// no further DecodeBatch calls are in flight.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.queue)
	c.wg.Wait()
}
