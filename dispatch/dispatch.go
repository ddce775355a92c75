// Copyright (c) 2017-2018 The qitmeer developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package dispatch provides the two task-submission modes the organizer and
// mempool are built on: a per-owner ordered FIFO queue, and a parallel
// fan-out/join group with cooperative group cancellation (spec.md §4.7,
// §5). It owns no domain state of its own; it is a plain executor, grounded
// on the teacher's blockManager message-loop (blkmgr.go) for the ordered
// side and its WaitGroup fan-out (e.g. bluematurity.go) for the parallel
// side.
package dispatch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Dispatcher owns one goroutine per registered owner for ordered work, and
// hands parallel work straight to an errgroup per call.
type Dispatcher struct {
	mu     sync.Mutex
	queues map[string]*ordered
	closed bool
}

// New constructs an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{queues: make(map[string]*ordered)}
}

// ordered is a single owner's FIFO: a buffered channel of thunks consumed by
// one dedicated goroutine, so submissions for the same owner always run in
// submission order on a single thread (spec.md §4.7 "ordered").
type ordered struct {
	work chan func()
	done chan struct{}
}

func newOrdered() *ordered {
	o := &ordered{work: make(chan func(), 256), done: make(chan struct{})}
	go o.run()
	return o
}

func (o *ordered) run() {
	defer close(o.done)
	for fn := range o.work {
		fn()
	}
}

// Ordered submits fn to owner's FIFO, creating the FIFO's worker goroutine
// on first use. fn runs strictly after every earlier fn submitted for the
// same owner. Ordered is a fire-and-forget submission; callers that need
// the result should close over a channel in fn.
func (d *Dispatcher) Ordered(owner string, fn func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	q, ok := d.queues[owner]
	if !ok {
		q = newOrdered()
		d.queues[owner] = q
	}
	d.mu.Unlock()

	q.work <- fn
}

// Stop closes every owner's FIFO and waits for in-flight work to finish
// (spec.md §4.5, organizer Stopped state: "intake in Stopped state is
// rejected").
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	queues := make([]*ordered, 0, len(d.queues))
	for _, q := range d.queues {
		queues = append(queues, q)
	}
	d.mu.Unlock()

	for _, q := range queues {
		close(q.work)
		<-q.done
	}
}

// Parallel runs fn once for each index in [0, n) concurrently, stopping the
// whole group at the first error (or at stop firing) and returning that
// error. A task that has not started when stop has fired returns
// context.Canceled without calling fn. Parallel collects no results; a
// caller that needs them has fn write into a slice it preallocates, indexed
// by i, and joins them itself once Parallel returns.
func Parallel(n int, stop <-chan struct{}, fn func(i int) error) error {
	if n == 0 {
		return nil
	}

	groupCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if stop != nil {
		go func() {
			select {
			case <-stop:
				cancel()
			case <-groupCtx.Done():
			}
		}()
	}

	g, ctx := errgroup.WithContext(groupCtx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-stop:
				return context.Canceled
			default:
			}
			return fn(i)
		})
	}
	return g.Wait()
}
