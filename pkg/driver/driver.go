// ComicSync Core
// Copyright (c) 2025 The ComicSync Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of ComicSync Core.
//
// ComicSync Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ComicSync Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with ComicSync Core.  If not, see <http://www.gnu.org/licenses/>.

// Package driver runs the oscillation session: a single background worker
// that converts the active page's waveform parameters into timed device
// commands, alternating max-hold and min-hold half-cycles.
package driver

import (
	"math"
	"sync"
	"time"

	"github.com/ComicSyncProject/comicsync-core/pkg/cfs"
	"github.com/ComicSyncProject/comicsync-core/pkg/waveform"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// State is the driver's lifecycle state. Stopping is transient: it exists
// only for the duration of the single stop command send.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Sender is the serial boundary the driver writes through.
type Sender interface {
	Send(data []byte) error
}

// Driver is the oscillation state machine. At most one worker goroutine is
// ever active; starting a new session fully stops and joins the previous
// worker first, which is what structurally guarantees the serial link has
// no concurrent writers.
type Driver struct {
	link   Sender
	clock  clockwork.Clock
	doc    *cfs.Document
	active *waveform.Params
	cancel chan struct{}
	done   chan struct{}
	state  State
	mu     sync.Mutex
}

// New creates an idle driver. A nil clock uses the real one; tests inject a
// fake clock to drive half-cycle timing deterministically.
func New(link Sender, clock clockwork.Clock) *Driver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Driver{link: link, clock: clock, state: StateIdle}
}

// SetDocument replaces the document consulted by NewPage.
func (d *Driver) SetDocument(doc *cfs.Document) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = doc
}

// NewPage handles a page-change event. A page with an entry (re)starts the
// session with that page's parameters; an empty or unset page stops it. The
// stop command is sent exactly once per transition out of Running into an
// unset page, and never on a set-to-set restart.
func (d *Driver) NewPage(page string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	wasRunning := d.stopWorkerLocked()

	var params waveform.Params
	ok := false
	if page != "" && d.doc != nil {
		params, ok = d.doc.Get(page)
	}

	// A zero frequency entry behaves like an unset page: the loop would
	// never send anything, so the session ends instead.
	if !ok || params.Freq == 0 {
		if wasRunning {
			d.sendStopLocked()
		}
		return
	}

	d.startWorkerLocked(params)
}

// Stop cancels any active session, sending the stop command if one was
// running.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopWorkerLocked() {
		d.sendStopLocked()
	}
}

// EmergencyStop cancels any active session and always sends the stop
// command, even when idle.
func (d *Driver) EmergencyStop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopWorkerLocked()
	d.sendStopLocked()
}

// State returns the current lifecycle state. A worker that exited on its
// own (send failure) is reconciled to Idle here.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	return d.state
}

// ActiveParams returns the parameter snapshot of the running session.
func (d *Driver) ActiveParams() (waveform.Params, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconcileLocked()
	if d.active == nil {
		return waveform.Params{}, false
	}
	return *d.active, true
}

// reconcileLocked folds a self-terminated worker (send failure) back into
// the Idle state. No stop command is attempted on a link already known to
// be failing.
func (d *Driver) reconcileLocked() {
	if d.state != StateRunning || d.done == nil {
		return
	}
	select {
	case <-d.done:
		d.cancel = nil
		d.done = nil
		d.state = StateIdle
		d.active = nil
	default:
	}
}

// stopWorkerLocked cancels and joins the current worker, if any. It reports
// whether the worker was still running when cancelled; a worker that had
// already exited on its own does not count, so no stop command follows a
// send failure.
func (d *Driver) stopWorkerLocked() bool {
	if d.cancel == nil {
		return false
	}

	exited := false
	select {
	case <-d.done:
		exited = true
	default:
	}

	close(d.cancel)
	<-d.done

	d.cancel = nil
	d.done = nil
	d.state = StateIdle
	d.active = nil
	return !exited
}

func (d *Driver) startWorkerLocked(params waveform.Params) {
	// Copy the snapshot: the session must not observe concurrent edits to
	// the document entry it was started from.
	params = params.Normalized()
	d.cancel = make(chan struct{})
	d.done = make(chan struct{})
	d.state = StateRunning
	d.active = &params

	log.Debug().
		Float64("max", params.Max).
		Float64("min", params.Min).
		Float64("freq", params.Freq).
		Float64("decline_ratio", params.DeclineRatio).
		Msg("starting oscillation session")

	go d.run(params, d.cancel, d.done)
}

func (d *Driver) sendStopLocked() {
	d.state = StateStopping
	if err := d.link.Send(EncodeStop()); err != nil {
		log.Warn().Err(err).Msg("failed to send stop command")
	}
	d.state = StateIdle
}

// run is the timed send loop. Odd cycles hold at max for
// (1-decline_ratio)/freq seconds, even cycles hold at min for
// decline_ratio/freq seconds, always starting from the max half-cycle.
// Cancellation is cooperative: checked at loop top and across each sleep,
// so cancellation latency is bounded by the current half-cycle.
func (d *Driver) run(params waveform.Params, cancel <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if params.Freq == 0 {
		return
	}

	for cycle := 1; ; cycle++ {
		select {
		case <-cancel:
			return
		default:
		}

		var position, sustain float64
		if cycle%2 == 1 {
			position = params.Max
			sustain = (1 - params.DeclineRatio) / params.Freq
		} else {
			position = params.Min
			sustain = params.DeclineRatio / params.Freq
		}

		// The command's duration field and the sleep must agree exactly:
		// the device holds for what the wire said, the loop for holdMs.
		holdMs := int(math.Round(sustain * 1000))
		if err := d.link.Send(EncodeTimedPosition(position, holdMs)); err != nil {
			log.Error().Err(err).Msg("send failed, ending oscillation session")
			return
		}

		select {
		case <-cancel:
			return
		case <-d.clock.After(time.Duration(holdMs) * time.Millisecond):
		}
	}
}
