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

package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ComicSyncProject/comicsync-core/pkg/cfs"
	"github.com/ComicSyncProject/comicsync-core/pkg/waveform"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingLink struct {
	sendErr  error
	commands []string
	mu       sync.Mutex
}

func (l *recordingLink) Send(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commands = append(l.commands, string(data))
	if l.sendErr != nil {
		return l.sendErr
	}
	return nil
}

func (l *recordingLink) Commands() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.commands))
	copy(out, l.commands)
	return out
}

func (l *recordingLink) stops() int {
	n := 0
	for _, cmd := range l.Commands() {
		if cmd == "DSTOP\n" {
			n++
		}
	}
	return n
}

func blockUntil(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func testDocument() *cfs.Document {
	doc := cfs.NewDocument()
	doc.Set("p1", waveform.NewParams(100, 0, 1.0, 0.5))
	doc.Set("p3", waveform.NewParams(80, 20, 2.0, 0.5))
	doc.Set("pz", waveform.Params{Max: 100, Min: 0, Freq: 0, DeclineRatio: 0.5})
	return doc
}

func TestNewPageStartsSession(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	lk := &recordingLink{}
	d := New(lk, clock)
	d.SetDocument(testDocument())

	d.NewPage("p1")
	blockUntil(t, clock, 1)

	assert.Equal(t, StateRunning, d.State())
	params, ok := d.ActiveParams()
	require.True(t, ok)
	assert.InDelta(t, 100.0, params.Max, 0)

	cmds := lk.Commands()
	require.NotEmpty(t, cmds)
	assert.Equal(t, "L09999I500\n", cmds[0], "session starts with the max half-cycle")

	d.Stop()
}

func TestHalfCycleAlternation(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	lk := &recordingLink{}
	d := New(lk, clock)
	d.SetDocument(testDocument())

	d.NewPage("p1")
	blockUntil(t, clock, 1)
	clock.Advance(500 * time.Millisecond)
	blockUntil(t, clock, 1)
	clock.Advance(500 * time.Millisecond)
	blockUntil(t, clock, 1)
	d.Stop()

	cmds := lk.Commands()
	require.Len(t, cmds, 4)
	assert.Equal(t, "L09999I500\n", cmds[0])
	assert.Equal(t, "L00000I500\n", cmds[1])
	assert.Equal(t, "L09999I500\n", cmds[2])
	assert.Equal(t, "DSTOP\n", cmds[3])
}

func TestAsymmetricHalfCycles(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	lk := &recordingLink{}
	d := New(lk, clock)

	doc := cfs.NewDocument()
	doc.Set("p", waveform.NewParams(100, 0, 1.0, 0.35))
	d.SetDocument(doc)

	d.NewPage("p")
	blockUntil(t, clock, 1)
	clock.Advance(650 * time.Millisecond)
	blockUntil(t, clock, 1)
	d.Stop()

	cmds := lk.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, "L09999I650\n", cmds[0], "max hold lasts (1-decline_ratio)/freq")
	assert.Equal(t, "L00000I350\n", cmds[1], "min hold lasts decline_ratio/freq")
}

func TestUnsetPageStopsWithSingleStopCommand(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	lk := &recordingLink{}
	d := New(lk, clock)
	d.SetDocument(testDocument())

	d.NewPage("p1")
	blockUntil(t, clock, 1)
	d.NewPage("p2")

	assert.Equal(t, StateIdle, d.State())
	_, ok := d.ActiveParams()
	assert.False(t, ok)
	assert.Equal(t, 1, lk.stops())
	cmds := lk.Commands()
	assert.Equal(t, "DSTOP\n", cmds[len(cmds)-1])

	// Already idle: a second unset page sends nothing further.
	d.NewPage("p2")
	assert.Equal(t, 1, lk.stops())
}

func TestSetToSetTransitionSendsNoStop(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	lk := &recordingLink{}
	d := New(lk, clock)
	d.SetDocument(testDocument())

	d.NewPage("p1")
	blockUntil(t, clock, 1)
	d.NewPage("p3")
	blockUntil(t, clock, 2)

	assert.Equal(t, 0, lk.stops())
	params, ok := d.ActiveParams()
	require.True(t, ok)
	assert.InDelta(t, 80.0, params.Max, 0)

	// p3: freq 2, ratio 0.5 -> 250ms half-cycles at the new bounds.
	cmds := lk.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "L07999I250\n", cmds[1])

	d.Stop()
	assert.Equal(t, 1, lk.stops())
}

func TestEmptyPageIsStopSignal(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	lk := &recordingLink{}
	d := New(lk, clock)
	d.SetDocument(testDocument())

	d.NewPage("p1")
	blockUntil(t, clock, 1)
	d.NewPage("")

	assert.Equal(t, StateIdle, d.State())
	assert.Equal(t, 1, lk.stops())
}

func TestZeroFreqEntryEndsSession(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	lk := &recordingLink{}
	d := New(lk, clock)
	d.SetDocument(testDocument())

	d.NewPage("p1")
	blockUntil(t, clock, 1)
	d.NewPage("pz")

	assert.Equal(t, StateIdle, d.State())
	assert.Equal(t, 1, lk.stops())

	// From idle, a zero-freq page starts nothing and stops nothing.
	d.NewPage("pz")
	assert.Equal(t, StateIdle, d.State())
	assert.Equal(t, 1, lk.stops())
}

func TestSendFailureEndsSessionWithoutStopCommand(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	lk := &recordingLink{sendErr: errors.New("device unplugged")}
	d := New(lk, clock)
	d.SetDocument(testDocument())

	d.NewPage("p1")
	assert.Eventually(t, func() bool {
		return d.State() == StateIdle
	}, 5*time.Second, 5*time.Millisecond)

	// No stop command is attempted on a link already known to be failing.
	d.NewPage("")
	assert.Equal(t, 0, lk.stops())
	assert.Len(t, lk.Commands(), 1, "only the failed position command was attempted")
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	t.Parallel()

	lk := &recordingLink{}
	d := New(lk, clockwork.NewFakeClock())

	d.Stop()
	assert.Empty(t, lk.Commands())
	assert.Equal(t, StateIdle, d.State())
}

func TestEmergencyStopAlwaysSendsStop(t *testing.T) {
	t.Parallel()

	lk := &recordingLink{}
	d := New(lk, clockwork.NewFakeClock())

	d.EmergencyStop()
	assert.Equal(t, 1, lk.stops())
}

func TestNewPageWithoutDocumentStaysIdle(t *testing.T) {
	t.Parallel()

	lk := &recordingLink{}
	d := New(lk, clockwork.NewFakeClock())

	d.NewPage("p1")
	assert.Equal(t, StateIdle, d.State())
	assert.Empty(t, lk.Commands())
}

func TestSessionSnapshotIgnoresDocumentEdits(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	lk := &recordingLink{}
	d := New(lk, clock)
	doc := testDocument()
	d.SetDocument(doc)

	d.NewPage("p1")
	blockUntil(t, clock, 1)

	// Editing the entry mid-session must not affect the running loop.
	doc.Set("p1", waveform.NewParams(100, 50, 1.0, 0.5))
	clock.Advance(500 * time.Millisecond)
	blockUntil(t, clock, 1)
	d.Stop()

	cmds := lk.Commands()
	require.GreaterOrEqual(t, len(cmds), 2)
	assert.Equal(t, "L00000I500\n", cmds[1], "min half-cycle still uses the captured snapshot")
}
