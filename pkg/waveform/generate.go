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

package waveform

import (
	"math"
	"sort"
)

// Keypoint is one (time, value) sample of a waveform. Consecutive keypoints
// linearly reconstruct the curve between them. Times are whole milliseconds
// and values are rounded to two decimal places; both are display/wire
// precision, internal computation stays in float64.
type Keypoint struct {
	TimeMs int
	Value  float64
}

// Trend disambiguates the starting phase when a start value maps to both a
// falling and a rising solution within one period.
type Trend int

const (
	Falling Trend = -1
	Rising  Trend = 1
)

type event struct {
	t float64
	y float64
}

// Generate returns the exact timed keypoints of the sawtooth described by p
// over [0, totalTimeMs], beginning at (0, startPos). The waveform falls
// linearly from Max to Min over DeclineRatio of each period and rises back
// over the remainder. The sequence is derived in closed form from integer
// cycle bounds, not by simulation, so event counts stay proportional to
// totalTimeMs/period.
//
// Freq <= 0 and Max == Min both degenerate to a flat segment at startPos.
func Generate(startPos float64, trend Trend, p Params, totalTimeMs int) []Keypoint {
	p = p.Normalized()
	total := float64(totalTimeMs)

	if p.Max == p.Min || p.Freq <= 0 {
		return []Keypoint{
			{TimeMs: 0, Value: round2(startPos)},
			{TimeMs: totalTimeMs, Value: round2(startPos)},
		}
	}

	period := p.Period()
	declineTime := period * p.DeclineRatio
	riseTime := period - declineTime

	valueAt := func(phase float64) float64 {
		if phase < 0 || phase >= period {
			phase = math.Mod(phase, period)
			if phase < 0 {
				phase += period
			}
		}
		switch {
		case declineTime == 0:
			// Instantaneous drop at phase 0, rise-only elsewhere.
			if phase == 0 {
				return p.Max
			}
			return p.Min + (p.Max-p.Min)*(phase/riseTime)
		case riseTime == 0:
			switch {
			case phase < declineTime:
				return p.Max - (p.Max-p.Min)*(phase/declineTime)
			case phase == declineTime:
				return p.Min
			default:
				return p.Max
			}
		default:
			if phase < declineTime {
				return p.Max - (p.Max-p.Min)*(phase/declineTime)
			}
			return p.Min + (p.Max-p.Min)*((phase-declineTime)/riseTime)
		}
	}

	// Initial phase offset: the phase at which the waveform equals startPos.
	// The inverse is two-valued for interior positions, so trend picks the
	// decline-phase or rise-phase solution, falling back to the boundary.
	initialPhase := func() float64 {
		switch {
		case declineTime == 0:
			if startPos == p.Max {
				return 0
			}
			return (startPos - p.Min) / (p.Max - p.Min) * riseTime
		case riseTime == 0:
			if startPos == p.Min {
				return declineTime
			}
			return (p.Max - startPos) / (p.Max - p.Min) * declineTime
		}
		td := (p.Max - startPos) / (p.Max - p.Min) * declineTime
		tr := declineTime + (startPos-p.Min)/(p.Max-p.Min)*riseTime
		if trend == Falling {
			if td >= 0 && td <= declineTime {
				return td
			}
			if startPos == p.Max {
				return 0
			}
			if startPos == p.Min {
				return declineTime
			}
			return td
		}
		if tr >= declineTime && tr <= period {
			return tr
		}
		if startPos == p.Min {
			return declineTime
		}
		if startPos == p.Max {
			return 0
		}
		return tr
	}

	tMod0 := initialPhase()

	var events []event

	// Every recurrence of the max boundary within (0, total].
	kMin := int(math.Ceil(tMod0 / period))
	kMax := int(math.Floor((total + tMod0) / period))
	for k := kMin; k <= kMax; k++ {
		t := float64(k)*period - tMod0
		if t > 0 && t <= total {
			events = append(events, event{t: t, y: p.Max})
		}
	}

	// Every recurrence of the min boundary within (0, total].
	kMin = int(math.Ceil((tMod0 - declineTime) / period))
	kMax = int(math.Floor((total + tMod0 - declineTime) / period))
	for k := kMin; k <= kMax; k++ {
		t := float64(k)*period + declineTime - tMod0
		if t > 0 && t <= total {
			events = append(events, event{t: t, y: p.Min})
		}
	}

	events = append(events, event{t: 0, y: startPos})
	endPhase := math.Mod(tMod0+total, period)
	events = append(events, event{t: total, y: valueAt(endPhase)})

	// Max and min boundaries can only coincide in time at the ratio extremes;
	// the value tie-break there is deliberately asymmetric and load-bearing
	// for rendering order.
	switch {
	case p.DeclineRatio == 0:
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].t != events[j].t {
				return events[i].t < events[j].t
			}
			return events[i].y > events[j].y
		})
	case p.DeclineRatio == 1:
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].t != events[j].t {
				return events[i].t < events[j].t
			}
			return events[i].y < events[j].y
		})
	default:
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].t < events[j].t
		})
	}

	// The synthetic start/end points frequently duplicate an enumerated
	// boundary event; collapse exact consecutive duplicates.
	unique := events[:0]
	for _, ev := range events {
		if len(unique) > 0 && unique[len(unique)-1].t == ev.t && unique[len(unique)-1].y == ev.y {
			continue
		}
		unique = append(unique, ev)
	}

	points := make([]Keypoint, 0, len(unique))
	for _, ev := range unique {
		points = append(points, Keypoint{
			TimeMs: int(math.Round(ev.t)),
			Value:  round2(ev.y),
		})
	}
	return points
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
