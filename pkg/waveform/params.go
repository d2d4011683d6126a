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

// Package waveform implements the sawtooth oscillation model shared by the
// device driver and the curve preview: parameter sets, closed-form keypoint
// generation and segment composition.
package waveform

// Params describes one sawtooth oscillation. The actuator sweeps between Min
// and Max at Freq cycles per second, spending DeclineRatio of each period in
// the falling phase and the remainder rising. Values are replaced wholesale
// when edited, never mutated field by field.
type Params struct {
	Max          float64 `json:"max"`
	Min          float64 `json:"min"`
	Freq         float64 `json:"freq"`
	DeclineRatio float64 `json:"decline_ratio"`
}

// NewParams builds a Params value. Reversed bounds are swapped so Min <= Max
// always holds downstream.
func NewParams(maxVal, minVal, freq, declineRatio float64) Params {
	if minVal > maxVal {
		minVal, maxVal = maxVal, minVal
	}
	return Params{
		Max:          maxVal,
		Min:          minVal,
		Freq:         freq,
		DeclineRatio: declineRatio,
	}
}

// Normalized returns a copy with the bounds swapped into order. Documents
// loaded from disk may carry reversed values.
func (p Params) Normalized() Params {
	if p.Min > p.Max {
		p.Min, p.Max = p.Max, p.Min
	}
	return p
}

// Period returns the waveform period in milliseconds. Only meaningful for
// Freq > 0.
func (p Params) Period() float64 {
	return 1000.0 / p.Freq
}
