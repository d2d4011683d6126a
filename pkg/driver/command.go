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
	"fmt"
	"math"
)

// Device wire format: newline-terminated ASCII lines. Positions are mapped
// from the logical 0-100 range onto 0-9999 and zero-padded to four digits.
//
//	L0<pppp>I<dddd>  timed position, dddd = hold duration in ms
//	L0<pppp>         one-off position poke
//	DSTOP            stop

var stopCommand = []byte("DSTOP\n")

// EncodeStop returns the stop command.
func EncodeStop() []byte {
	return stopCommand
}

// EncodePosition encodes a one-off position poke with no duration field.
func EncodePosition(pos float64) []byte {
	return fmt.Appendf(nil, "L0%04d\n", MapPosition(pos))
}

// EncodeTimedPosition encodes a position command carrying the duration in
// milliseconds until the next expected command.
func EncodeTimedPosition(pos float64, durationMs int) []byte {
	return fmt.Appendf(nil, "L0%04dI%d\n", MapPosition(pos), durationMs)
}

// MapPosition maps a logical 0-100 position onto the device's 0-9999 range.
func MapPosition(v float64) int {
	return LinearMap(v, 0, 100, 0, 9999)
}

// LinearMap clamps v to [inLo, inHi], scales it proportionally into
// [outLo, outHi] and rounds to the nearest integer. The rounded result is
// clamped again to guard rounding overshoot at the boundary. A degenerate
// input domain (inLo == inHi) returns v unchanged.
func LinearMap(v, inLo, inHi, outLo, outHi float64) int {
	if inLo == inHi {
		return int(math.Round(v))
	}
	if v < inLo {
		v = inLo
	} else if v > inHi {
		v = inHi
	}
	scaled := math.Round((v-inLo)/(inHi-inLo)*(outHi-outLo) + outLo)
	if scaled < outLo {
		scaled = outLo
	} else if scaled > outHi {
		scaled = outHi
	}
	return int(scaled)
}
