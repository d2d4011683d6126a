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

// Compose concatenates per-page keypoint segments into one continuous
// timeline. The first segment is copied verbatim; each subsequent segment is
// shifted by the last emitted time and loses its own first point, which the
// previous segment's end already represents. Callers feed each segment's end
// value back into Generate as the next start position, so the composed curve
// stays continuous across page boundaries.
//
// Segments with fewer than two points contribute nothing.
func Compose(segments [][]Keypoint) []Keypoint {
	merged := []Keypoint{}
	for i, seg := range segments {
		if i == 0 {
			merged = append(merged, seg...)
			continue
		}
		if len(seg) <= 1 {
			continue
		}
		offset := 0
		if len(merged) > 0 {
			offset = merged[len(merged)-1].TimeMs
		}
		for _, kp := range seg[1:] {
			merged = append(merged, Keypoint{TimeMs: kp.TimeMs + offset, Value: kp.Value})
		}
	}
	return merged
}
