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

// Package cfs implements the on-disk CFS document: a JSON mapping from page
// identifier to waveform parameters for one comic. Pages without an entry
// are "unset", which is distinct from an entry with zero amplitude.
package cfs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ComicSyncProject/comicsync-core/pkg/waveform"
	"github.com/maruel/natural"
	"github.com/rs/zerolog/log"
)

// Extension is the required suffix for CFS document paths passed to Save.
const Extension = ".cfs"

// ErrBadExtension is returned by Save when the target path does not end in
// the CFS extension.
var ErrBadExtension = errors.New("cfs path must end in " + Extension)

// Document maps page identifiers (typically image file names) to waveform
// parameters. Entries are replaced or removed whole; there is no
// field-level mutation.
type Document struct {
	entries map[string]waveform.Params
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{entries: make(map[string]waveform.Params)}
}

// Load reads a CFS document from path. A missing, unreadable or malformed
// file yields an empty document, never an error: a comic without parameters
// is a normal condition, not a failure.
func Load(path string) *Document {
	doc := NewDocument()

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the local comic library
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("failed to read cfs file, treating as empty")
		}
		return doc
	}

	var raw map[string]waveform.Params
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("malformed cfs file, treating as empty")
		return doc
	}

	for page, params := range raw {
		doc.entries[page] = params.Normalized()
	}
	return doc
}

// Get returns the parameters for a page and whether the page has an entry.
func (d *Document) Get(page string) (waveform.Params, bool) {
	params, ok := d.entries[page]
	return params, ok
}

// Set replaces the entry for a page.
func (d *Document) Set(page string, params waveform.Params) {
	d.entries[page] = params.Normalized()
}

// Delete removes the entry for a page, returning it to the unset state.
func (d *Document) Delete(page string) {
	delete(d.entries, page)
}

// Len returns the number of pages with an entry.
func (d *Document) Len() int {
	return len(d.entries)
}

// Pages returns all page identifiers with an entry in natural sort order,
// so "2.jpg" comes before "10.jpg" regardless of insertion order.
func (d *Document) Pages() []string {
	pages := make([]string, 0, len(d.entries))
	for page := range d.entries {
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool {
		return natural.Less(pages[i], pages[j])
	})
	return pages
}

// Save writes the document to path, which must carry the CFS extension.
// The file is serialized completely before being persisted, so a failed
// save never leaves a partial document behind.
func (d *Document) Save(path string) error {
	if path == "" || !strings.HasSuffix(path, Extension) {
		return ErrBadExtension
	}
	return d.write(path)
}

// Export writes the document to an arbitrary path, creating intermediate
// directories as needed.
func (d *Document) Export(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	return d.write(path)
}

func (d *Document) write(path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d.entries); err != nil {
		return fmt.Errorf("failed to encode cfs document: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write cfs file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace cfs file: %w", err)
	}
	return nil
}
