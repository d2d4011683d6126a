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

// Package session is the facade the presentation layer talks to: it owns
// the current CFS document, the serial link and the oscillation driver, and
// answers the preview-curve queries used for rendering.
package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ComicSyncProject/comicsync-core/pkg/cfs"
	"github.com/ComicSyncProject/comicsync-core/pkg/config"
	"github.com/ComicSyncProject/comicsync-core/pkg/driver"
	"github.com/ComicSyncProject/comicsync-core/pkg/link"
	"github.com/ComicSyncProject/comicsync-core/pkg/waveform"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrNoDocumentPath is returned by Save when the session has no backing
// document path.
var ErrNoDocumentPath = errors.New("no document path set")

// Session ties the document, link and driver together for one viewing
// session.
type Session struct {
	cfg     *config.Instance
	link    *link.Link
	driver  *driver.Driver
	doc     *cfs.Document
	docPath string
	page    string
	mu      sync.RWMutex
}

// New creates a session around an existing link. A nil clock uses the real
// one.
func New(cfg *config.Instance, lk *link.Link, clock clockwork.Clock) *Session {
	s := &Session{
		cfg:    cfg,
		link:   lk,
		driver: driver.New(lk, clock),
		doc:    cfs.NewDocument(),
	}
	s.driver.SetDocument(s.doc)
	return s
}

// Connect opens the serial link, falling back to the configured port and
// baud rate when the arguments are zero.
func (s *Session) Connect(port string, baudRate int) error {
	if port == "" {
		port = s.cfg.SerialPort()
	}
	if baudRate == 0 {
		baudRate = s.cfg.BaudRate()
	}
	return s.link.Connect(port, baudRate)
}

// Disconnect stops any active oscillation and closes the link.
func (s *Session) Disconnect() error {
	s.driver.Stop()
	return s.link.Disconnect()
}

// Connected reports the link status.
func (s *Session) Connected() bool {
	return s.link.Connected()
}

// LoadDocument loads the CFS document at path and makes it current. Missing
// or malformed files yield an empty document.
func (s *Session) LoadDocument(path string) {
	doc := cfs.Load(path)

	s.mu.Lock()
	s.doc = doc
	s.docPath = path
	s.mu.Unlock()

	s.driver.SetDocument(doc)
	log.Info().Str("path", path).Int("pages", doc.Len()).Msg("cfs document loaded")
}

// LoadDocumentFor loads the document named after a comic from the
// configured CFS directory.
func (s *Session) LoadDocumentFor(comic string) {
	s.LoadDocument(filepath.Join(s.cfg.CfsDir(), comic+cfs.Extension))
}

// Document returns the current document.
func (s *Session) Document() *cfs.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// SetDocument replaces the current document and its backing path.
func (s *Session) SetDocument(doc *cfs.Document, path string) {
	s.mu.Lock()
	s.doc = doc
	s.docPath = path
	s.mu.Unlock()
	s.driver.SetDocument(doc)
}

// SetEntry replaces the parameters for a page in the current document.
func (s *Session) SetEntry(page string, params waveform.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Set(page, params)
}

// DeleteEntry removes a page's parameters from the current document.
func (s *Session) DeleteEntry(page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Delete(page)
}

// Save persists the current document to its backing path.
func (s *Session) Save() error {
	s.mu.RLock()
	doc, path := s.doc, s.docPath
	s.mu.RUnlock()

	if path == "" {
		return ErrNoDocumentPath
	}
	if err := doc.Save(path); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// SaveTo persists the current document to a new backing path.
func (s *Session) SaveTo(path string) error {
	s.mu.Lock()
	doc := s.doc
	s.docPath = path
	s.mu.Unlock()

	if err := doc.Save(path); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// Export writes a document to an arbitrary path without changing the
// session's backing path.
func (*Session) Export(doc *cfs.Document, path string) error {
	if err := doc.Export(path); err != nil {
		return fmt.Errorf("failed to export document: %w", err)
	}
	return nil
}

// NewPage forwards a page-change event to the driver. An empty page id is
// the explicit no-active-page signal.
func (s *Session) NewPage(page string) {
	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
	s.driver.NewPage(page)
}

// CurrentPage returns the most recent page id seen.
func (s *Session) CurrentPage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// ActiveParams returns the parameters driving the actuator right now.
func (s *Session) ActiveParams() (waveform.Params, bool) {
	return s.driver.ActiveParams()
}

// Poke sends a one-off position command outside the timed loop.
func (s *Session) Poke(pos float64) error {
	return s.link.Send(driver.EncodePosition(pos))
}

// EmergencyStop halts the oscillation immediately and always sends the
// device stop command.
func (s *Session) EmergencyStop() {
	s.driver.EmergencyStop()
}

// PageCurve returns the preview keypoints for a single page starting from
// startPos, falling (the preview convention).
func (s *Session) PageCurve(page string, startPos float64) []waveform.Keypoint {
	s.mu.RLock()
	doc := s.doc
	s.mu.RUnlock()

	params, _ := doc.Get(page)
	return waveform.Generate(startPos, waveform.Falling, params, s.cfg.PreviewSegmentMs())
}

// PreviewCurve composes the whole document into one continuous preview
// timeline in natural page order. Each page contributes one fixed-length
// segment; the end value of each segment seeds the next one's start so the
// composed curve has no discontinuity at page boundaries. Entries that
// cannot oscillate (zero frequency, flat bounds) contribute a flat segment.
func (s *Session) PreviewCurve() []waveform.Keypoint {
	s.mu.RLock()
	doc := s.doc
	s.mu.RUnlock()

	segmentMs := s.cfg.PreviewSegmentMs()
	currentPos := s.cfg.PreviewStartPos()

	var segments [][]waveform.Keypoint
	for _, page := range doc.Pages() {
		params, _ := doc.Get(page)
		seg := waveform.Generate(currentPos, waveform.Falling, params, segmentMs)
		if len(seg) > 0 {
			currentPos = seg[len(seg)-1].Value
		}
		segments = append(segments, seg)
	}
	return waveform.Compose(segments)
}
