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

// Package tagstore implements the persistent tag overlay (spec §4.E): an
// in-memory, write-through cache of user-edited ID3 tags, keyed by
// (area, track), that survives an SACD image's read-only nature via a
// sidecar XML file saved next to the ISO.
package tagstore

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"github.com/wichers/dsd-nexus/internal/sacdmodel"
)

type key struct {
	area  sacdmodel.Area
	track int
}

type entry struct {
	bytes []byte
	dirty bool
}

// Store holds the disc-embedded ID3 tags (read-only, loaded once at
// mount) and the overlay edits on top of them (dirty-tracked,
// sidecar-persisted).
type Store struct {
	mu          sync.Mutex
	fs          afero.Fs
	sidecarPath string

	embedded map[key][]byte
	overlay  map[key]*entry
	// forceDirty covers edits that don't leave a dirty overlay entry
	// behind (Clear removes the entry outright but the sidecar still
	// needs rewriting to drop it).
	forceDirty bool
}

// New creates a store whose sidecar lives at sidecarPath on fs (the
// same host filesystem abstraction the overlay context uses elsewhere,
// so tests can substitute an in-memory filesystem). It does not read
// the sidecar; call Load for that.
func New(fs afero.Fs, sidecarPath string) *Store {
	return &Store{
		fs:          fs,
		sidecarPath: sidecarPath,
		embedded:    make(map[key][]byte),
		overlay:     make(map[key]*entry),
	}
}

// SetEmbedded registers a track's disc-embedded ID3 bytes. Called once
// per track while building the track/area index at mount time; it never
// marks the store dirty since it isn't a user edit.
func (s *Store) SetEmbedded(area sacdmodel.Area, track int, tagBytes []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embedded[key{area, track}] = tagBytes
}

// Get returns the overlay bytes for (area, track) if an edit exists,
// else the disc-embedded bytes if any, else nil.
func (s *Store) Get(area sacdmodel.Area, track int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{area, track}
	if e, ok := s.overlay[k]; ok {
		return e.bytes
	}
	return s.embedded[k]
}

// Set replaces or inserts the overlay entry for (area, track) and marks
// it dirty.
func (s *Store) Set(area sacdmodel.Area, track int, tagBytes []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay[key{area, track}] = &entry{bytes: tagBytes, dirty: true}
}

// Clear removes the overlay entry for (area, track), restoring
// disc-embedded semantics, and marks the store dirty (the sidecar must
// be rewritten to drop the entry even though nothing is "set").
func (s *Store) Clear(area sacdmodel.Area, track int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{area, track}
	if _, ok := s.overlay[k]; !ok {
		return
	}
	delete(s.overlay, k)
	s.forceDirty = true
}

// UnsavedChanges reports whether any overlay entry (or a prior Clear)
// has edits not yet written to the sidecar.
func (s *Store) UnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forceDirty {
		return true
	}
	for _, e := range s.overlay {
		if e.dirty {
			return true
		}
	}
	return false
}

// Load reads the sidecar file if it exists and populates the overlay.
// A missing sidecar is not an error. A malformed sidecar is treated as
// an empty overlay (the overlay is advisory, not authoritative) and the
// caller is expected to log it once.
func (s *Store) Load() error {
	data, err := afero.ReadFile(s.fs, s.sidecarPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read sidecar %s: %w", s.sidecarPath, err)
	}

	var doc sidecarDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse sidecar %s: %w", s.sidecarPath, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range doc.Tags {
		area, err := parseAreaAttr(t.Area)
		if err != nil {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(t.Data)
		if err != nil {
			continue
		}
		s.overlay[key{area, t.Track}] = &entry{bytes: raw, dirty: false}
	}
	return nil
}

// Save serialises the overlay and atomically writes it to the sidecar
// path (write-to-temp, rename), then clears all dirty flags. Per spec
// §5, the store's lock is held only to snapshot the serialised bytes;
// the actual disk I/O runs unlocked. Save failures are reported but
// never revert in-memory state — the caller may retry.
func (s *Store) Save() error {
	data, keys := s.snapshot()

	tmp := s.sidecarPath + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar temp file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.sidecarPath); err != nil {
		return fmt.Errorf("rename sidecar into place: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if e, ok := s.overlay[k]; ok {
			e.dirty = false
		}
	}
	s.forceDirty = false
	return nil
}

// snapshot serialises the current overlay to sidecar XML bytes while
// holding the lock only briefly. Keys are sorted by (area, track)
// before encoding so two consecutive saves of the same overlay produce
// byte-identical sidecars rather than depending on Go's randomized map
// iteration order.
func (s *Store) snapshot() ([]byte, []key) {
	s.mu.Lock()
	keys := make([]key, 0, len(s.overlay))
	for k := range s.overlay {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].area != keys[j].area {
			return keys[i].area < keys[j].area
		}
		return keys[i].track < keys[j].track
	})

	doc := sidecarDoc{}
	for _, k := range keys {
		e := s.overlay[k]
		doc.Tags = append(doc.Tags, sidecarTag{
			Area:  areaAttr(k.area),
			Track: k.track,
			Data:  base64.StdEncoding.EncodeToString(e.bytes),
		})
	}
	s.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	_ = enc.Encode(doc)
	return buf.Bytes(), keys
}
