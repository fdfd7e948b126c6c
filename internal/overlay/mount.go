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

package overlay

import (
	"sync"
	"time"

	"github.com/wichers/dsd-nexus/internal/decoderpool"
	"github.com/wichers/dsd-nexus/internal/isovfs"
	"github.com/wichers/dsd-nexus/internal/pathutil"
	"github.com/wichers/dsd-nexus/internal/sacdmodel"
	"github.com/wichers/dsd-nexus/internal/sacdsource"
	"github.com/wichers/dsd-nexus/internal/tagstore"
)

// mount is one registered ISO: its identity in the virtual tree, plus
// its lazily-instantiated VFS state (spec §3's "ISO mount" entity).
type mount struct {
	hostPath       string
	displayName    string
	parentVpath    string
	collisionIndex int
	// archiveCleanup removes a temp file extracted from an archive
	// member, set only for archive-backed mounts.
	archiveCleanup func() error

	// mu is the per-mount lock: guards vfs, src, decoders, refCount, and
	// lastAccess. Must be acquired after the table lock, never before
	// (spec §5's lock-ordering invariant).
	mu         sync.Mutex
	vfs        *isovfs.VFS
	src        sacdsource.FrameSource
	tags       *tagstore.Store
	decoders   map[sacdmodel.Area]*decoderpool.Coordinator
	refCount   int
	lastAccess time.Time
}

func (m *mount) vpath() string {
	return pathutil.Join(m.parentVpath, m.displayName)
}

func (m *mount) touch() {
	m.mu.Lock()
	m.lastAccess = time.Now()
	m.mu.Unlock()
}

func (m *mount) acquire() {
	m.mu.Lock()
	m.refCount++
	m.lastAccess = time.Now()
	m.mu.Unlock()
}

func (m *mount) release() {
	m.mu.Lock()
	m.refCount--
	m.lastAccess = time.Now()
	m.mu.Unlock()
}

// idleEvictable reports whether m has no outstanding handles and has
// been untouched for at least timeout.
func (m *mount) idleEvictable(timeout time.Duration, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vfs != nil && m.refCount == 0 && now.Sub(m.lastAccess) >= timeout
}
