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

package isovfs

import (
	"fmt"
	"io"

	"github.com/wichers/dsd-nexus/internal/dsf"
	"github.com/wichers/dsd-nexus/internal/sacderr"
	"github.com/wichers/dsd-nexus/internal/sacdmodel"
)

// Handle is a virtual file handle over one track's synthetic DSF bytes.
// It is not safe for concurrent use by multiple goroutines (spec §5:
// "reads and seeks are totally ordered by the caller"); independent
// handles on the same track are.
type Handle struct {
	vfs         *VFS
	area        sacdmodel.Area
	trackNumber int
	mat         *dsf.Materialiser
	cursor      uint64

	writable   bool
	writeStart uint64
	writeBuf   []byte
	dirty      bool
	closed     bool
}

// Read fills dst starting at the handle's current cursor and advances
// it by the number of bytes returned.
func (h *Handle) Read(dst []byte) (int, error) {
	if h.closed {
		return 0, fmt.Errorf("%w: read on closed handle", sacderr.ErrInvalidArgument)
	}
	n, err := h.mat.Read(h.cursor, dst)
	if err != nil {
		return 0, err
	}
	h.cursor += uint64(n)
	return n, nil
}

// Seek repositions the handle's cursor and returns its new value.
func (h *Handle) Seek(whence int, offset int64) (uint64, error) {
	if h.closed {
		return 0, fmt.Errorf("%w: seek on closed handle", sacderr.ErrInvalidArgument)
	}
	if whence == io.SeekCurrent {
		//nolint:gosec // cursor values stay well within int64 range for any real track
		whence, offset = io.SeekStart, int64(h.cursor)+offset
	}
	pos, err := h.mat.Seek(whence, offset)
	if err != nil {
		return 0, err
	}
	h.cursor = pos
	return pos, nil
}

// Tell returns the handle's current cursor position.
func (h *Handle) Tell() uint64 {
	return h.cursor
}

// Write accepts bytes only inside the metadata region, per §3's virtual
// file handle invariant; writes elsewhere are rejected outright with no
// mutation (S7). Accepted bytes are buffered and only committed to the
// tag overlay store at Close (S8).
func (h *Handle) Write(src []byte, offset uint64) (int, error) {
	if h.closed {
		return 0, fmt.Errorf("%w: write on closed handle", sacderr.ErrInvalidArgument)
	}
	if !h.writable {
		return 0, fmt.Errorf("%w: metadata editing disabled for this mount", sacderr.ErrPermissionDenied)
	}
	if offset < h.writeStart {
		return 0, fmt.Errorf("%w: write outside metadata region", sacderr.ErrPermissionDenied)
	}

	rel := offset - h.writeStart
	end := rel + uint64(len(src))
	if uint64(len(h.writeBuf)) < end {
		grown := make([]byte, end)
		copy(grown, h.writeBuf)
		h.writeBuf = grown
	}
	copy(h.writeBuf[rel:], src)
	h.dirty = true
	return len(src), nil
}

// Close flushes any pending metadata write through the tag overlay
// store and releases the handle. It is idempotent (invariant 5): a
// second call on an already-closed handle is a no-op.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if h.dirty {
		h.vfs.tags.Set(h.area, h.trackNumber, h.writeBuf)
	}
	return nil
}
