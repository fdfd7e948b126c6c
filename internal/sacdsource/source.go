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

// Package sacdsource declares the external capabilities the rest of this
// module is built against: the SACD sector/frame reader and the DST
// frame decoder. Both are opaque collaborators per spec section 1/6 —
// this package only names their interfaces so the overlay, the per-ISO
// VFS, and the DSF materialiser can be written and tested against a
// stable contract without embedding a real SACD parser or DST codec in
// this repository.
package sacdsource

import "github.com/wichers/dsd-nexus/internal/sacdmodel"

// FrameSource reads raw audio frames and table-of-contents information
// from one opened SACD image (or, via a container bridge, an archive
// member). It is safe for concurrent use by multiple goroutines; callers
// serialise their own handle-level operations per spec's concurrency
// model, but FrameSource itself does not assume single-threaded access.
type FrameSource interface {
	// TOC returns the album and per-area track layout, parsed once at
	// open time.
	TOC() (*sacdmodel.AlbumInfo, error)

	// Frames returns count consecutive frames starting at firstFrame for
	// the given area, one []byte per frame. For a DSD-formatted area each
	// frame is sacdmodel.FrameBytesPerChannel*channels raw bytes,
	// MSB-first. For a DST-formatted area each frame is the compressed
	// bytes for that frame, meant to be passed whole to a DSTDecoder.
	Frames(area sacdmodel.Area, firstFrame, count int) ([][]byte, error)

	// Close releases any resources (file descriptors, mmaps) backing the
	// source.
	Close() error
}

// Opener opens an SACD image given its host path. A production binary
// links in a real implementation (the low-level sector reader named in
// spec section 1); this module ships only the sacdtest fake used by its
// own test suites.
type Opener interface {
	Open(path string) (FrameSource, error)

	// Probe reports whether path looks like a valid SACD image without
	// fully parsing its table of contents, used by the overlay to decide
	// whether to hide a candidate file (spec §4.G: "is_iso_file(H) AND
	// the file is a valid SACD image").
	Probe(path string) bool
}

// DSTDecoder decodes one DST-compressed frame into raw DSD bytes. A
// single instance decodes frames for a fixed channel count and must not
// be used by more than one goroutine at a time; the decoder-pool
// coordinator enforces that externally via acquire/release.
type DSTDecoder interface {
	// DecodeFrame decodes input (one compressed frame) into output, which
	// must already be sized sacdmodel.FrameBytesPerChannel*channels.
	// Returns the number of bytes written, normally len(output).
	DecodeFrame(input, output []byte) (int, error)
}

// DecoderFactory creates DST decoder instances bound to a fixed channel
// count, mirroring the external create(channels, pool) capability named
// in spec §6.
type DecoderFactory func(channels int) (DSTDecoder, error)
