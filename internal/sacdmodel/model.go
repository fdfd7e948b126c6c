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

// Package sacdmodel holds the shared domain types that describe an SACD's
// track/area layout, independent of how the disc was opened.
package sacdmodel

import "fmt"

// Area identifies one of an SACD's two possible channel layouts.
type Area int

const (
	AreaStereo Area = iota
	AreaMultichannel
)

func (a Area) String() string {
	switch a {
	case AreaStereo:
		return "stereo"
	case AreaMultichannel:
		return "multichannel"
	default:
		return fmt.Sprintf("Area(%d)", int(a))
	}
}

// DisplayName returns the virtual directory name an area is presented
// under in the per-ISO VFS.
func (a Area) DisplayName() string {
	switch a {
	case AreaStereo:
		return "Stereo"
	case AreaMultichannel:
		return "Multi-channel"
	default:
		return a.String()
	}
}

// FrameFormat is the on-disc encoding of an area's audio frames.
type FrameFormat int

const (
	FrameFormatDSD FrameFormat = iota
	FrameFormatDST
)

func (f FrameFormat) String() string {
	switch f {
	case FrameFormatDSD:
		return "DSD"
	case FrameFormatDST:
		return "DST"
	default:
		return fmt.Sprintf("FrameFormat(%d)", int(f))
	}
}

// StandardSampleRate is the only sample rate standard SACD frames use:
// 64x the base CD rate of 44100Hz.
const StandardSampleRate = 64 * 44100

// FrameBytesPerChannel is the fixed size, per channel, of one SACD frame
// (1/75th of a second at the standard sample rate).
const FrameBytesPerChannel = 4704

// Track describes one playable track within an area.
type Track struct {
	// Number is one-based; tracks are listed in this order for directory
	// generation.
	Number int
	// StartFrame is the zero-based frame at which the track begins.
	StartFrame int
	// FrameCount is the number of frames the track spans.
	FrameCount int
	Title      string
	// ID3 holds the disc-embedded ID3v2 tag bytes, or nil if the track
	// carries none.
	ID3 []byte
}

// SampleCount returns the number of per-channel audio samples the track
// spans, derived from its frame range.
func (t Track) SampleCount() uint64 {
	return uint64(t.FrameCount) * FrameBytesPerChannel * 8
}

// AreaInfo describes one area (stereo or multichannel) of an SACD.
type AreaInfo struct {
	Channels   int
	SampleRate int
	Format     FrameFormat
	// FrameCount is the total number of frames available in this area,
	// used to validate that a track's StartFrame+FrameCount stays in range.
	FrameCount int
	Tracks     []Track
}

// TrackByNumber returns the track with the given one-based number, or false
// if no such track exists in the area.
func (a *AreaInfo) TrackByNumber(number int) (Track, bool) {
	for _, t := range a.Tracks {
		if t.Number == number {
			return t, true
		}
	}
	return Track{}, false
}

// AlbumInfo is the parsed table of contents of one SACD.
type AlbumInfo struct {
	Title string
	Areas map[Area]*AreaInfo
}

// HasArea reports whether the album carries audio in the given area.
func (a *AlbumInfo) HasArea(area Area) bool {
	info, ok := a.Areas[area]
	return ok && info != nil
}
