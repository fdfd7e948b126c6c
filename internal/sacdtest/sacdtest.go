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

// Package sacdtest provides synthetic, deterministic fakes for the
// external collaborators this module treats as opaque (the frame
// source and the DST decoder, spec §1/§6), so the rest of the tree can
// be tested without a real SACD parser. Only _test.go files in other
// packages should import this one.
package sacdtest

import (
	"fmt"
	"sync"

	"github.com/wichers/dsd-nexus/internal/sacderr"
	"github.com/wichers/dsd-nexus/internal/sacdmodel"
	"github.com/wichers/dsd-nexus/internal/sacdsource"
)

// FramePattern returns the deterministic MSB-first byte this package's
// fixtures place at frame f, channel c, intra-frame offset k. Tests
// that want to assert on materialised audio bytes recompute the
// expected byte with this function rather than re-deriving the pattern
// by hand.
func FramePattern(f, c, k int) byte {
	//nolint:gosec // deliberately wraps into a byte-sized deterministic pattern
	return byte(f*7 + c*13 + k*3)
}

// BuildFrames synthesises frameCount frames of raw MSB-first audio for
// an area with the given channel count, using FramePattern.
func BuildFrames(channels, frameCount int) [][]byte {
	frames := make([][]byte, frameCount)
	for f := range frameCount {
		buf := make([]byte, sacdmodel.FrameBytesPerChannel*channels)
		for c := range channels {
			base := c * sacdmodel.FrameBytesPerChannel
			for k := range sacdmodel.FrameBytesPerChannel {
				buf[base+k] = FramePattern(f, c, k)
			}
		}
		frames[f] = buf
	}
	return frames
}

// TrackSpec describes one track to synthesise into a fixture album.
type TrackSpec struct {
	Number     int
	Title      string
	FrameCount int
	ID3        []byte
}

// AreaSpec describes one area to synthesise into a fixture album.
type AreaSpec struct {
	Area     sacdmodel.Area
	Channels int
	Format   sacdmodel.FrameFormat
	Tracks   []TrackSpec
}

// FrameSource is a deterministic, in-memory sacdsource.FrameSource
// backed by BuildFrames-style fixtures.
type FrameSource struct {
	album  *sacdmodel.AlbumInfo
	frames map[sacdmodel.Area][][]byte
	closed bool
}

// NewFrameSource builds a fixture album's table of contents and backing
// frame data from areaSpecs.
func NewFrameSource(title string, areaSpecs []AreaSpec) *FrameSource {
	album := &sacdmodel.AlbumInfo{Title: title, Areas: make(map[sacdmodel.Area]*sacdmodel.AreaInfo)}
	frames := make(map[sacdmodel.Area][][]byte)

	for _, spec := range areaSpecs {
		start := 0
		tracks := make([]sacdmodel.Track, len(spec.Tracks))
		for i, ts := range spec.Tracks {
			tracks[i] = sacdmodel.Track{
				Number:     ts.Number,
				StartFrame: start,
				FrameCount: ts.FrameCount,
				Title:      ts.Title,
				ID3:        ts.ID3,
			}
			start += ts.FrameCount
		}
		album.Areas[spec.Area] = &sacdmodel.AreaInfo{
			Channels:   spec.Channels,
			SampleRate: sacdmodel.StandardSampleRate,
			Format:     spec.Format,
			FrameCount: start,
			Tracks:     tracks,
		}
		frames[spec.Area] = BuildFrames(spec.Channels, start)
	}

	return &FrameSource{album: album, frames: frames}
}

// TOC returns the fixture's table of contents.
func (s *FrameSource) TOC() (*sacdmodel.AlbumInfo, error) {
	return s.album, nil
}

// Frames returns count consecutive frames for area starting at
// firstFrame.
func (s *FrameSource) Frames(area sacdmodel.Area, firstFrame, count int) ([][]byte, error) {
	all, ok := s.frames[area]
	if !ok {
		return nil, fmt.Errorf("%w: no such area %s", sacderr.ErrInvalidArgument, area)
	}
	if firstFrame < 0 || firstFrame+count > len(all) {
		return nil, fmt.Errorf("%w: frame range [%d,%d) out of bounds (have %d)", sacderr.ErrInvalidArgument, firstFrame, firstFrame+count, len(all))
	}
	return all[firstFrame : firstFrame+count], nil
}

// Close marks the fixture closed. Calling it twice is an error, the
// same way a real file descriptor double-close would be, so tests
// catch handle lifecycle bugs.
func (s *FrameSource) Close() error {
	if s.closed {
		return fmt.Errorf("fixture frame source closed twice")
	}
	s.closed = true
	return nil
}

// IdentityDecoder is a DST decoder fake that treats its input as
// already-decoded DSD bytes and copies it straight to the output,
// letting tests exercise the decoder-pool coordinator's scheduling
// without needing a real DST codec.
type IdentityDecoder struct{}

// DecodeFrame copies input to output.
func (IdentityDecoder) DecodeFrame(input, output []byte) (int, error) {
	n := copy(output, input)
	return n, nil
}

// IdentityDecoderFactory is a sacdsource.DecoderFactory producing
// IdentityDecoder instances, ignoring channel count.
func IdentityDecoderFactory(int) (sacdsource.DSTDecoder, error) {
	return IdentityDecoder{}, nil
}

// FailingDecoder always fails, for exercising decoderpool's error path.
type FailingDecoder struct{}

// DecodeFrame always returns an error.
func (FailingDecoder) DecodeFrame(_, _ []byte) (int, error) {
	return 0, fmt.Errorf("fixture decode failure")
}

// Opener is a sacdsource.Opener fake backed by registered factories,
// one per host path, so tests can simulate re-opening a mount after
// eviction (each Open call gets a fresh FrameSource instance).
type Opener struct {
	mu        sync.Mutex
	factories map[string]func() (sacdsource.FrameSource, error)
}

// NewOpener creates an empty fake opener.
func NewOpener() *Opener {
	return &Opener{factories: make(map[string]func() (sacdsource.FrameSource, error))}
}

// Register associates a host path with a factory producing a fresh
// FrameSource each time it is opened.
func (o *Opener) Register(path string, factory func() (sacdsource.FrameSource, error)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.factories[path] = factory
}

// Open implements sacdsource.Opener.
func (o *Opener) Open(path string) (sacdsource.FrameSource, error) {
	o.mu.Lock()
	factory, ok := o.factories[path]
	o.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", sacderr.ErrNotSacd, path)
	}
	return factory()
}

// Probe implements sacdsource.Opener: any registered path is a "valid"
// fixture SACD image.
func (o *Opener) Probe(path string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.factories[path]
	return ok
}
