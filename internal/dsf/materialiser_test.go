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

package dsf

import (
	"testing"

	"github.com/wichers/dsd-nexus/internal/decoderpool"
	"github.com/wichers/dsd-nexus/internal/sacdmodel"
	"github.com/wichers/dsd-nexus/internal/sacdsource"
	"github.com/wichers/dsd-nexus/internal/sacdtest"
)

// staticMeta is a MetadataSource fake that returns fixed bytes keyed by
// area and track number.
type staticMeta map[sacdmodel.Area]map[int][]byte

func (m staticMeta) Get(area sacdmodel.Area, track int) []byte {
	return m[area][track]
}

func twoTrackFixture(t *testing.T) (*sacdtest.FrameSource, sacdmodel.AreaInfo) {
	t.Helper()
	// Three SACD frames per track gives 3*4704 bytes per channel, which
	// is not a multiple of BlockSize, so each track's last DSF block is
	// zero-padded; FrameCount covers both tracks' audio.
	const framesPerTrack = 3
	src := sacdtest.NewFrameSource("Fixture", []sacdtest.AreaSpec{
		{
			Area:     sacdmodel.AreaStereo,
			Channels: 2,
			Format:   sacdmodel.FrameFormatDSD,
			Tracks: []sacdtest.TrackSpec{
				{Number: 1, Title: "First", FrameCount: framesPerTrack},
				{Number: 2, Title: "Second", FrameCount: framesPerTrack},
			},
		},
	})
	album, err := src.TOC()
	if err != nil {
		t.Fatalf("TOC: %v", err)
	}
	return src, *album.Areas[sacdmodel.AreaStereo]
}

func newMaterialiserForTrack(t *testing.T, src sacdsource.FrameSource, areaInfo *sacdmodel.AreaInfo, trackNumber int, dec *decoderpool.Coordinator) *Materialiser {
	t.Helper()
	track, ok := areaInfo.TrackByNumber(trackNumber)
	if !ok {
		t.Fatalf("no such track %d", trackNumber)
	}
	m, err := New(src, dec, staticMeta{}, sacdmodel.AreaStereo, areaInfo, track)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestMaterialiserReadHeaderThenAudioThenMetadata(t *testing.T) {
	t.Parallel()

	src, areaInfo := twoTrackFixture(t)
	meta := staticMeta{sacdmodel.AreaStereo: {1: []byte("ID3TAGBYTES")}}
	track, _ := areaInfo.TrackByNumber(1)
	m, err := New(src, nil, meta, sacdmodel.AreaStereo, &areaInfo, track)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	info := m.Info()
	if info.MetadataSize != uint64(len("ID3TAGBYTES")) {
		t.Fatalf("MetadataSize = %d, want %d", info.MetadataSize, len("ID3TAGBYTES"))
	}

	header := make([]byte, info.HeaderSize)
	n, err := m.Read(0, header)
	if err != nil || uint64(n) != info.HeaderSize {
		t.Fatalf("Read(header) = %d, %v", n, err)
	}
	if string(header[0:4]) != dsdChunkMagic {
		t.Errorf("header magic = %q, want %q", header[0:4], dsdChunkMagic)
	}

	tail := make([]byte, info.MetadataSize)
	n, err = m.Read(info.MetadataOffset, tail)
	if err != nil || n != len(tail) {
		t.Fatalf("Read(metadata) = %d, %v", n, err)
	}
	if string(tail) != "ID3TAGBYTES" {
		t.Errorf("metadata bytes = %q, want %q", tail, "ID3TAGBYTES")
	}
}

func TestMaterialiserReadPastEndOfFileReturnsZero(t *testing.T) {
	t.Parallel()

	src, areaInfo := twoTrackFixture(t)
	m := newMaterialiserForTrack(t, src, &areaInfo, 1, nil)

	n, err := m.Read(m.Info().TotalSize+1000, make([]byte, 16))
	if err != nil || n != 0 {
		t.Errorf("Read(past EOF) = %d, %v, want 0, nil", n, err)
	}
}

func TestMaterialiserSeek(t *testing.T) {
	t.Parallel()

	src, areaInfo := twoTrackFixture(t)
	m := newMaterialiserForTrack(t, src, &areaInfo, 1, nil)

	got, err := m.Seek(0 /* io.SeekStart */, 10)
	if err != nil || got != 10 {
		t.Errorf("Seek(Start, 10) = %d, %v, want 10, nil", got, err)
	}

	total := m.Info().TotalSize
	got, err = m.Seek(2 /* io.SeekEnd */, 0)
	if err != nil || got != total {
		t.Errorf("Seek(End, 0) = %d, %v, want %d, nil", got, err, total)
	}

	if _, err := m.Seek(2, -int64(total)-1); err == nil {
		t.Error("Seek to a negative position should error")
	}

	if _, err := m.Seek(99, 0); err == nil {
		t.Error("Seek with an unknown whence should error")
	}
}

// TestMaterialiserSecondTrackReadsItsOwnFrames guards against a
// track-relative/area-absolute frame-index mixup: the second track's
// audio must be built from its own frames, not the area's first frames.
func TestMaterialiserSecondTrackReadsItsOwnFrames(t *testing.T) {
	t.Parallel()

	src, areaInfo := twoTrackFixture(t)
	track1 := newMaterialiserForTrack(t, src, &areaInfo, 1, nil)
	track2 := newMaterialiserForTrack(t, src, &areaInfo, 2, nil)

	buf1 := make([]byte, sacdmodel.FrameBytesPerChannel)
	if _, err := track1.readAudio(0, buf1); err != nil {
		t.Fatalf("track1.readAudio: %v", err)
	}
	buf2 := make([]byte, sacdmodel.FrameBytesPerChannel)
	if _, err := track2.readAudio(0, buf2); err != nil {
		t.Fatalf("track2.readAudio: %v", err)
	}

	if string(buf1) == string(buf2) {
		t.Error("track 2's first frame bytes equal track 1's first frame bytes, want distinct source frames")
	}

	// Track 2 starts at area frame 3 (3 frames per track); its first
	// channel-0 byte is the bit-reversed form of sacdtest.FramePattern(3, 0, 0).
	want := reverseByte(sacdtest.FramePattern(3, 0, 0))
	if buf2[0] != want {
		t.Errorf("track2 first byte = %#x, want %#x (reversed pattern byte)", buf2[0], want)
	}
}

func TestMaterialiserDecodesThroughCoordinatorForDSTArea(t *testing.T) {
	t.Parallel()

	src := sacdtest.NewFrameSource("Fixture", []sacdtest.AreaSpec{
		{
			Area:     sacdmodel.AreaStereo,
			Channels: 2,
			Format:   sacdmodel.FrameFormatDST,
			Tracks:   []sacdtest.TrackSpec{{Number: 1, Title: "Only", FrameCount: 2}},
		},
	})
	album, err := src.TOC()
	if err != nil {
		t.Fatalf("TOC: %v", err)
	}
	areaInfo := album.Areas[sacdmodel.AreaStereo]

	dec, err := decoderpool.New(1, 2, sacdtest.IdentityDecoderFactory, nil)
	if err != nil {
		t.Fatalf("decoderpool.New: %v", err)
	}
	defer dec.Close()

	track, _ := areaInfo.TrackByNumber(1)
	m, err := New(src, dec, staticMeta{}, sacdmodel.AreaStereo, areaInfo, track)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out := make([]byte, sacdmodel.FrameBytesPerChannel)
	if _, err := m.readAudio(0, out); err != nil {
		t.Fatalf("readAudio: %v", err)
	}
	want := reverseByte(sacdtest.FramePattern(0, 0, 0))
	if out[0] != want {
		t.Errorf("decoded first byte = %#x, want %#x (reversed pattern byte)", out[0], want)
	}
}

func TestNewRejectsDSTAreaWithoutDecoder(t *testing.T) {
	t.Parallel()

	src := sacdtest.NewFrameSource("Fixture", []sacdtest.AreaSpec{
		{
			Area:     sacdmodel.AreaStereo,
			Channels: 2,
			Format:   sacdmodel.FrameFormatDST,
			Tracks:   []sacdtest.TrackSpec{{Number: 1, Title: "Only", FrameCount: 1}},
		},
	})
	album, _ := src.TOC()
	areaInfo := album.Areas[sacdmodel.AreaStereo]
	track, _ := areaInfo.TrackByNumber(1)

	if _, err := New(src, nil, staticMeta{}, sacdmodel.AreaStereo, areaInfo, track); err == nil {
		t.Error("New with a DST area and nil decoder should error")
	}
}
