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

// Package dsf presents one SACD track as a byte-addressable synthetic
// DSF file (spec §4.C): a 92-byte header followed by a block-interleaved,
// bit-reversed audio region and a trailing ID3v2 metadata region.
package dsf

import (
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wichers/dsd-nexus/internal/decoderpool"
	"github.com/wichers/dsd-nexus/internal/sacderr"
	"github.com/wichers/dsd-nexus/internal/sacdmodel"
	"github.com/wichers/dsd-nexus/internal/sacdsource"
)

// frameCacheSize bounds the sliding window of decoded frames a
// Materialiser keeps around, per spec §4.C ("never buffers more than a
// bounded number of frames... may keep a small sliding cache").
const frameCacheSize = 32

// MetadataSource resolves the current ID3 bytes for a track, letting the
// materialiser stay ignorant of whether those bytes came from an
// overlay edit or the disc's embedded tag (spec §4.E owns that
// decision).
type MetadataSource interface {
	Get(area sacdmodel.Area, track int) []byte
}

// Materialiser synthesises one track's DSF byte space on demand.
type Materialiser struct {
	src    sacdsource.FrameSource
	decode *decoderpool.Coordinator // nil when the area is raw DSD
	meta   MetadataSource

	area     sacdmodel.Area
	areaInfo *sacdmodel.AreaInfo
	track    sacdmodel.Track

	info       FileInfo
	header     []byte
	metaBytes  []byte
	frameCache *lru.Cache[int, []byte]
}

// New builds a materialiser for one track. decode may be nil if
// areaInfo.Format is sacdmodel.FrameFormatDSD (no decode needed).
func New(src sacdsource.FrameSource, decode *decoderpool.Coordinator, meta MetadataSource, area sacdmodel.Area, areaInfo *sacdmodel.AreaInfo, track sacdmodel.Track) (*Materialiser, error) {
	if areaInfo.Format == sacdmodel.FrameFormatDST && decode == nil {
		return nil, fmt.Errorf("%w: DST area requires a decoder coordinator", sacderr.ErrInvalidArgument)
	}

	cache, err := lru.New[int, []byte](frameCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create frame cache: %w", err)
	}

	m := &Materialiser{
		src:        src,
		decode:     decode,
		meta:       meta,
		area:       area,
		areaInfo:   areaInfo,
		track:      track,
		frameCache: cache,
	}
	m.refresh()
	return m, nil
}

// refresh recomputes the track's FileInfo and header from the current
// metadata bytes. It is called once at construction; within one open
// handle's lifetime the layout is fixed (spec §4.C: a new buffer is
// produced per read, but total size does not move mid-handle).
func (m *Materialiser) refresh() {
	m.metaBytes = m.meta.Get(m.area, m.track.Number)
	samples := m.track.SampleCount()
	audioSize := AudioSize(samples, m.areaInfo.Channels)
	metaSize := uint64(len(m.metaBytes))

	m.info = FileInfo{
		TotalSize:      HeaderSize + audioSize + metaSize,
		HeaderSize:     HeaderSize,
		AudioSize:      audioSize,
		MetadataOffset: HeaderSize + audioSize,
		MetadataSize:   metaSize,
		Channels:       m.areaInfo.Channels,
		SampleRate:     m.areaInfo.SampleRate,
		Samples:        samples,
		BlockSize:      BlockSize,
	}
	m.header = buildHeader(m.info)
}

// Info returns the track's synthetic file layout.
func (m *Materialiser) Info() FileInfo {
	return m.info
}

// Read fills dst starting at cursor and returns the number of bytes
// written. Short reads are permitted at region boundaries; reading at or
// past end of file returns (0, nil).
func (m *Materialiser) Read(cursor uint64, dst []byte) (int, error) {
	if len(dst) == 0 || cursor >= m.info.TotalSize {
		return 0, nil
	}

	switch {
	case cursor < m.info.HeaderSize:
		n := copy(dst, m.header[cursor:])
		return n, nil
	case cursor < m.info.MetadataOffset:
		return m.readAudio(cursor-m.info.HeaderSize, dst)
	default:
		n := copy(dst, m.metaBytes[cursor-m.info.MetadataOffset:])
		return n, nil
	}
}

// Seek computes a new cursor position. It never clamps: seeking past
// end of file is legal and subsequent reads simply return zero bytes.
func (m *Materialiser) Seek(whence int, offset int64) (uint64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		return 0, fmt.Errorf("%w: materialiser seek requires an absolute cursor from the caller for SeekCurrent", sacderr.ErrInvalidArgument)
	case io.SeekEnd:
		//nolint:gosec // file sizes here are well within int64 range
		base = int64(m.info.TotalSize)
	default:
		return 0, fmt.Errorf("%w: unknown whence %d", sacderr.ErrInvalidArgument, whence)
	}

	result := base + offset
	if result < 0 {
		return 0, fmt.Errorf("%w: negative seek result", sacderr.ErrInvalidArgument)
	}
	//nolint:gosec // result is non-negative, checked above
	return uint64(result), nil
}

// readAudio serves bytes from the audio region given a cursor relative
// to the start of that region. It serves at most to the end of the
// current (block, channel) segment in one call, matching the
// short-read-at-boundary allowance in spec §4.C.
func (m *Materialiser) readAudio(cursorInAudio uint64, dst []byte) (int, error) {
	channels := uint64(m.areaInfo.Channels)
	blockBytes := uint64(BlockSize) * channels

	blockIndex := cursorInAudio / blockBytes
	within := cursorInAudio % blockBytes
	channelIndex := int(within / BlockSize)
	intra := within % BlockSize

	segRemaining := uint64(BlockSize) - intra
	remaining := m.info.AudioSize - cursorInAudio

	n := uint64(len(dst))
	if segRemaining < n {
		n = segRemaining
	}
	if remaining < n {
		n = remaining
	}

	channelAbsOffset := blockIndex*BlockSize + intra
	if err := m.fillChannelBytes(channelIndex, channelAbsOffset, dst[:n]); err != nil {
		return 0, err
	}
	//nolint:gosec // n is bounded by len(dst), an int-sized slice
	return int(n), nil
}

// fillChannelBytes writes n = len(out) bit-reversed audio bytes for one
// channel, starting at that channel's absolute per-channel byte offset,
// grouping the run by source frame so each frame is fetched once.
func (m *Materialiser) fillChannelBytes(channel int, channelAbsOffset uint64, out []byte) error {
	i := 0
	for i < len(out) {
		o := channelAbsOffset + uint64(i)
		frameIndex := int(o / sacdmodel.FrameBytesPerChannel)
		byteInFrame := int(o % sacdmodel.FrameBytesPerChannel)
		runLen := len(out) - i
		if maxRun := sacdmodel.FrameBytesPerChannel - byteInFrame; runLen > maxRun {
			runLen = maxRun
		}

		frameBytes, err := m.channelFrameBytes(channel, frameIndex)
		if err != nil {
			return err
		}

		for j := range runLen {
			srcIdx := byteInFrame + j
			if frameBytes != nil && srcIdx < len(frameBytes) {
				out[i+j] = reverseByte(frameBytes[srcIdx])
			} else {
				out[i+j] = 0
			}
		}
		i += runLen
	}
	return nil
}

// channelFrameBytes returns the MSB-first source bytes for one channel
// of one frame (post-DST-decode if necessary), or nil if frameIndex is
// beyond the track's own frame count (silence/padding territory).
// frameIndex is relative to the track's own first frame.
func (m *Materialiser) channelFrameBytes(channel, frameIndex int) ([]byte, error) {
	if frameIndex >= m.track.FrameCount {
		return nil, nil
	}

	full, err := m.fetchFrame(frameIndex)
	if err != nil {
		return nil, err
	}
	lo := channel * sacdmodel.FrameBytesPerChannel
	hi := lo + sacdmodel.FrameBytesPerChannel
	if hi > len(full) {
		return nil, nil
	}
	return full[lo:hi], nil
}

// fetchFrame returns the raw, MSB-first, all-channels bytes for one
// frame, decoding through the coordinator first if the area is
// DST-encoded, and caching the result. frameIndex is relative to the
// track's own first frame; it is translated to the area's absolute
// frame numbering via track.StartFrame before the source is queried.
func (m *Materialiser) fetchFrame(frameIndex int) ([]byte, error) {
	if cached, ok := m.frameCache.Get(frameIndex); ok {
		return cached, nil
	}

	absFrame := m.track.StartFrame + frameIndex
	frames, err := m.src.Frames(m.area, absFrame, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: read frame %d: %v", sacderr.ErrIO, absFrame, err)
	}
	if len(frames) != 1 {
		return nil, fmt.Errorf("%w: expected 1 frame, got %d", sacderr.ErrIO, len(frames))
	}
	raw := frames[0]

	var decoded []byte
	switch m.areaInfo.Format {
	case sacdmodel.FrameFormatDSD:
		decoded = raw
	case sacdmodel.FrameFormatDST:
		decoded = make([]byte, sacdmodel.FrameBytesPerChannel*m.areaInfo.Channels)
		if err := m.decode.DecodeBatch([]decoderpool.Job{{Input: raw, Output: decoded}}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown frame format", sacderr.ErrDecode)
	}

	m.frameCache.Add(frameIndex, decoded)
	return decoded, nil
}
