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

import "encoding/binary"

// FileInfo summarises a materialised track's synthetic layout, per the
// public contract in spec §4.C.
type FileInfo struct {
	TotalSize      uint64
	HeaderSize     uint64
	AudioSize      uint64
	MetadataOffset uint64
	MetadataSize   uint64
	Channels       int
	SampleRate     int
	Samples        uint64
	BlockSize      int
}

// buildHeader synthesises the 92-byte DSD+fmt+data header for a track.
// Two calls with the same inputs always produce byte-identical output
// (testable property 1: round-trip header).
func buildHeader(info FileInfo) []byte {
	buf := make([]byte, HeaderSize)

	// DSD chunk: magic, chunk size, total file size, metadata offset.
	copy(buf[0:4], dsdChunkMagic)
	binary.LittleEndian.PutUint64(buf[4:12], dsdChunkSize)
	binary.LittleEndian.PutUint64(buf[12:20], info.TotalSize)
	var metaOffset uint64
	if info.MetadataSize > 0 {
		metaOffset = info.MetadataOffset
	}
	binary.LittleEndian.PutUint64(buf[20:28], metaOffset)

	// fmt chunk.
	fmtBuf := buf[dsdChunkSize : dsdChunkSize+fmtChunkSize]
	copy(fmtBuf[0:4], fmtChunkMagic)
	binary.LittleEndian.PutUint64(fmtBuf[4:12], fmtChunkSize)
	binary.LittleEndian.PutUint32(fmtBuf[12:16], formatVersion)
	binary.LittleEndian.PutUint32(fmtBuf[16:20], formatIDDSDRaw)
	//nolint:gosec // channel counts are tiny, always fit in uint32
	binary.LittleEndian.PutUint32(fmtBuf[20:24], channelTypeForCount(info.Channels))
	binary.LittleEndian.PutUint32(fmtBuf[24:28], uint32(info.Channels))
	binary.LittleEndian.PutUint32(fmtBuf[28:32], uint32(info.SampleRate))
	binary.LittleEndian.PutUint32(fmtBuf[32:36], bitsPerSample)
	binary.LittleEndian.PutUint64(fmtBuf[36:44], info.Samples)
	binary.LittleEndian.PutUint32(fmtBuf[44:48], BlockSize)
	binary.LittleEndian.PutUint32(fmtBuf[48:52], 0) // reserved

	// data chunk header.
	dataBuf := buf[dsdChunkSize+fmtChunkSize:]
	copy(dataBuf[0:4], dataChunkMagic)
	binary.LittleEndian.PutUint64(dataBuf[4:12], info.AudioSize+dataChunkHeaderSize)

	return buf
}
