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

// Wire-format constants fixed by the DSF specification (Sony Corp.,
// "DSF File Format Specification" v1.01), grounded on the chunk layout
// described there and mirrored in spec section 3/4.C.
const (
	dsdChunkMagic       = "DSD "
	dsdChunkSize        = 28
	fmtChunkMagic       = "fmt "
	fmtChunkSize        = 52
	dataChunkMagic      = "data"
	dataChunkHeaderSize = 12

	// HeaderSize is the total size of the three synthesised header
	// chunks preceding the audio region.
	HeaderSize = dsdChunkSize + fmtChunkSize + dataChunkHeaderSize

	formatVersion  = 1
	formatIDDSDRaw = 0
	bitsPerSample  = 1

	// BlockSize is the fixed per-channel block size DSF interleaves
	// audio data in.
	BlockSize = 4096
)

// channelTypeForCount maps a channel count to the DSF fmt chunk's
// ChannelType field, per spec §4.C: "1→mono, 2→stereo, 3→3ch, 4→quad,
// 5→5ch, 6→5.1, else→stereo".
func channelTypeForCount(channels int) uint32 {
	switch channels {
	case 1:
		return 1 // mono
	case 2:
		return 2 // stereo
	case 3:
		return 3 // 3 channels
	case 4:
		return 4 // quad
	case 5:
		return 6 // 5 channels (DSF reserves 5 for 4ch, which SACD never uses)
	case 6:
		return 7 // 5.1 channels
	default:
		return 2 // stereo fallback
	}
}

// bytesPerChannelPadded returns ceil(samples/8) rounded up to a multiple
// of BlockSize, i.e. the per-channel audio byte count spec §3 calls
// `bytes_per_channel`.
func bytesPerChannelPadded(samples uint64) uint64 {
	bytes := (samples + 7) / 8
	if rem := bytes % BlockSize; rem != 0 {
		bytes += BlockSize - rem
	}
	return bytes
}

// AudioSize returns the total audio-region size `A` for a track with the
// given per-channel sample count and channel count.
func AudioSize(samples uint64, channels int) uint64 {
	return bytesPerChannelPadded(samples) * uint64(channels)
}
