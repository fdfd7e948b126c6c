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

// Package id3tag extracts the title/artist text frames from an ID3v2.3
// or ID3v2.4 tag's raw bytes, as held by the tag overlay store, so the
// path utilities can build the number+artist+title filename form
// (spec §4.H) without the caller needing to know anything about the
// ID3 wire format.
package id3tag

import (
	"bytes"

	rawio "github.com/wichers/dsd-nexus/internal/binary"
)

// Info holds the handful of text frames this module's filenames care
// about. Any field left empty means the frame wasn't present or wasn't
// decodable.
type Info struct {
	Title  string
	Artist string
}

const headerSize = 10

// frameHeaderSize is the 4-byte frame ID plus 4-byte size plus 2-byte
// flags that precede every ID3v2.3/2.4 frame's body.
const frameHeaderSize = 10

// Parse reads the header and text frames of one ID3v2.3/2.4 tag from
// raw, walking it through the same offset-based io.ReaderAt helpers
// used elsewhere for fixed-layout binary structures rather than
// indexing the byte slice directly. A nil or malformed tag yields a
// zero Info rather than an error: missing metadata falls back to the
// track's disc-declared title, per the materialiser's own
// metadata-optional design (spec §4.C).
func Parse(raw []byte) Info {
	var info Info
	if len(raw) < headerSize {
		return info
	}
	r := bytes.NewReader(raw)

	magic, err := rawio.ReadBytesAt(r, 0, 3)
	if err != nil || string(magic) != "ID3" {
		return info
	}
	major, err := rawio.ReadUint8At(r, 3)
	if err != nil {
		return info
	}
	sizeBytes, err := rawio.ReadBytesAt(r, 6, 4)
	if err != nil {
		return info
	}
	size := synchsafeSize(sizeBytes)
	end := headerSize + size
	if end > len(raw) {
		end = len(raw)
	}

	frameSizeSynchsafe := major >= 4
	offset := int64(headerSize)

	for offset+frameHeaderSize <= int64(end) {
		idBytes, err := rawio.ReadBytesAt(r, offset, 4)
		if err != nil || idBytes[0] == 0 {
			break
		}
		id := string(idBytes)

		var frameSize int
		if frameSizeSynchsafe {
			szBytes, err := rawio.ReadBytesAt(r, offset+4, 4)
			if err != nil {
				break
			}
			frameSize = synchsafeSize(szBytes)
		} else {
			sz, err := rawio.ReadUint32BEAt(r, offset+4)
			if err != nil {
				break
			}
			frameSize = int(sz)
		}

		frameStart := offset + frameHeaderSize
		frameEnd := frameStart + int64(frameSize)
		if frameSize < 0 || frameEnd > int64(end) {
			break
		}

		if id == "TIT2" || id == "TPE1" {
			frameBody, err := rawio.ReadBytesAt(r, frameStart, frameSize)
			if err != nil {
				break
			}
			switch id {
			case "TIT2":
				info.Title = decodeTextFrame(frameBody)
			case "TPE1":
				info.Artist = decodeTextFrame(frameBody)
			}
		}

		offset = frameEnd
	}

	return info
}

// synchsafeSize decodes a 4-byte synchsafe integer (each byte's top bit
// unset, 7 significant bits), the encoding ID3v2 uses for its overall
// tag size and, from v2.4 onward, frame sizes too.
func synchsafeSize(b []byte) int {
	return int(b[0])<<21 | int(b[1])<<14 | int(b[2])<<7 | int(b[3])
}

// decodeTextFrame strips the leading text-encoding byte and any
// trailing NUL padding from an ID3v2 text-information frame body.
// Multi-byte encodings (UTF-16) are read byte-for-byte and filtered to
// their ASCII-range code units; this module only ever needs filenames,
// so values outside that range are dropped rather than transcoded.
func decodeTextFrame(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	text := body[1:]
	text = bytes.TrimRight(text, "\x00")

	cleaned := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= 0x20 && c <= 0x7e {
			cleaned = append(cleaned, c)
		}
	}
	return rawio.CleanString(cleaned)
}
