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

// reverseTable maps a MSB-first source byte to its LSB-first DSF
// representation (spec §3: "every bit stored is the LSB-first
// representation of the source DSD sample, the source frames are
// MSB-first"). Built once at init rather than hand-written, same idea
// as a CRC table.
var reverseTable = func() [256]byte {
	var t [256]byte
	for i := range 256 {
		var r byte
		b := byte(i)
		for range 8 {
			r <<= 1
			r |= b & 1
			b >>= 1
		}
		t[i] = r
	}
	return t
}()

func reverseByte(b byte) byte {
	return reverseTable[b]
}
