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

// Package sacderr defines the error taxonomy shared across the overlay,
// the per-ISO VFS, and the DSF materialiser, matching the kinds in spec
// section 7 so the host-FS binding can map them to POSIX errno values.
package sacderr

import "errors"

// Sentinel kinds. Callers should compare with errors.Is; the concrete
// error a function returns is usually one of these wrapped with context
// via fmt.Errorf("...: %w", ...).
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("not found")
	ErrIsDirectory      = errors.New("is a directory")
	ErrNotDirectory     = errors.New("not a directory")
	ErrPermissionDenied = errors.New("permission denied")
	ErrIO               = errors.New("i/o error")
	ErrNotSacd          = errors.New("not a valid SACD image")
	ErrResourceLimit    = errors.New("resource limit reached")
	ErrDecode           = errors.New("decode error")
	ErrEndOfFile        = errors.New("end of file")
	ErrOutOfMemory      = errors.New("allocation failure")
)

// Recoverable reports whether an error kind is expected, routine, and
// must never be logged at warning level or above (spec §7's propagation
// policy): NotFound, NotSacd, and EndOfFile are all things callers are
// expected to hit in normal operation.
func Recoverable(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotSacd), errors.Is(err, ErrEndOfFile):
		return true
	default:
		return false
	}
}
