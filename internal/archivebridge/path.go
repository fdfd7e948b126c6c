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

package archivebridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Path is a parsed reference to a member inside an archive.
type Path struct {
	ArchivePath  string // host path to the archive file
	InternalPath string // path inside the archive, empty means auto-detect
}

var archiveExtensions = []string{".zip", ".7z", ".rar"}

// ParsePath parses a path that may reference a member inside an
// archive, e.g. "/library/discs.zip/A/disc.iso". Returns (*Path, nil)
// if the path references an archive, (nil, nil) if it plainly doesn't,
// and (nil, err) only on an I/O failure while checking candidacy.
//
//nolint:nilnil // nil,nil is documented "not an archive path" behaviour
func ParsePath(path string) (*Path, error) {
	normalized := filepath.ToSlash(path)

	for _, ext := range archiveExtensions {
		pattern := ext + "/"
		idx := strings.Index(strings.ToLower(normalized), pattern)
		if idx == -1 {
			continue
		}

		archivePath := path[:idx+len(ext)]
		internalPath := path[idx+len(ext)+1:]

		if _, err := os.Stat(archivePath); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat archive %s: %w", archivePath, err)
		}

		return &Path{ArchivePath: archivePath, InternalPath: internalPath}, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if IsArchiveExtension(ext) {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("stat archive %s: %w", path, err)
		}
		return &Path{ArchivePath: path, InternalPath: ""}, nil
	}

	return nil, nil
}

// IsArchivePath reports whether path looks like an archive reference,
// without touching the filesystem.
func IsArchivePath(path string) bool {
	normalized := filepath.ToSlash(path)
	for _, ext := range archiveExtensions {
		if strings.Contains(strings.ToLower(normalized), ext+"/") {
			return true
		}
	}
	return IsArchiveExtension(strings.ToLower(filepath.Ext(path)))
}
