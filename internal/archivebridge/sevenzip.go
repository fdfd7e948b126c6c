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

//nolint:dupl // the three archive backends are intentionally parallel in shape
package archivebridge

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// SevenZipArchive provides access to files in a 7z archive.
type SevenZipArchive struct {
	reader *sevenzip.ReadCloser
	path   string
}

func openSevenZip(path string) (*SevenZipArchive, error) {
	reader, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open 7z archive: %w", err)
	}
	return &SevenZipArchive{reader: reader, path: path}, nil
}

// List returns all files in the 7z archive.
func (s *SevenZipArchive) List() ([]FileInfo, error) {
	files := make([]FileInfo, 0, len(s.reader.File))
	for _, f := range s.reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		//nolint:gosec // archive member sizes fit comfortably in int64
		files = append(files, FileInfo{Name: f.Name, Size: int64(f.UncompressedSize)})
	}
	return files, nil
}

// Open opens a file within the 7z archive.
func (s *SevenZipArchive) Open(internalPath string) (io.ReadCloser, int64, error) {
	internalPath = filepath.ToSlash(internalPath)
	for _, f := range s.reader.File {
		if strings.EqualFold(f.Name, internalPath) {
			rc, err := f.Open()
			if err != nil {
				return nil, 0, fmt.Errorf("open file in 7z: %w", err)
			}
			//nolint:gosec // archive member sizes fit comfortably in int64
			return rc, int64(f.UncompressedSize), nil
		}
	}
	return nil, 0, FileNotFoundError{Archive: s.path, InternalPath: internalPath}
}

// OpenReaderAt opens a file and returns a buffered random-access view.
//
//nolint:revive // four return values mirror the Archive interface shape
func (s *SevenZipArchive) OpenReaderAt(internalPath string) (io.ReaderAt, int64, io.Closer, error) {
	return bufferFile(s, internalPath)
}

// Close closes the 7z archive.
func (s *SevenZipArchive) Close() error {
	return s.reader.Close() //nolint:wrapcheck // close error passthrough is intentional
}
