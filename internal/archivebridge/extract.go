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
	"io"
	"os"
	"path/filepath"
	"strings"
)

// isoExtension is the only container member extension the overlay
// layer treats as an SACD image candidate.
const isoExtension = ".iso"

// ISOCandidates filters an archive's member list down to files that
// look like SACD images by extension. Validating that a candidate is
// actually a valid SACD image (opening it via the frame source) happens
// after extraction, same as the overlay's passthrough host-file check.
func ISOCandidates(arc Archive) ([]FileInfo, error) {
	all, err := arc.List()
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	var out []FileInfo
	for _, f := range all {
		if strings.EqualFold(filepath.Ext(f.Name), isoExtension) {
			out = append(out, f)
		}
	}
	return out, nil
}

// ExtractToTemp copies one archive member out to a plain temp file on
// the host filesystem and returns its path plus a cleanup func that
// removes it. The frame source (component A) only knows how to open a
// real host path, so an archive member destined for mounting must be
// materialised this way first.
func ExtractToTemp(arc Archive, internalPath string) (hostPath string, cleanup func() error, err error) {
	reader, _, err := arc.Open(internalPath)
	if err != nil {
		return "", nil, fmt.Errorf("open archive member: %w", err)
	}
	defer func() { _ = reader.Close() }()

	tmp, err := os.CreateTemp("", "dsdnexus-*.iso")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("extract archive member: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}

	path := tmp.Name()
	return path, func() error {
		return os.Remove(path)
	}, nil
}
