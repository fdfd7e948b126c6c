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

// Package pathutil normalises and sanitises the path components the
// overlay layer (spec §4.G) and per-ISO VFS (spec §4.F) hand out and
// accept. Every name that crosses a host filesystem boundary goes
// through here first so that Unicode-equivalent names collide the same
// way on every platform.
package pathutil

import (
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/wichers/dsd-nexus/internal/sacderr"
)

// reservedChars are bytes illegal (or awkward) in a single path
// component on the host filesystems this project targets.
const reservedChars = `/\:*?"<>|`

// Normalise applies Unicode NFC normalisation to name, matching
// spec §4.H's requirement that two Unicode-equivalent spellings of
// the same track title resolve to the same path component.
func Normalise(name string) string {
	return norm.NFC.String(name)
}

// Sanitise produces a filesystem-safe path component from an arbitrary
// string (typically a track title pulled from disc text): reserved
// characters become underscores, runs of underscores collapse to one,
// the result is trimmed of leading/trailing spaces and dots (some hosts
// treat both specially), and it is capped at a platform-safe length.
func Sanitise(name string) string {
	name = Normalise(name)
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(reservedChars, r) || r < 0x20 {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}

	collapsed := b.String()
	for strings.Contains(collapsed, "__") {
		collapsed = strings.ReplaceAll(collapsed, "__", "_")
	}

	clean := strings.Trim(collapsed, " .")
	if clean == "" {
		clean = "untitled"
	}
	if len(clean) > maxComponentLen {
		clean = strings.TrimRight(clean[:maxComponentLen], " .")
	}
	return clean
}

// Clean normalises and lexically cleans a slash-separated virtual path,
// always returning a path rooted at "/" with no ".." segments escaping
// the root (any that would are dropped, matching overlay semantics
// where the root is the mount point, not the host root).
func Clean(p string) string {
	p = Normalise(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Split breaks a cleaned virtual path into its components, discarding
// the empty leading component produced by the root slash.
func Split(p string) []string {
	p = Clean(p)
	if p == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

// Parse splits a cleaned virtual path into its parent directory and
// leaf component, per §4.H. The root path's parent is itself.
func Parse(p string) (parent, leaf string) {
	p = Clean(p)
	if p == "/" {
		return "/", ""
	}
	idx := strings.LastIndex(p, "/")
	parent = p[:idx]
	if parent == "" {
		parent = "/"
	}
	leaf = p[idx+1:]
	return parent, leaf
}

// Join rebuilds a virtual path from components, sanitising none of
// them — callers that build paths from untrusted text should run each
// component through Sanitise first.
func Join(components ...string) string {
	if len(components) == 0 {
		return "/"
	}
	return Clean(path.Join(components...))
}

// FilenameMode selects which of the three track-filename formats
// §4.H names: number only, number+title, or number+artist+title.
type FilenameMode int

const (
	FilenameNumberOnly FilenameMode = iota
	FilenameNumberTitle
	FilenameNumberArtistTitle
)

// maxComponentLen caps a sanitised path component at a length safe
// across the host filesystems this project targets.
const maxComponentLen = 200

// TrackFilename builds the virtual filename for a track per §4.F's
// "NN. <title>.dsf" convention (NN zero-padded to two digits), honouring
// the configured naming mode. artist is ignored outside
// FilenameNumberArtistTitle.
func TrackFilename(mode FilenameMode, number int, title, artist string) string {
	switch mode {
	case FilenameNumberOnly:
		return fmt.Sprintf("%02d.dsf", number)
	case FilenameNumberArtistTitle:
		base := Sanitise(title)
		art := Sanitise(artist)
		if base == "untitled" {
			return fmt.Sprintf("%02d.dsf", number)
		}
		if art == "untitled" {
			return fmt.Sprintf("%02d. %s.dsf", number, base)
		}
		return fmt.Sprintf("%02d. %s - %s.dsf", number, art, base)
	default: // FilenameNumberTitle
		base := Sanitise(title)
		if base == "untitled" {
			return fmt.Sprintf("%02d.dsf", number)
		}
		return fmt.Sprintf("%02d. %s.dsf", number, base)
	}
}

// Dedupe appends a " (n)" disambiguator to name the first time it
// collides with an already-seen name, per spec §4.G's collision rule.
// seen is mutated in place and should be reused across an entire
// directory listing.
func Dedupe(seen map[string]int, name string) string {
	n := seen[name]
	seen[name]++
	if n == 0 {
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

// ValidateComponent rejects path components that are empty or are the
// "." / ".." traversal sentinels, which must never reach a host-FS
// join.
func ValidateComponent(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: invalid path component %q", sacderr.ErrInvalidArgument, name)
	}
	return nil
}
