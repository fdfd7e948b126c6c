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

// Package isovfs models one opened SACD image as a tree of virtual DSF
// files rooted at /<area>/<track-file> (spec §4.F). The album directory
// itself is named and hidden by the overlay layer (§4.G); this package
// only owns what's beneath it.
package isovfs

import (
	"fmt"

	"github.com/wichers/dsd-nexus/internal/decoderpool"
	"github.com/wichers/dsd-nexus/internal/dsf"
	"github.com/wichers/dsd-nexus/internal/id3tag"
	"github.com/wichers/dsd-nexus/internal/pathutil"
	"github.com/wichers/dsd-nexus/internal/sacderr"
	"github.com/wichers/dsd-nexus/internal/sacdmodel"
	"github.com/wichers/dsd-nexus/internal/sacdsource"
	"github.com/wichers/dsd-nexus/internal/tagstore"
)

// EntryType distinguishes directories from files in a VFS listing.
type EntryType int

const (
	EntryDirectory EntryType = iota
	EntryFile
)

// Entry is one readdir/stat result.
type Entry struct {
	Name string
	Type EntryType
	Size uint64
}

// Config bundles the per-mount policy the VFS is built with.
type Config struct {
	StereoVisible       bool
	MultichannelVisible bool
	FilenameMode        pathutil.FilenameMode
	Writable            bool // whether metadata-region writes are accepted
}

// VFS is one mounted SACD's virtual directory tree.
type VFS struct {
	src      sacdsource.FrameSource
	tags     *tagstore.Store
	cfg      Config
	album    *sacdmodel.AlbumInfo
	visible  map[sacdmodel.Area]bool
	decoders map[sacdmodel.Area]*decoderpool.Coordinator
}

// New parses the ISO's table of contents via src, registers its
// disc-embedded ID3 tags with tags, and computes area visibility.
// decoders supplies a coordinator per DST-formatted area (nil or
// missing entries are fine for DSD-only areas).
func New(src sacdsource.FrameSource, decoders map[sacdmodel.Area]*decoderpool.Coordinator, tags *tagstore.Store, cfg Config) (*VFS, error) {
	album, err := src.TOC()
	if err != nil {
		return nil, fmt.Errorf("read table of contents: %w", err)
	}

	v := &VFS{
		src:      src,
		tags:     tags,
		cfg:      cfg,
		album:    album,
		visible:  make(map[sacdmodel.Area]bool),
		decoders: decoders,
	}

	v.visible[sacdmodel.AreaStereo] = shouldShowArea(album, sacdmodel.AreaStereo, cfg.StereoVisible)
	v.visible[sacdmodel.AreaMultichannel] = shouldShowArea(album, sacdmodel.AreaMultichannel, cfg.MultichannelVisible)

	for area, info := range album.Areas {
		if info == nil {
			continue
		}
		for _, t := range info.Tracks {
			if t.ID3 != nil {
				tags.SetEmbedded(area, t.Number, t.ID3)
			}
		}
	}

	return v, nil
}

// shouldShowArea implements §4.D's fallback rule: "area exists and
// (visibility flag set OR it is the only area present)".
func shouldShowArea(album *sacdmodel.AlbumInfo, area sacdmodel.Area, visibleFlag bool) bool {
	if !album.HasArea(area) {
		return false
	}
	if visibleFlag {
		return true
	}
	return !album.HasArea(otherArea(area))
}

func otherArea(area sacdmodel.Area) sacdmodel.Area {
	if area == sacdmodel.AreaStereo {
		return sacdmodel.AreaMultichannel
	}
	return sacdmodel.AreaStereo
}

// AlbumName returns the sanitised disc title. The overlay layer does not
// use it; it names each mount after the ISO file's base name.
func (v *VFS) AlbumName() string {
	return pathutil.Sanitise(v.album.Title)
}

// areaOrder fixes the listing order areas appear in: stereo, then
// multichannel, matching S2/S3's "areas first" ordering requirement.
var areaOrder = [...]sacdmodel.Area{sacdmodel.AreaStereo, sacdmodel.AreaMultichannel}

// Readdir lists the entries at a VFS-relative path ("/" or
// "/<area-dir>"). Entries are returned areas-first / tracks-by-number,
// matching §4.F's ordering guarantee.
func (v *VFS) Readdir(path string) ([]Entry, error) {
	parts := pathutil.Split(path)

	switch len(parts) {
	case 0:
		var entries []Entry
		for _, area := range areaOrder {
			if v.visible[area] {
				entries = append(entries, Entry{Name: area.DisplayName(), Type: EntryDirectory})
			}
		}
		return entries, nil

	case 1:
		area, ok := v.areaForDisplayName(parts[0])
		if !ok || !v.visible[area] {
			return nil, fmt.Errorf("%w: %s", sacderr.ErrNotFound, path)
		}
		return v.trackEntries(area)

	default:
		return nil, fmt.Errorf("%w: %s", sacderr.ErrNotFound, path)
	}
}

// artistFor returns the artist text frame from the effective (overlay
// or disc-embedded) ID3 tag for a track, used by the number+artist+title
// filename form. An absent or unparsable tag yields "", which
// pathutil.TrackFilename treats the same as no artist known.
func (v *VFS) artistFor(area sacdmodel.Area, track int) string {
	tagBytes := v.tags.Get(area, track)
	if tagBytes == nil {
		return ""
	}
	return id3tag.Parse(tagBytes).Artist
}

func (v *VFS) trackEntries(area sacdmodel.Area) ([]Entry, error) {
	info := v.album.Areas[area]
	entries := make([]Entry, 0, len(info.Tracks))
	seen := make(map[string]int)
	for _, t := range info.Tracks {
		name := pathutil.TrackFilename(v.cfg.FilenameMode, t.Number, t.Title, v.artistFor(area, t.Number))
		name = pathutil.Dedupe(seen, name)
		size, err := v.trackSize(area, t)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: name, Type: EntryFile, Size: size})
	}
	return entries, nil
}

func (v *VFS) trackSize(area sacdmodel.Area, track sacdmodel.Track) (uint64, error) {
	mat, err := v.materialiser(area, track, v.decoders[area])
	if err != nil {
		return 0, err
	}
	return mat.Info().TotalSize, nil
}

func (v *VFS) areaForDisplayName(name string) (sacdmodel.Area, bool) {
	for _, area := range areaOrder {
		if area.DisplayName() == name {
			return area, true
		}
	}
	return 0, false
}

// resolveTrack maps a VFS-relative file path to its area and track,
// regenerating the same filename listing Readdir produces so that
// collision-suffixed names resolve symmetrically.
func (v *VFS) resolveTrack(path string) (sacdmodel.Area, sacdmodel.Track, error) {
	parts := pathutil.Split(path)
	if len(parts) != 2 {
		return 0, sacdmodel.Track{}, fmt.Errorf("%w: %s", sacderr.ErrNotFound, path)
	}

	area, ok := v.areaForDisplayName(parts[0])
	if !ok || !v.visible[area] {
		return 0, sacdmodel.Track{}, fmt.Errorf("%w: %s", sacderr.ErrNotFound, path)
	}

	info := v.album.Areas[area]
	seen := make(map[string]int)
	for _, t := range info.Tracks {
		name := pathutil.TrackFilename(v.cfg.FilenameMode, t.Number, t.Title, v.artistFor(area, t.Number))
		name = pathutil.Dedupe(seen, name)
		if name == parts[1] {
			return area, t, nil
		}
	}
	return 0, sacdmodel.Track{}, fmt.Errorf("%w: %s", sacderr.ErrNotFound, path)
}

// Stat resolves path to its directory/file metadata.
func (v *VFS) Stat(path string) (Entry, error) {
	parts := pathutil.Split(path)
	switch len(parts) {
	case 0:
		return Entry{Name: "/", Type: EntryDirectory}, nil
	case 1:
		area, ok := v.areaForDisplayName(parts[0])
		if !ok || !v.visible[area] {
			return Entry{}, fmt.Errorf("%w: %s", sacderr.ErrNotFound, path)
		}
		return Entry{Name: parts[0], Type: EntryDirectory}, nil
	default:
		area, track, err := v.resolveTrack(path)
		if err != nil {
			return Entry{}, err
		}
		size, err := v.trackSize(area, track)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Name: parts[len(parts)-1], Type: EntryFile, Size: size}, nil
	}
}

// Writable reports whether path (a track file) accepts metadata writes,
// per §4.G's "virtual DSF files are writable only if the overlay
// configuration allows metadata editing".
func (v *VFS) Writable(path string) (bool, error) {
	if _, _, err := v.resolveTrack(path); err != nil {
		return false, err
	}
	return v.cfg.Writable, nil
}

// Truncate is always a no-op on virtual files (spec §6).
func (v *VFS) Truncate(path string, _ uint64) error {
	_, _, err := v.resolveTrack(path)
	return err
}

func (v *VFS) materialiser(area sacdmodel.Area, track sacdmodel.Track, pool *decoderpool.Coordinator) (*dsf.Materialiser, error) {
	info := v.album.Areas[area]
	return dsf.New(v.src, pool, metadataSource{v.tags}, area, info, track)
}

// metadataSource adapts *tagstore.Store to dsf.MetadataSource.
type metadataSource struct {
	store *tagstore.Store
}

func (m metadataSource) Get(area sacdmodel.Area, track int) []byte {
	return m.store.Get(area, track)
}

// FileOpen opens path using this VFS's own per-area decoder pool.
func (v *VFS) FileOpen(path string) (*Handle, error) {
	area, track, err := v.resolveTrack(path)
	if err != nil {
		return nil, err
	}
	return v.open(area, track, v.decoders[area])
}

// FileOpenWithPool opens path using a caller-supplied decoder
// coordinator instead of this VFS's default, per §4.F's file_open_mt.
func (v *VFS) FileOpenWithPool(path string, pool *decoderpool.Coordinator) (*Handle, error) {
	area, track, err := v.resolveTrack(path)
	if err != nil {
		return nil, err
	}
	return v.open(area, track, pool)
}

func (v *VFS) open(area sacdmodel.Area, track sacdmodel.Track, pool *decoderpool.Coordinator) (*Handle, error) {
	mat, err := v.materialiser(area, track, pool)
	if err != nil {
		return nil, err
	}
	return &Handle{
		vfs:         v,
		area:        area,
		trackNumber: track.Number,
		mat:         mat,
		writable:    v.cfg.Writable,
		writeStart:  mat.Info().MetadataOffset,
	}, nil
}
