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

package overlay

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/wichers/dsd-nexus/internal/archivebridge"
	"github.com/wichers/dsd-nexus/internal/pathutil"
	"github.com/wichers/dsd-nexus/internal/sacderr"
)

const isoExtension = ".iso"

func isISOExtension(name string) bool {
	return strings.EqualFold(filepath.Ext(name), isoExtension)
}

// isHiddenSidecar reports whether name is a tag-store sidecar file,
// unconditionally hidden from every listing (spec §4.G).
func isHiddenSidecar(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), isoExtension+".xml")
}

// Readdir lists the entries at vpath, whether that resolves into a
// mounted ISO or a plain host directory. Areas/tracks inside a mount
// are already ordered by the per-ISO VFS; passthrough directories are
// listed in host readdir order.
func (c *Context) Readdir(vpath string) ([]Entry, error) {
	c.maybeEvict()
	vpath = pathutil.Clean(vpath)

	if m, sub, ok := c.resolveMount(vpath); ok {
		if err := c.ensureVFS(m); err != nil {
			return nil, err
		}
		m.touch()
		return m.vfs.Readdir(sub)
	}

	hostDir := c.hostPath(vpath)
	infos, err := afero.ReadDir(c.hostFS, hostDir)
	if err != nil {
		return nil, fmt.Errorf("%w: readdir %s: %v", sacderr.ErrIO, vpath, err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if isHiddenSidecar(name) {
			continue
		}

		childHost := filepath.Join(hostDir, name)

		if info.IsDir() {
			entries = append(entries, Entry{Name: name, Type: EntryDirectory})
			continue
		}

		if isISOExtension(name) && c.opener.Probe(childHost) {
			base := pathutil.Sanitise(strings.TrimSuffix(name, filepath.Ext(name)))
			m, err := c.registerMount(childHost, vpath, base)
			if err != nil {
				// A mount-cap failure here just leaves this disc out of
				// the listing (registered mounts are never removed from
				// the table); the rest of the listing still succeeds.
				continue
			}
			entries = append(entries, Entry{Name: m.displayName, Type: EntryDirectory})
			continue
		}

		if archivebridge.IsArchiveExtension(filepath.Ext(name)) {
			if m, ok := c.archiveEntry(childHost, vpath, name); ok {
				entries = append(entries, Entry{Name: m.displayName, Type: EntryDirectory})
			}
			continue
		}

		//nolint:gosec // file sizes from the host FS fit in uint64
		entries = append(entries, Entry{Name: name, Type: EntryFile, Size: uint64(info.Size())})
	}
	return entries, nil
}

// archiveEntry handles one archive container (zip/7z/rar) found during
// a host directory listing: a container carrying exactly one ISO
// member is surfaced as a browsable mount, extracted to a temp file on
// first discovery since the frame source only knows how to open a real
// host path (spec's archive-discovery supplement to §4.G). Containers
// already registered are returned without touching the archive again;
// containers with zero or multiple ISO candidates, or that fail to
// open or extract, are silently skipped, same as a probe failure on a
// plain .iso file.
func (c *Context) archiveEntry(childHost, parentVpath, name string) (*mount, bool) {
	if m, ok := c.lookupMount(childHost); ok {
		return m, true
	}

	arc, err := archivebridge.Open(childHost)
	if err != nil {
		return nil, false
	}
	defer func() { _ = arc.Close() }()

	candidates, err := archivebridge.ISOCandidates(arc)
	if err != nil || len(candidates) != 1 {
		return nil, false
	}

	hostPath, cleanup, err := archivebridge.ExtractToTemp(arc, candidates[0].Name)
	if err != nil {
		return nil, false
	}
	if !c.opener.Probe(hostPath) {
		_ = cleanup()
		return nil, false
	}

	base := pathutil.Sanitise(strings.TrimSuffix(name, filepath.Ext(name)))
	m, err := c.registerMountIdentity(childHost, hostPath, parentVpath, base, cleanup)
	if err != nil {
		_ = cleanup()
		return nil, false
	}
	return m, true
}

// Stat resolves vpath to its directory/file metadata. It is built on
// top of Readdir(parent) so stat and readdir never disagree about a
// path's identity (invariant 8).
func (c *Context) Stat(vpath string) (Entry, error) {
	c.maybeEvict()
	vpath = pathutil.Clean(vpath)
	if vpath == "/" {
		return Entry{Name: "/", Type: EntryDirectory}, nil
	}

	parent, leaf := pathutil.Parse(vpath)
	entries, err := c.Readdir(parent)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Name == leaf {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", sacderr.ErrNotFound, vpath)
}

// Access reports whether the caller's requested access mode is granted
// for vpath, returning sacderr.ErrPermissionDenied if a write was
// requested against a non-writable target.
func (c *Context) Access(vpath string, writeRequested bool) error {
	entry, err := c.Stat(vpath)
	if err != nil {
		return err
	}
	if !writeRequested {
		return nil
	}
	if entry.Type == EntryDirectory {
		return fmt.Errorf("%w: %s is a directory", sacderr.ErrIsDirectory, vpath)
	}

	writable, err := c.writable(vpath)
	if err != nil {
		return err
	}
	if !writable {
		return fmt.Errorf("%w: %s is not writable", sacderr.ErrPermissionDenied, vpath)
	}
	return nil
}

func (c *Context) writable(vpath string) (bool, error) {
	m, sub, ok := c.resolveMount(vpath)
	if !ok {
		// Passthrough host files are read-only through this overlay;
		// only virtual metadata regions are ever writable.
		return false, nil
	}
	if err := c.ensureVFS(m); err != nil {
		return false, err
	}
	return m.vfs.Writable(sub)
}

// Truncate is always accepted as a no-op, per spec §6, after confirming
// vpath exists.
func (c *Context) Truncate(vpath string, _ uint64) error {
	_, err := c.Stat(vpath)
	return err
}
