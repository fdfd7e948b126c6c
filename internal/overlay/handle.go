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
	"io"

	"github.com/spf13/afero"

	"github.com/wichers/dsd-nexus/internal/isovfs"
	"github.com/wichers/dsd-nexus/internal/pathutil"
	"github.com/wichers/dsd-nexus/internal/sacderr"
)

// FileHandle is the host-FS-facing handle abstraction: either a
// passthrough wrapper around a real host file, or a virtual handle onto
// a track inside a mounted ISO (spec §3's "virtual file handle" entity,
// generalised to cover both cases behind one interface).
type FileHandle interface {
	Read(dst []byte) (int, error)
	Seek(whence int, offset int64) (int64, error)
	WriteAt(src []byte, offset int64) (int, error)
	Close() error
}

// Open resolves vpath to a file handle. writeRequested causes a
// permission check up front; opening for read-only access never fails
// on account of writability.
func (c *Context) Open(vpath string, writeRequested bool) (FileHandle, error) {
	c.maybeEvict()
	vpath = pathutil.Clean(vpath)

	if writeRequested {
		if err := c.Access(vpath, true); err != nil {
			return nil, err
		}
	}

	if m, sub, ok := c.resolveMount(vpath); ok {
		if sub == "/" {
			return nil, fmt.Errorf("%w: %s is a directory", sacderr.ErrIsDirectory, vpath)
		}
		if err := c.ensureVFS(m); err != nil {
			return nil, err
		}
		h, err := m.vfs.FileOpen(sub)
		if err != nil {
			return nil, err
		}
		m.acquire()
		return &virtualHandle{h: h, m: m}, nil
	}

	hostPath := c.hostPath(vpath)
	info, err := c.hostFS.Stat(hostPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", sacderr.ErrNotFound, vpath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", sacderr.ErrIsDirectory, vpath)
	}

	f, err := c.hostFS.Open(hostPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", sacderr.ErrIO, vpath, err)
	}
	return &passthroughHandle{f: f}, nil
}

// virtualHandle adapts *isovfs.Handle's uint64-cursor contract to the
// FileHandle interface and releases the owning mount's reference count
// on Close.
type virtualHandle struct {
	h *isovfs.Handle
	m *mount
}

func (v *virtualHandle) Read(dst []byte) (int, error) {
	return v.h.Read(dst)
}

func (v *virtualHandle) Seek(whence int, offset int64) (int64, error) {
	pos, err := v.h.Seek(whence, offset)
	//nolint:gosec // track byte sizes stay well within int64 range
	return int64(pos), err
}

func (v *virtualHandle) WriteAt(src []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("%w: negative write offset", sacderr.ErrInvalidArgument)
	}
	//nolint:gosec // offset already checked non-negative
	return v.h.Write(src, uint64(offset))
}

func (v *virtualHandle) Close() error {
	err := v.h.Close()
	v.m.release()
	return err
}

// passthroughHandle maps one-to-one onto a real host file; per §4.G
// only virtual DSF metadata regions are ever writable, so writes here
// always fail.
type passthroughHandle struct {
	f afero.File
}

func (p *passthroughHandle) Read(dst []byte) (int, error) {
	return p.f.Read(dst)
}

func (p *passthroughHandle) Seek(whence int, offset int64) (int64, error) {
	return p.f.Seek(offset, whence)
}

func (p *passthroughHandle) WriteAt([]byte, int64) (int, error) {
	return 0, fmt.Errorf("%w: passthrough files are read-only through this overlay", sacderr.ErrPermissionDenied)
}

func (p *passthroughHandle) Close() error {
	return p.f.Close()
}

var _ io.Closer = (*passthroughHandle)(nil)
