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

// Package overlay shadows a host directory tree, replacing every SACD
// ISO file it finds with a browsable virtual folder, and resolves
// virtual paths back to either a passthrough host file or a location
// inside a mounted ISO (spec §4.G).
package overlay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/wichers/dsd-nexus/internal/decoderpool"
	"github.com/wichers/dsd-nexus/internal/isovfs"
	"github.com/wichers/dsd-nexus/internal/pathutil"
	"github.com/wichers/dsd-nexus/internal/sacderr"
	"github.com/wichers/dsd-nexus/internal/sacdmodel"
	"github.com/wichers/dsd-nexus/internal/sacdsource"
	"github.com/wichers/dsd-nexus/internal/tagstore"
)

// Entry is a directory listing result; identical in shape to the
// per-ISO VFS's own entries so stat/readdir behave uniformly whether a
// path resolves to a passthrough host file or a virtual track.
type Entry = isovfs.Entry

// EntryType distinguishes directories from files.
type EntryType = isovfs.EntryType

const (
	EntryDirectory = isovfs.EntryDirectory
	EntryFile      = isovfs.EntryFile
)

// Config holds the overlay-wide policy read once at startup from the
// mount binary's CLI flags.
type Config struct {
	MaxOpenISOs         int // 0 = unlimited
	IdleTimeout         time.Duration
	DecoderThreads      int
	StereoVisible       bool
	MultichannelVisible bool
	FilenameMode        pathutil.FilenameMode
	AllowTagEdits       bool
}

// Context is one mounted root: the host directory it shadows, the
// table of ISOs discovered under it, and the shared collaborators every
// mount is built from.
type Context struct {
	root   string
	hostFS afero.Fs

	opener         sacdsource.Opener
	decoderFactory sacdsource.DecoderFactory
	cfg            Config
	log            *slog.Logger

	// iso_table_lock. Held only for table mutation and short lookups,
	// never across I/O (spec §5).
	mu           sync.Mutex
	mounts       []*mount
	mountsByHost map[string]*mount

	sweepMu   sync.Mutex
	lastSweep time.Time
}

// New creates an overlay context rooted at root. hostFS is normally
// afero.NewOsFs(); tests substitute an in-memory filesystem. A nil
// logger falls back to slog.Default(); the logger is carried on the
// Context rather than a package-level global so multiple roots in the
// same process never share log state (spec §9's singleton guidance).
func New(root string, hostFS afero.Fs, opener sacdsource.Opener, decoderFactory sacdsource.DecoderFactory, cfg Config, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		root:           pathutil.Clean(root),
		hostFS:         hostFS,
		opener:         opener,
		decoderFactory: decoderFactory,
		cfg:            cfg,
		log:            logger,
		mountsByHost:   make(map[string]*mount),
	}
}

// hostPath joins the context root with a cleaned virtual path.
func (c *Context) hostPath(vpath string) string {
	if vpath == "/" {
		return c.root
	}
	return c.root + vpath
}

// registerMount records hostPath as a mount under parentVpath, or
// returns the existing registration if hostPath is already known. The
// display name (with any collision suffix) is fixed the first time a
// host path is registered and never changes thereafter, keeping stat()
// deterministic across repeated listings (invariant 8).
func (c *Context) registerMount(hostPath, parentVpath, baseName string) (*mount, error) {
	return c.registerMountIdentity(hostPath, hostPath, parentVpath, baseName, nil)
}

// registerMountIdentity is registerMount with the dedup key (identity)
// split from the path the opener actually reads. A plain ISO file uses
// its own host path for both; an archive-backed mount dedups on the
// archive file's own host path (so re-listing the same archive doesn't
// re-extract it) while opening the freshly extracted temp file, whose
// removal is handed to the mount as archiveCleanup.
func (c *Context) registerMountIdentity(identity, hostPath, parentVpath, baseName string, archiveCleanup func() error) (*mount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.mountsByHost[identity]; ok {
		if archiveCleanup != nil {
			_ = archiveCleanup()
		}
		return m, nil
	}

	if c.cfg.MaxOpenISOs > 0 && len(c.mounts) >= c.cfg.MaxOpenISOs {
		return nil, fmt.Errorf("%w: max_open_isos=%d reached", sacderr.ErrResourceLimit, c.cfg.MaxOpenISOs)
	}

	display := baseName
	collision := 0
	for _, existing := range c.mounts {
		if existing.parentVpath == parentVpath && existing.displayName == display {
			collision++
			display = fmt.Sprintf("%s (%d)", baseName, collision)
		}
	}

	m := &mount{
		hostPath:       hostPath,
		displayName:    display,
		parentVpath:    parentVpath,
		collisionIndex: collision,
		archiveCleanup: archiveCleanup,
		lastAccess:     time.Now(),
	}
	c.mounts = append(c.mounts, m)
	c.mountsByHost[identity] = m
	c.log.Info("registered ISO mount", "host_path", hostPath, "display_name", display, "archive_identity", identity != hostPath)
	return m, nil
}

// lookupMount returns the already-registered mount for identity, if
// any, without touching the filesystem.
func (c *Context) lookupMount(identity string) (*mount, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.mountsByHost[identity]
	return m, ok
}

// resolveMount finds the mount whose virtual path is the longest
// prefix of vpath (invariant 9), returning the mount and the remaining
// sub-path (rooted at "/") inside it.
func (c *Context) resolveMount(vpath string) (*mount, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best *mount
	var bestLen int
	for _, m := range c.mounts {
		mp := m.vpath()
		if vpath == mp {
			if len(mp) > bestLen {
				best, bestLen = m, len(mp)
			}
			continue
		}
		prefix := mp
		if prefix != "/" {
			prefix += "/"
		}
		if len(vpath) > len(prefix) && vpath[:len(prefix)] == prefix && len(prefix) > bestLen {
			best, bestLen = m, len(prefix)
		}
	}
	if best == nil {
		return nil, "", false
	}

	mp := best.vpath()
	if vpath == mp {
		return best, "/", true
	}
	return best, vpath[len(mp):], true
}

// ensureVFS lazily opens the ISO backing m and builds its per-ISO VFS,
// tag store, and decoder pools. It is a no-op if the VFS already exists.
func (c *Context) ensureVFS(m *mount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vfs != nil {
		return nil
	}

	src, err := c.opener.Open(m.hostPath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", sacderr.ErrNotSacd, m.hostPath, err)
	}

	album, err := src.TOC()
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("%w: read TOC of %s: %v", sacderr.ErrIO, m.hostPath, err)
	}

	decoders := make(map[sacdmodel.Area]*decoderpool.Coordinator)
	for area, info := range album.Areas {
		if info == nil || info.Format != sacdmodel.FrameFormatDST {
			continue
		}
		coord, err := decoderpool.New(c.cfg.DecoderThreads, info.Channels, c.decoderFactory, c.log)
		if err != nil {
			_ = src.Close()
			for _, d := range decoders {
				d.Close()
			}
			return fmt.Errorf("create decoder pool for %s: %w", area, err)
		}
		decoders[area] = coord
	}

	tags := tagstore.New(c.hostFS, m.hostPath+".xml")
	if err := tags.Load(); err != nil {
		// A malformed sidecar is advisory-only: proceed with an empty
		// overlay (spec §4.E failure policy), logged once rather than
		// surfaced as a hard failure.
		c.log.Warn("sidecar failed to load, proceeding with an empty tag overlay", "host_path", m.hostPath, "error", err)
	}

	vfs, err := isovfs.New(src, decoders, tags, isovfs.Config{
		StereoVisible:       c.cfg.StereoVisible,
		MultichannelVisible: c.cfg.MultichannelVisible,
		FilenameMode:        c.cfg.FilenameMode,
		Writable:            c.cfg.AllowTagEdits,
	})
	if err != nil {
		_ = src.Close()
		for _, d := range decoders {
			d.Close()
		}
		return fmt.Errorf("build VFS for %s: %w", m.hostPath, err)
	}

	m.src = src
	m.decoders = decoders
	m.tags = tags
	m.vfs = vfs
	return nil
}

// Close tears down every mount, flushing dirty tag overlays first.
func (c *Context) Close() error {
	c.mu.Lock()
	mounts := append([]*mount(nil), c.mounts...)
	c.mu.Unlock()

	var firstErr error
	for _, m := range mounts {
		if err := c.teardown(m, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// teardown flushes (if flush is true) and releases a mount's VFS
// resources, leaving the mount registered with vfs == nil so it can be
// lazily rebuilt on next access.
func (c *Context) teardown(m *mount, flush bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vfs == nil {
		return nil
	}

	var firstErr error
	if flush && m.tags.UnsavedChanges() {
		if err := m.tags.Save(); err != nil {
			firstErr = fmt.Errorf("save tag sidecar for %s: %w", m.hostPath, err)
		}
	}
	for _, d := range m.decoders {
		d.Close()
	}
	if err := m.src.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close frame source for %s: %w", m.hostPath, err)
	}
	if m.archiveCleanup != nil {
		_ = m.archiveCleanup()
		m.archiveCleanup = nil
	}

	m.vfs = nil
	m.src = nil
	m.decoders = nil

	if firstErr != nil {
		c.log.Error("tearing down ISO mount", "host_path", m.hostPath, "error", firstErr)
	} else {
		c.log.Info("tore down ISO mount", "host_path", m.hostPath, "flushed", flush)
	}
	return firstErr
}
