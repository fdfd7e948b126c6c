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
	"errors"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/wichers/dsd-nexus/internal/pathutil"
	"github.com/wichers/dsd-nexus/internal/sacderr"
	"github.com/wichers/dsd-nexus/internal/sacdmodel"
	"github.com/wichers/dsd-nexus/internal/sacdsource"
	"github.com/wichers/dsd-nexus/internal/sacdtest"
)

func stereoOnlyAreaSpecs() []sacdtest.AreaSpec {
	return []sacdtest.AreaSpec{
		{
			Area:     sacdmodel.AreaStereo,
			Channels: 2,
			Format:   sacdmodel.FrameFormatDSD,
			Tracks:   []sacdtest.TrackSpec{{Number: 1, Title: "Opening", FrameCount: 1}},
		},
	}
}

func newTestContext(t *testing.T, cfg Config) (*Context, afero.Fs, *sacdtest.Opener) {
	t.Helper()
	hostFS := afero.NewMemMapFs()
	if err := hostFS.MkdirAll("/music", 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	opener := sacdtest.NewOpener()
	ctx := New("/music", hostFS, opener, sacdtest.IdentityDecoderFactory, cfg, nil)
	return ctx, hostFS, opener
}

func registerFakeISO(t *testing.T, hostFS afero.Fs, opener *sacdtest.Opener, hostPath string) {
	t.Helper()
	if err := afero.WriteFile(hostFS, hostPath, []byte("fake iso bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", hostPath, err)
	}
	opener.Register(hostPath, func() (sacdsource.FrameSource, error) {
		return sacdtest.NewFrameSource("Fixture Album", stereoOnlyAreaSpecs()), nil
	})
}

func TestReaddirDiscoversISOAndHidesSidecar(t *testing.T) {
	t.Parallel()

	ctx, hostFS, opener := newTestContext(t, Config{StereoVisible: true, FilenameMode: pathutil.FilenameNumberTitle})
	registerFakeISO(t, hostFS, opener, "/music/Disc.iso")
	if err := afero.WriteFile(hostFS, "/music/Disc.iso.xml", []byte("<sacd_overlay/>"), 0o644); err != nil {
		t.Fatalf("WriteFile sidecar: %v", err)
	}
	if err := afero.WriteFile(hostFS, "/music/readme.txt", []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile readme: %v", err)
	}

	entries, err := ctx.Readdir("/")
	if err != nil {
		t.Fatalf("Readdir(/): %v", err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	wantPresent := map[string]bool{"Disc": false, "readme.txt": false}
	for _, n := range names {
		if _, ok := wantPresent[n]; ok {
			wantPresent[n] = true
		}
		if n == "Disc.iso.xml" {
			t.Errorf("sidecar file %q should never appear in a listing", n)
		}
	}
	for n, ok := range wantPresent {
		if !ok {
			t.Errorf("Readdir(/) = %v, missing expected entry %q", names, n)
		}
	}
}

func TestMountDisplayNameCollisionGetsSuffix(t *testing.T) {
	t.Parallel()

	ctx, hostFS, opener := newTestContext(t, Config{StereoVisible: true, FilenameMode: pathutil.FilenameNumberTitle})
	registerFakeISO(t, hostFS, opener, "/music/Disc.iso")
	registerFakeISO(t, hostFS, opener, "/music/Disc.ISO") // same sanitised base name, extension in a different case

	entries, err := ctx.Readdir("/")
	if err != nil {
		t.Fatalf("Readdir(/): %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Readdir(/) = %+v, want 2 entries", entries)
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	if !names["Disc"] || !names["disc (1)"] && !names["Disc (1)"] {
		t.Errorf("entries = %v, want a base name and a (1)-suffixed collision name", names)
	}
}

func TestResolveMountLongestPrefixMatch(t *testing.T) {
	t.Parallel()

	ctx, hostFS, opener := newTestContext(t, Config{StereoVisible: true, FilenameMode: pathutil.FilenameNumberTitle})
	registerFakeISO(t, hostFS, opener, "/music/Disc.iso")

	if _, err := ctx.Readdir("/"); err != nil {
		t.Fatalf("Readdir(/): %v", err)
	}

	entries, err := ctx.Readdir("/Disc")
	if err != nil {
		t.Fatalf("Readdir(/Disc): %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Stereo" {
		t.Fatalf("Readdir(/Disc) = %+v, want [Stereo]", entries)
	}

	entries, err = ctx.Readdir("/Disc/Stereo")
	if err != nil {
		t.Fatalf("Readdir(/Disc/Stereo): %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "01. Opening.dsf" {
		t.Fatalf("Readdir(/Disc/Stereo) = %+v, want [01. Opening.dsf]", entries)
	}
}

func TestStatAndReaddirAgree(t *testing.T) {
	t.Parallel()

	ctx, hostFS, opener := newTestContext(t, Config{StereoVisible: true, FilenameMode: pathutil.FilenameNumberTitle})
	registerFakeISO(t, hostFS, opener, "/music/Disc.iso")
	if _, err := ctx.Readdir("/"); err != nil {
		t.Fatalf("Readdir(/): %v", err)
	}

	stat, err := ctx.Stat("/Disc/Stereo/01. Opening.dsf")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if stat.Type != EntryFile {
		t.Errorf("Stat type = %v, want EntryFile", stat.Type)
	}

	if _, err := ctx.Stat("/Disc/Stereo/does-not-exist.dsf"); !errors.Is(err, sacderr.ErrNotFound) {
		t.Errorf("Stat of unknown file error = %v, want %v", err, sacderr.ErrNotFound)
	}
}

func TestMaxOpenISOsLimitsConcurrentMounts(t *testing.T) {
	t.Parallel()

	ctx, hostFS, opener := newTestContext(t, Config{StereoVisible: true, FilenameMode: pathutil.FilenameNumberTitle, MaxOpenISOs: 1})
	registerFakeISO(t, hostFS, opener, "/music/First.iso")
	registerFakeISO(t, hostFS, opener, "/music/Second.iso")

	entries, err := ctx.Readdir("/")
	if err != nil {
		t.Fatalf("Readdir(/): %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Readdir(/) with MaxOpenISOs=1 = %+v, want exactly 1 entry", entries)
	}
}

func TestAccessDeniesWriteOnPassthroughHostFile(t *testing.T) {
	t.Parallel()

	ctx, hostFS, _ := newTestContext(t, Config{StereoVisible: true, FilenameMode: pathutil.FilenameNumberTitle})
	if err := afero.WriteFile(hostFS, "/music/plain.txt", []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := ctx.Access("/plain.txt", true); !errors.Is(err, sacderr.ErrPermissionDenied) {
		t.Errorf("Access(write) on a passthrough file error = %v, want %v", err, sacderr.ErrPermissionDenied)
	}
	if err := ctx.Access("/plain.txt", false); err != nil {
		t.Errorf("Access(read) on a passthrough file error = %v, want nil", err)
	}
}

func TestAccessAllowsWriteOnVirtualMetadataRegionWhenEnabled(t *testing.T) {
	t.Parallel()

	ctx, hostFS, opener := newTestContext(t, Config{StereoVisible: true, FilenameMode: pathutil.FilenameNumberTitle, AllowTagEdits: true})
	registerFakeISO(t, hostFS, opener, "/music/Disc.iso")
	if _, err := ctx.Readdir("/"); err != nil {
		t.Fatalf("Readdir(/): %v", err)
	}

	if err := ctx.Access("/Disc/Stereo/01. Opening.dsf", true); err != nil {
		t.Errorf("Access(write) on a track with tag edits enabled = %v, want nil", err)
	}
}

func TestOpenPassthroughHostFileReadsBytes(t *testing.T) {
	t.Parallel()

	ctx, hostFS, _ := newTestContext(t, Config{StereoVisible: true, FilenameMode: pathutil.FilenameNumberTitle})
	if err := afero.WriteFile(hostFS, "/music/plain.txt", []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	h, err := ctx.Open("/plain.txt", false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	buf := make([]byte, 5)
	if _, err := io.ReadFull(h, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("read bytes = %q, want %q", buf, "hello")
	}
}

func TestOpenDirectoryIsRejected(t *testing.T) {
	t.Parallel()

	ctx, hostFS, opener := newTestContext(t, Config{StereoVisible: true, FilenameMode: pathutil.FilenameNumberTitle})
	registerFakeISO(t, hostFS, opener, "/music/Disc.iso")
	if _, err := ctx.Readdir("/"); err != nil {
		t.Fatalf("Readdir(/): %v", err)
	}

	if _, err := ctx.Open("/Disc", false); !errors.Is(err, sacderr.ErrIsDirectory) {
		t.Errorf("Open(/Disc) error = %v, want %v", err, sacderr.ErrIsDirectory)
	}
}

func TestOpenVirtualTrackReadsMaterialisedHeader(t *testing.T) {
	t.Parallel()

	ctx, hostFS, opener := newTestContext(t, Config{StereoVisible: true, FilenameMode: pathutil.FilenameNumberTitle})
	registerFakeISO(t, hostFS, opener, "/music/Disc.iso")
	if _, err := ctx.Readdir("/"); err != nil {
		t.Fatalf("Readdir(/): %v", err)
	}

	h, err := ctx.Open("/Disc/Stereo/01. Opening.dsf", false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	buf := make([]byte, 4)
	if _, err := h.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "DSD " {
		t.Errorf("first 4 bytes = %q, want %q", buf, "DSD ")
	}
}

func TestCloseFlushesDirtyTagOverlay(t *testing.T) {
	t.Parallel()

	ctx, hostFS, opener := newTestContext(t, Config{StereoVisible: true, FilenameMode: pathutil.FilenameNumberTitle, AllowTagEdits: true})
	registerFakeISO(t, hostFS, opener, "/music/Disc.iso")
	if _, err := ctx.Readdir("/"); err != nil {
		t.Fatalf("Readdir(/): %v", err)
	}

	m, _, ok := ctx.resolveMount("/Disc")
	if !ok {
		t.Fatalf("resolveMount(/Disc) failed to find the mount")
	}
	if err := ctx.ensureVFS(m); err != nil {
		t.Fatalf("ensureVFS: %v", err)
	}
	m.tags.Set(sacdmodel.AreaStereo, 1, []byte("ID3TAG"))

	if err := ctx.Close(); err != nil {
		t.Fatalf("Context.Close: %v", err)
	}

	if ok, err := afero.Exists(hostFS, "/music/Disc.iso.xml"); err != nil || !ok {
		t.Errorf("sidecar file should exist after a dirty tag overlay is flushed, exists=%v err=%v", ok, err)
	}
}

func TestMountIdleEvictable(t *testing.T) {
	t.Parallel()

	m := &mount{lastAccess: time.Now().Add(-time.Hour)}
	m.vfs = nil
	if m.idleEvictable(time.Minute, time.Now()) {
		t.Error("a mount with no VFS built should never be evictable")
	}

	ctx, hostFS, opener := newTestContext(t, Config{StereoVisible: true, FilenameMode: pathutil.FilenameNumberTitle})
	registerFakeISO(t, hostFS, opener, "/music/Disc.iso")
	if _, err := ctx.Readdir("/"); err != nil {
		t.Fatalf("Readdir(/): %v", err)
	}
	built, _, ok := ctx.resolveMount("/Disc")
	if !ok {
		t.Fatalf("resolveMount(/Disc) failed to find the mount")
	}
	if err := ctx.ensureVFS(built); err != nil {
		t.Fatalf("ensureVFS: %v", err)
	}

	if built.idleEvictable(time.Minute, time.Now()) {
		t.Error("a freshly built mount should not be evictable before its idle timeout elapses")
	}
	future := built.lastAccess.Add(2 * time.Hour)
	if !built.idleEvictable(time.Minute, future) {
		t.Error("a built mount untouched for longer than the timeout should be evictable")
	}

	built.acquire()
	if built.idleEvictable(time.Minute, future) {
		t.Error("a mount with an outstanding handle should never be evictable")
	}
	built.release()
}

func TestMountAcquireReleaseTracksRefCount(t *testing.T) {
	t.Parallel()

	m := &mount{lastAccess: time.Now()}
	m.acquire()
	m.acquire()
	if m.refCount != 2 {
		t.Fatalf("refCount after two acquires = %d, want 2", m.refCount)
	}
	m.release()
	if m.refCount != 1 {
		t.Fatalf("refCount after one release = %d, want 1", m.refCount)
	}
}
