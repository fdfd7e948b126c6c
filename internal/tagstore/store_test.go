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

package tagstore

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"

	"github.com/wichers/dsd-nexus/internal/sacdmodel"
)

func TestGetFallsBackFromOverlayToEmbedded(t *testing.T) {
	t.Parallel()

	s := New(afero.NewMemMapFs(), "/x.xml")
	if got := s.Get(sacdmodel.AreaStereo, 1); got != nil {
		t.Fatalf("Get on empty store = %v, want nil", got)
	}

	s.SetEmbedded(sacdmodel.AreaStereo, 1, []byte("embedded"))
	if got := s.Get(sacdmodel.AreaStereo, 1); string(got) != "embedded" {
		t.Errorf("Get after SetEmbedded = %q, want %q", got, "embedded")
	}

	s.Set(sacdmodel.AreaStereo, 1, []byte("edited"))
	if got := s.Get(sacdmodel.AreaStereo, 1); string(got) != "edited" {
		t.Errorf("Get after Set = %q, want overlay to take priority", got)
	}
}

func TestSetMarksDirtyClearForcesDirty(t *testing.T) {
	t.Parallel()

	s := New(afero.NewMemMapFs(), "/x.xml")
	if s.UnsavedChanges() {
		t.Fatal("fresh store should have no unsaved changes")
	}

	s.Set(sacdmodel.AreaStereo, 1, []byte("edit"))
	if !s.UnsavedChanges() {
		t.Error("after Set, UnsavedChanges should be true")
	}

	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.UnsavedChanges() {
		t.Error("after Save, UnsavedChanges should be false")
	}

	s.Clear(sacdmodel.AreaStereo, 1)
	if !s.UnsavedChanges() {
		t.Error("after Clear, UnsavedChanges should be true even though no overlay entry remains")
	}
	if got := s.Get(sacdmodel.AreaStereo, 1); got != nil {
		t.Errorf("Get after Clear = %v, want nil (no embedded fallback registered)", got)
	}
}

func TestClearOnAbsentEntryIsNoop(t *testing.T) {
	t.Parallel()

	s := New(afero.NewMemMapFs(), "/x.xml")
	s.Clear(sacdmodel.AreaStereo, 1)
	if s.UnsavedChanges() {
		t.Error("Clear on an absent entry should not mark the store dirty")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	const path = "/disc.xml"
	s := New(fs, path)
	s.Set(sacdmodel.AreaStereo, 1, []byte("stereo tag one"))
	s.Set(sacdmodel.AreaMultichannel, 2, []byte("multi tag two"))
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := New(fs, path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded.Get(sacdmodel.AreaStereo, 1); string(got) != "stereo tag one" {
		t.Errorf("Get(stereo, 1) after round-trip = %q, want %q", got, "stereo tag one")
	}
	if got := loaded.Get(sacdmodel.AreaMultichannel, 2); string(got) != "multi tag two" {
		t.Errorf("Get(multichannel, 2) after round-trip = %q, want %q", got, "multi tag two")
	}
	if loaded.UnsavedChanges() {
		t.Error("a freshly loaded store should report no unsaved changes")
	}
}

func TestLoadMissingSidecarIsNotAnError(t *testing.T) {
	t.Parallel()

	s := New(afero.NewMemMapFs(), "/does-not-exist.xml")
	if err := s.Load(); err != nil {
		t.Errorf("Load of a missing sidecar = %v, want nil", err)
	}
}

func TestLoadMalformedSidecarReturnsError(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	const path = "/bad.xml"
	if err := afero.WriteFile(fs, path, []byte("not xml at all <<<"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := New(fs, path)
	if err := s.Load(); err == nil {
		t.Error("Load of a malformed sidecar should return an error")
	}
}

func TestLoadSkipsEntriesWithUnknownArea(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	const path = "/unknown-area.xml"
	doc := []byte(`<sacd_overlay><tag area="quadraphonic" track="1">AAAA</tag></sacd_overlay>`)
	if err := afero.WriteFile(fs, path, doc, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := New(fs, path)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.Get(sacdmodel.AreaStereo, 1); got != nil {
		t.Errorf("Get after loading an unknown-area entry = %v, want nil", got)
	}
}

func TestSaveIsAtomicNoTempFileLeftBehind(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	const path = "/disc.xml"
	s := New(fs, path)
	s.Set(sacdmodel.AreaStereo, 1, []byte("x"))
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ok, err := afero.Exists(fs, path+".tmp"); err != nil || ok {
		t.Errorf("temp sidecar file should not remain after Save, exists=%v err=%v", ok, err)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Contains(data, []byte("sacd_overlay")) {
		t.Errorf("sidecar contents = %q, want it to contain the root element", data)
	}
}

func TestSaveIsByteIdenticalAcrossRepeatedCalls(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	const path = "/disc.xml"
	s := New(fs, path)
	s.Set(sacdmodel.AreaMultichannel, 3, []byte("c"))
	s.Set(sacdmodel.AreaStereo, 1, []byte("a"))
	s.Set(sacdmodel.AreaStereo, 2, []byte("b"))

	if err := s.Save(); err != nil {
		t.Fatalf("Save (1st): %v", err)
	}
	first, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	for i := 0; i < 5; i++ {
		s.Set(sacdmodel.AreaMultichannel, 3, []byte("c"))
		s.Set(sacdmodel.AreaStereo, 1, []byte("a"))
		s.Set(sacdmodel.AreaStereo, 2, []byte("b"))
		if err := s.Save(); err != nil {
			t.Fatalf("Save (repeat %d): %v", i, err)
		}
		again, err := afero.ReadFile(fs, path)
		if err != nil {
			t.Fatalf("ReadFile (repeat %d): %v", i, err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("Save output changed between repeated calls on an unchanged overlay:\nfirst=%s\nagain=%s", first, again)
		}
	}
}
