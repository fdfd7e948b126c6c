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
	"encoding/xml"
	"fmt"

	"github.com/wichers/dsd-nexus/internal/sacdmodel"
)

// sidecarDoc is the root element persisted next to an ISO, named
// "<iso>.xml" (spec §3/§6). Root element <sacd_overlay>, one <tag> child
// per overlay entry.
type sidecarDoc struct {
	XMLName xml.Name     `xml:"sacd_overlay"`
	Tags    []sidecarTag `xml:"tag"`
}

type sidecarTag struct {
	Area  string `xml:"area,attr"`
	Track int    `xml:"track,attr"`
	// Data holds the base64-encoded ID3v2.4 bytes as the element's text
	// body.
	Data string `xml:",chardata"`
}

func areaAttr(a sacdmodel.Area) string {
	if a == sacdmodel.AreaMultichannel {
		return "multichannel"
	}
	return "stereo"
}

func parseAreaAttr(s string) (sacdmodel.Area, error) {
	switch s {
	case "stereo":
		return sacdmodel.AreaStereo, nil
	case "multichannel":
		return sacdmodel.AreaMultichannel, nil
	default:
		return 0, fmt.Errorf("unknown sidecar area %q", s)
	}
}
