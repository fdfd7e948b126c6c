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

import "time"

// idleSweepInterval bounds how often maybeEvict actually does work: at
// most once per this much wall time, regardless of how many operations
// call it (spec §4.G: "rate-limited to once per 60s of wall time").
const idleSweepInterval = 60 * time.Second

// maybeEvict runs an opportunistic idle-eviction sweep if one hasn't
// run in the last idleSweepInterval. Call this at the top of every
// public operation; it is cheap to call when a sweep isn't due.
func (c *Context) maybeEvict() {
	if c.cfg.IdleTimeout <= 0 {
		return
	}

	c.sweepMu.Lock()
	now := time.Now()
	if now.Sub(c.lastSweep) < idleSweepInterval {
		c.sweepMu.Unlock()
		return
	}
	c.lastSweep = now
	c.sweepMu.Unlock()

	c.mu.Lock()
	mounts := append([]*mount(nil), c.mounts...)
	c.mu.Unlock()

	for _, m := range mounts {
		if m.idleEvictable(c.cfg.IdleTimeout, now) {
			_ = c.teardown(m, true)
		}
	}
}
