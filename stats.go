// Copyright 2024 The shale Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package shale

import "sync/atomic"

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	// Flushes counts objects written back by eviction or FlushDirty.
	Flushes uint64
	// HitRatio is hits as a percentage of lookups.
	HitRatio float64
}

type cacheCounters struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	flushes   atomic.Uint64
}

func (c *cacheCounters) snapshot() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	ratio := 0.0
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total) * 100.0
	}
	return Stats{
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		Flushes:   c.flushes.Load(),
		HitRatio:  ratio,
	}
}

func (c *cacheCounters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.flushes.Store(0)
}
