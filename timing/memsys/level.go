// Package memsys implements the memory hierarchy a core.Driver drives
// through the tx_fifo/rx_fifo contract of spec.md §4.4: a private
// cache per core, a shared cache behind it, and a DRAM backing store.
// Coherence, bus arbitration, and fill-timing detail are deliberately
// not modeled (spec.md §1 lists these as out-of-scope external
// collaborators) — each level only needs to decide hit-or-miss and
// contribute its latency to the round trip.
//
// Grounded on timing/cache.Cache (directory/LRU bookkeeping via
// github.com/sarchlab/akita/v4/mem/cache), generalized from a
// data-carrying register-file cache into the value-free model spec.md
// §4.2's forwarding policy already assumes ("data payloads are not
// modeled").
package memsys

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// LevelConfig mirrors timing/cache.Config, minus the data-path fields
// this repo never needs (there is no Data to size).
type LevelConfig struct {
	Sets          int
	Associativity int
	BlockBytes    int
	HitLatency    uint64
	MissLatency   uint64
}

// LevelStats mirrors timing/cache.Statistics.
type LevelStats struct {
	Accesses  uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Level is one set-associative cache stage. It tracks tags only — no
// data store — because requests in this engine never carry payloads.
type Level struct {
	cfg       LevelConfig
	directory *akitacache.DirectoryImpl
	stats     LevelStats
}

// NewLevel builds a Level from cfg.
func NewLevel(cfg LevelConfig) *Level {
	return &Level{
		cfg: cfg,
		directory: akitacache.NewDirectory(
			cfg.Sets,
			cfg.Associativity,
			cfg.BlockBytes,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Stats returns the level's access statistics.
func (l *Level) Stats() LevelStats {
	return l.stats
}

// Access looks up addr, allocating (and, if necessary, evicting) a
// line on a miss so that a subsequent access to the same address hits.
// It reports whether the access was a hit and the latency it
// contributes to the round trip.
func (l *Level) Access(addr uint64) (hit bool, latency uint64) {
	l.stats.Accesses++

	blockAddr := l.blockAlign(addr)

	block := l.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		l.stats.Hits++
		l.directory.Visit(block)

		return true, l.cfg.HitLatency
	}

	l.stats.Misses++
	l.fill(blockAddr)

	return false, l.cfg.MissLatency
}

// fill allocates a victim line for blockAddr, counting an eviction if
// the victim held valid data.
func (l *Level) fill(blockAddr uint64) {
	victim := l.directory.FindVictim(blockAddr)
	if victim == nil {
		return
	}

	if victim.IsValid {
		l.stats.Evictions++
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false

	l.directory.Visit(victim)
}

func (l *Level) blockAlign(addr uint64) uint64 {
	return (addr / uint64(l.cfg.BlockBytes)) * uint64(l.cfg.BlockBytes)
}

// Reset invalidates every line without counting evictions.
func (l *Level) Reset() {
	l.directory.Reset()
	l.stats = LevelStats{}
}
