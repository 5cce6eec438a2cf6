// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package coherence implements the MESI coherence directory and the
multi-core coordinator of spec §4.4/§4.5: thread-to-core binding, snoop-
driven invalidation/downgrade, and false-sharing detection.
*/
package coherence

import (
	"cachexplorer/internal/simcache"

	mapset "github.com/deckarep/golang-set/v2"
)

// SnoopResult is the directory's answer to a read/exclusive request (spec
// §4.4).
type SnoopResult struct {
	Found          bool
	WasModified    bool
	DataSourceCore int
}

// Directory tracks, per cache-line address, which cores share it and
// which (if any) owns it Modified. It references each core's L1d by
// index into l1s rather than by an owning pointer (spec §9 "Pointer
// graphs in source vs ownership model") — the directory never owns a
// cache, it only indexes into a slice the MultiCoreEngine owns.
type Directory struct {
	l1s []*simcache.CacheLevel

	sharers map[uint64]mapset.Set[int]
	owner   map[uint64]int

	invalidations uint64
}

// NewDirectory builds a Directory that can snoop into l1s (one entry per
// core, indexed by core id).
func NewDirectory(l1s []*simcache.CacheLevel) *Directory {
	return &Directory{
		l1s:     l1s,
		sharers: make(map[uint64]mapset.Set[int]),
		owner:   make(map[uint64]int),
	}
}

// Invalidations returns how many remote-core invalidate/downgrade snoops
// this directory has issued, the basis for coherence_invalidations (spec
// §4.5 "Counters").
func (d *Directory) Invalidations() uint64 { return d.invalidations }

func (d *Directory) sharerSet(addr uint64) mapset.Set[int] {
	s, ok := d.sharers[addr]
	if !ok {
		s = mapset.NewThreadUnsafeSet[int]()
		d.sharers[addr] = s
	}
	return s
}

// RequestRead implements spec §4.4's request_read: if a remote owner
// exists it is downgraded M->S and ownership is cleared; the requester is
// always added to sharers.
func (d *Directory) RequestRead(core int, addr uint64) SnoopResult {
	var res SnoopResult
	if ownerCore, ok := d.owner[addr]; ok {
		res.Found = true
		if ownerCore != core {
			res.WasModified = true
			res.DataSourceCore = ownerCore
			if ownerCore >= 0 && ownerCore < len(d.l1s) && d.l1s[ownerCore] != nil {
				d.l1s[ownerCore].DowngradeToShared(addr)
				d.invalidations++
			}
		}
		delete(d.owner, addr)
	} else if s, ok := d.sharers[addr]; ok && s.Cardinality() > 0 {
		res.Found = true
		res.DataSourceCore = -1
	}
	d.sharerSet(addr).Add(core)
	return res
}

// RequestExclusive implements spec §4.4's request_exclusive: every other
// sharer is invalidated, and core becomes the sole owner in Modified.
func (d *Directory) RequestExclusive(core int, addr uint64) SnoopResult {
	var res SnoopResult
	others := d.sharerSet(addr).Clone()
	others.Remove(core)
	if others.Cardinality() > 0 {
		res.Found = true
	}
	for c := range others.Iter() {
		if c >= 0 && c < len(d.l1s) && d.l1s[c] != nil {
			d.l1s[c].Invalidate(addr)
			d.invalidations++
		}
	}
	d.owner[addr] = core
	d.sharers[addr] = mapset.NewThreadUnsafeSet[int](core)
	return res
}

// EvictLine removes core from addr's sharer/owner bookkeeping, used when a
// core's own cache level evicts the line on its own (no remote request
// involved).
func (d *Directory) EvictLine(core int, addr uint64) {
	if s, ok := d.sharers[addr]; ok {
		s.Remove(core)
		if s.Cardinality() == 0 {
			delete(d.sharers, addr)
		}
	}
	if ownerCore, ok := d.owner[addr]; ok && ownerCore == core {
		delete(d.owner, addr)
	}
}
