// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package hierarchy

import (
	"cachexplorer/internal/prefetch"
	"cachexplorer/internal/simcache"

	mapset "github.com/deckarep/golang-set/v2"
)

// TimingStats accumulates the cycle cost of every access processed by the
// CacheSystem (spec §4.2).
type TimingStats struct {
	TotalCycles    uint64
	TotalAccesses  uint64
	L1Hits         uint64
	L2Hits         uint64
	L3Hits         uint64
	MemoryAccesses uint64
}

// AverageCycles returns TotalCycles/TotalAccesses, or 0 before any access.
func (t TimingStats) AverageCycles() float64 {
	if t.TotalAccesses == 0 {
		return 0
	}
	return float64(t.TotalCycles) / float64(t.TotalAccesses)
}

// SystemAccessResult is one read/write/fetch's full outcome (spec §4.2).
type SystemAccessResult struct {
	L1Hit            bool
	L2Hit            bool
	L3Hit            bool
	MemoryAccess     bool
	DTLBHit          bool
	ITLBHit          bool
	Writebacks       []uint64
	PrefetchesIssued int
	Cycles           uint64
}

// CacheSystem composes L1d, L1i, L2, an optional L3, a prefetcher, and the
// two TLBs into the single-core hierarchy engine of spec §4.2. It is also
// the shared L2/L3/prefetcher substrate internal/coherence drives for the
// multi-core case (spec §3 "Ownership": L2 and L3 are owned once by the
// engine itself).
type CacheSystem struct {
	L1D *simcache.CacheLevel
	L1I *simcache.CacheLevel
	L2  *simcache.CacheLevel
	L3  *simcache.CacheLevel // nil when absent

	Prefetcher *prefetch.Prefetcher
	DTLB       *simcache.TLB
	ITLB       *simcache.TLB

	Inclusion Inclusion
	Latency   LatencyConfig
	Timing    TimingStats

	prefetchedAddresses mapset.Set[uint64]
}

// New builds a CacheSystem from Config.
func New(cfg Config, pf *prefetch.Prefetcher) *CacheSystem {
	cs := &CacheSystem{
		L1D:                 simcache.NewCacheLevel(cfg.L1D),
		L1I:                 simcache.NewCacheLevel(cfg.L1I),
		L2:                  simcache.NewCacheLevel(cfg.L2),
		Prefetcher:          pf,
		DTLB:                simcache.NewTLB(cfg.DTLBEntries, cfg.PageShift),
		ITLB:                simcache.NewTLB(cfg.ITLBEntries, cfg.PageShift),
		Inclusion:           cfg.Inclusion,
		Latency:             cfg.Latency,
		prefetchedAddresses: mapset.NewThreadUnsafeSet[uint64](),
	}
	if cfg.L3 != nil {
		cs.L3 = simcache.NewCacheLevel(*cfg.L3)
	}
	return cs
}

// SetFastMode toggles 3C classification on every owned level.
func (cs *CacheSystem) SetFastMode(fast bool) {
	cs.L1D.SetFastMode(fast)
	cs.L1I.SetFastMode(fast)
	cs.L2.SetFastMode(fast)
	if cs.L3 != nil {
		cs.L3.SetFastMode(fast)
	}
}

// Read performs a load (spec §4.2).
func (cs *CacheSystem) Read(addr uint64, pc uint64) SystemAccessResult {
	return cs.accessHierarchy(addr, false, cs.L1D, cs.DTLB, pc)
}

// Write performs a store.
func (cs *CacheSystem) Write(addr uint64, pc uint64) SystemAccessResult {
	return cs.accessHierarchy(addr, true, cs.L1D, cs.DTLB, pc)
}

// Fetch performs an instruction fetch, against L1i.
func (cs *CacheSystem) Fetch(addr uint64, pc uint64) SystemAccessResult {
	return cs.accessHierarchy(addr, false, cs.L1I, cs.ITLB, pc)
}

// accessHierarchy is the fixed-order algorithm of spec §4.2: TLB -> L1 ->
// prefetch -> L2 -> L3 -> memory -> inclusion maintenance.
func (cs *CacheSystem) accessHierarchy(addr uint64, isWrite bool, l1 *simcache.CacheLevel, tlb *simcache.TLB, pc uint64) SystemAccessResult {
	var result SystemAccessResult
	cs.Timing.TotalAccesses++

	tlbHit := tlb.Access(addr)
	if l1 == cs.L1D {
		result.DTLBHit = tlbHit
	} else {
		result.ITLBHit = tlbHit
	}
	var cycles uint64
	if !tlbHit {
		cycles += cs.Latency.TLBMissPenalty
	}

	lineAddr := addr &^ (uint64(lineSizeOf(l1)) - 1)
	info := l1.Access(addr, isWrite)
	if info.Result == simcache.Hit {
		result.L1Hit = true
		cs.Timing.L1Hits++
		cycles += cs.Latency.L1Hit
		if cs.Prefetcher != nil && cs.prefetchedAddresses.Contains(lineAddr) {
			cs.Prefetcher.RecordUsefulPrefetch()
			cs.prefetchedAddresses.Remove(lineAddr)
		}
		result.Cycles = cycles
		cs.Timing.TotalCycles += cycles
		return result
	}

	// L1 miss: trigger the prefetcher, install its suggestions, and queue
	// any dirty eviction before touching L2 (spec §4.2 step 3).
	if cs.Prefetcher != nil {
		addrs := cs.Prefetcher.OnMiss(lineAddr, pc)
		result.PrefetchesIssued = len(addrs)
		cs.issuePrefetches(l1, addrs)
	}
	if info.HadEviction {
		cs.handleL1Eviction(l1, info)
		cs.creditUselessIfPrefetched(info.EvictedAddress)
	}
	if info.HadEviction && info.WasDirty && cs.Inclusion != Exclusive {
		result.Writebacks = append(result.Writebacks, info.EvictedAddress)
	}

	below := cs.accessBeyondL1(lineAddr, isWrite)
	result.L2Hit = below.l2Hit
	result.L3Hit = below.l3Hit
	result.MemoryAccess = below.memoryAccess
	result.Writebacks = append(result.Writebacks, below.writebacks...)
	cycles += below.cycles
	if below.l2Hit {
		cs.Timing.L2Hits++
	}
	if below.l3Hit {
		cs.Timing.L3Hits++
	}
	if below.memoryAccess {
		cs.Timing.MemoryAccesses++
	}

	l1.InstallWithState(lineAddr, below.installState, isWrite)

	if cs.Prefetcher != nil && cs.prefetchedAddresses.Contains(lineAddr) {
		// The line was prefetched earlier but is only being demand-filled
		// now, after having left L1 through some path other than this
		// level's own tracked eviction (an inclusive back-invalidation or,
		// in the multi-core case, a remote coherence invalidation) — the
		// prefetch arrived too early to still be resident when needed.
		cs.Prefetcher.RecordLate()
		cs.prefetchedAddresses.Remove(lineAddr)
	}

	result.Cycles = cycles
	cs.Timing.TotalCycles += cycles
	return result
}

// CreditPrefetchHit records a demand hit on addr if it is a still-
// outstanding prefetched line. Exposed for internal/coherence's per-core
// Read/Write, which manage their own L1 hit path instead of routing
// through accessHierarchy.
func (cs *CacheSystem) CreditPrefetchHit(addr uint64) {
	if cs.Prefetcher != nil && cs.prefetchedAddresses.Contains(addr) {
		cs.Prefetcher.RecordUsefulPrefetch()
		cs.prefetchedAddresses.Remove(addr)
	}
}

// CreditPrefetchEviction credits useless for addr if it is a still-
// outstanding prefetched line leaving L1 (capacity eviction or back-
// invalidation). Exposed for internal/coherence's per-core miss path.
func (cs *CacheSystem) CreditPrefetchEviction(addr uint64) {
	cs.creditUselessIfPrefetched(addr)
}

// CreditPrefetchLate records addr as late if it is still flagged as an
// outstanding prefetched line at the point a fresh demand fill installs
// it again — the prefetch already left L1 through a path that didn't run
// CreditPrefetchEviction (a remote core's coherence invalidation, in
// practice) before the demand needed it. Exposed for internal/coherence's
// per-core miss path.
func (cs *CacheSystem) CreditPrefetchLate(addr uint64) {
	if cs.Prefetcher != nil && cs.prefetchedAddresses.Contains(addr) {
		cs.Prefetcher.RecordLate()
		cs.prefetchedAddresses.Remove(addr)
	}
}

// issuePrefetches installs every prefetched address into L1 (and, to
// maintain the inclusion invariant, into L2/L3) when not already present,
// and remembers them for usefulness crediting (spec §4.3 "Insertion
// policy").
func (cs *CacheSystem) issuePrefetches(l1 *simcache.CacheLevel, addrs []uint64) {
	for _, a := range addrs {
		if l1.Probe(a) {
			continue
		}
		info := l1.Install(a, false)
		if info.HadEviction {
			cs.creditUselessIfPrefetched(info.EvictedAddress)
		}
		cs.prefetchedAddresses.Add(a)
		if cs.L2 != nil && !cs.L2.Probe(a) {
			cs.L2.Install(a, false)
		}
		if cs.L3 != nil && !cs.L3.Probe(a) {
			cs.L3.Install(a, false)
		}
	}
}

// creditUselessIfPrefetched credits the prefetcher's useless counter and
// drops the bookkeeping entry when a tracked prefetched line leaves L1
// without ever having served a demand hit (spec §4.3 "a later eviction
// without a hit credits useless").
func (cs *CacheSystem) creditUselessIfPrefetched(addr uint64) {
	if cs.Prefetcher != nil && cs.prefetchedAddresses.Contains(addr) {
		cs.Prefetcher.RecordUselessPrefetch()
		cs.prefetchedAddresses.Remove(addr)
	}
}

// handleL1Eviction propagates a valid L1 eviction down the hierarchy
// according to the inclusion policy: Exclusive pushes the victim into L2
// as a fill; Inclusive/NINE leave it to the writeback queue (handled by
// the caller appending to result.Writebacks).
func (cs *CacheSystem) handleL1Eviction(l1 *simcache.CacheLevel, info simcache.AccessInfo) {
	if cs.Inclusion == Exclusive {
		cs.L2.InstallWithState(info.EvictedAddress, simcache.Exclusive, info.WasDirty)
	}
}

type belowL1 struct {
	l2Hit        bool
	l3Hit        bool
	memoryAccess bool
	writebacks   []uint64
	cycles       uint64
	installState simcache.CoherenceState
}

// BeyondL1Result is AccessBeyondL1's exported view of belowL1, used by
// internal/coherence to drive the shared L2/L3 substrate directly when it
// needs to pick the resulting coherence state itself instead of the
// single-core default of Exclusive.
type BeyondL1Result struct {
	L2Hit        bool
	L3Hit        bool
	MemoryAccess bool
	Writebacks   []uint64
	Cycles       uint64
}

// AccessBeyondL1 runs spec §4.2 steps 4-6 (L2 -> L3 -> memory) against
// this CacheSystem's shared L2/L3, without touching any L1. Callers that
// need a specific resulting MESI state (internal/coherence) install into
// their own per-core L1 themselves using the returned hit/miss outcome.
func (cs *CacheSystem) AccessBeyondL1(lineAddr uint64, isWrite bool) BeyondL1Result {
	b := cs.accessBeyondL1(lineAddr, isWrite)
	return BeyondL1Result{
		L2Hit:        b.l2Hit,
		L3Hit:        b.l3Hit,
		MemoryAccess: b.memoryAccess,
		Writebacks:   b.writebacks,
		Cycles:       b.cycles,
	}
}

// IssuePrefetches installs addrs into l1 (and, to maintain inclusion,
// into L2/L3) when not already present, crediting the prefetcher. Exposed
// for internal/coherence's per-core prefetch handling.
func (cs *CacheSystem) IssuePrefetches(l1 *simcache.CacheLevel, addrs []uint64) {
	cs.issuePrefetches(l1, addrs)
}

// accessBeyondL1 implements spec §4.2 steps 4-6: L2 lookup, optional L3
// lookup, and the memory fallback, each propagating evictions per the
// inclusion policy.
func (cs *CacheSystem) accessBeyondL1(lineAddr uint64, isWrite bool) belowL1 {
	var out belowL1
	out.installState = simcache.Exclusive

	l2Info := cs.L2.Access(lineAddr, isWrite)
	if l2Info.Result == simcache.Hit {
		out.l2Hit = true
		out.cycles = cs.Latency.L2Hit
		if cs.Inclusion == Exclusive {
			cs.L2.Invalidate(lineAddr)
		}
		return out
	}

	if l2Info.HadEviction {
		cs.handleL2Eviction(l2Info, &out)
	}
	if cs.Inclusion == Exclusive {
		// the demand fill lands in L1 only
		cs.L2.Invalidate(lineAddr)
	}

	if cs.L3 == nil {
		out.memoryAccess = true
		out.cycles = cs.Latency.Memory
		return out
	}

	l3Info := cs.L3.Access(lineAddr, isWrite)
	if l3Info.Result == simcache.Hit {
		out.l3Hit = true
		out.cycles = cs.Latency.L3Hit
		if cs.Inclusion == Exclusive {
			cs.L3.Invalidate(lineAddr)
		}
		return out
	}
	if cs.Inclusion == Exclusive {
		cs.L3.Invalidate(lineAddr)
	}

	out.memoryAccess = true
	out.cycles = cs.Latency.Memory
	if cs.Inclusion == Inclusive && l3Info.HadEviction {
		evicted := l3Info.EvictedAddress
		cs.L2.Invalidate(evicted)
		cs.L1D.Invalidate(evicted)
		cs.L1I.Invalidate(evicted)
		cs.creditUselessIfPrefetched(evicted)
	}
	if l3Info.HadEviction && l3Info.WasDirty && cs.Inclusion != Exclusive {
		out.writebacks = append(out.writebacks, l3Info.EvictedAddress)
	}
	return out
}

// handleL2Eviction propagates an L2 victim per the inclusion policy: under
// Exclusive it is pushed down into L3 as a fill (carrying its dirtiness
// through, per spec §9's note on handle_exclusive_eviction); otherwise a
// dirty victim is queued as a writeback at whichever boundary it reaches.
func (cs *CacheSystem) handleL2Eviction(info simcache.AccessInfo, out *belowL1) {
	if cs.Inclusion == Inclusive {
		// L2 no longer holds this line; L1 must not either, or the
		// inclusion invariant (spec §8) breaks.
		cs.L1D.Invalidate(info.EvictedAddress)
		cs.L1I.Invalidate(info.EvictedAddress)
		cs.creditUselessIfPrefetched(info.EvictedAddress)
	}
	if cs.Inclusion == Exclusive {
		if cs.L3 != nil {
			cs.L3.InstallWithState(info.EvictedAddress, simcache.Exclusive, info.WasDirty)
		} else if info.WasDirty {
			out.writebacks = append(out.writebacks, info.EvictedAddress)
		}
		return
	}
	if info.WasDirty {
		if cs.L3 != nil {
			cs.L3.MarkDirty(info.EvictedAddress)
		} else {
			out.writebacks = append(out.writebacks, info.EvictedAddress)
		}
	}
}

func lineSizeOf(l *simcache.CacheLevel) int { return l.Config.LineSize }
