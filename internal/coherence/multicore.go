// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package coherence

import (
	"cachexplorer/internal/hierarchy"
	"cachexplorer/internal/prefetch"
	"cachexplorer/internal/simcache"

	mapset "github.com/deckarep/golang-set/v2"
)

const lineAccessLedgerCap = 64 // spec §5 resource bound: cap + oldest-first drop

// LineAccess is one recorded touch of a cache line, used by the false-
// sharing detector (spec §3 "MultiCore engine state").
type LineAccess struct {
	Thread     uint32
	ByteOffset uint32
	IsWrite    bool
	File       string
	Line       uint32
}

// CoreResult is what MultiCoreEngine.Read/Write report back to the trace
// processor, a multi-core analogue of hierarchy.SystemAccessResult.
type CoreResult struct {
	Core             int
	L1Hit            bool
	L2Hit            bool
	L3Hit            bool
	MemoryAccess     bool
	Writebacks       []uint64
	PrefetchesIssued int
	Cycles           uint64
}

// MultiCoreEngine is the multi-core coordinator of spec §4.5: thread->
// core binding, per-core L1+prefetcher+TLB, a shared L2/L3, a MESI
// directory, and the false-sharing ledger.
type MultiCoreEngine struct {
	numCores     int
	threadToCore map[uint32]int
	nextCore     int

	cores []*hierarchy.CacheSystem // per-core private L1d/L1i/TLB/prefetcher
	l1ds  []*simcache.CacheLevel   // same L1d pointers, indexed for the directory

	sharedL2 *simcache.CacheLevel
	sharedL3 *simcache.CacheLevel

	directory *Directory

	lineSize   int
	lineAccesses      map[uint64][]LineAccess
	falseSharingLines mapset.Set[uint64]

	coherenceInvalidations uint64
	timing                 hierarchy.TimingStats
}

// New builds a MultiCoreEngine with numCores cores, each running its own
// copy of perCoreCfg's L1d/L1i/TLB geometry but sharing one L2 (and,
// when perCoreCfg.L3 is non-nil, one L3) — spec §3 "Ownership": "The
// multi-core engine owns per-core L1 and prefetcher arrays; L2 and L3 are
// owned once by the engine itself."
func New(numCores int, perCoreCfg hierarchy.Config, pf prefetch.Policy, degree int) *MultiCoreEngine {
	sharedL2 := simcache.NewCacheLevel(perCoreCfg.L2)
	var sharedL3 *simcache.CacheLevel
	if perCoreCfg.L3 != nil {
		sharedL3 = simcache.NewCacheLevel(*perCoreCfg.L3)
	}

	m := &MultiCoreEngine{
		numCores:          numCores,
		threadToCore:      make(map[uint32]int),
		cores:             make([]*hierarchy.CacheSystem, numCores),
		l1ds:              make([]*simcache.CacheLevel, numCores),
		sharedL2:          sharedL2,
		sharedL3:          sharedL3,
		lineSize:          perCoreCfg.L1D.LineSize,
		lineAccesses:      make(map[uint64][]LineAccess),
		falseSharingLines: mapset.NewThreadUnsafeSet[uint64](),
	}
	for i := 0; i < numCores; i++ {
		cs := hierarchy.New(perCoreCfg, prefetch.New(pf, degree, perCoreCfg.L1D.LineSize))
		cs.L2 = sharedL2
		cs.L3 = sharedL3
		m.cores[i] = cs
		m.l1ds[i] = cs.L1D
	}
	m.directory = NewDirectory(m.l1ds)
	return m
}

// SetFastMode toggles 3C classification on every owned level across every
// core plus the shared L2/L3.
func (m *MultiCoreEngine) SetFastMode(fast bool) {
	for _, cs := range m.cores {
		cs.SetFastMode(fast)
	}
}

// CoherenceInvalidations is the running count of remote-core invalidate/
// downgrade snoops (spec §4.5 "Counters").
func (m *MultiCoreEngine) CoherenceInvalidations() uint64 { return m.directory.Invalidations() }

// FalseSharingLines returns every line address flagged by the false-
// sharing detector.
func (m *MultiCoreEngine) FalseSharingLines() []uint64 { return m.falseSharingLines.ToSlice() }

// Timing returns the engine-wide accumulated timing stats.
func (m *MultiCoreEngine) Timing() hierarchy.TimingStats { return m.timing }

// CoreForThread resolves (and, on first sight, assigns round-robin) the
// core id for a thread id (spec §4.5 step 1 / §9 "Multi-core thread
// binding").
func (m *MultiCoreEngine) CoreForThread(thread uint32) int {
	if core, ok := m.threadToCore[thread]; ok {
		return core
	}
	core := m.nextCore % m.numCores
	m.threadToCore[thread] = core
	m.nextCore++
	return core
}

func (m *MultiCoreEngine) recordLineAccess(lineAddr uint64, thread uint32, byteOffset uint32, isWrite bool, file string, line uint32) {
	if m.falseSharingLines.Contains(lineAddr) {
		return
	}
	ledger := m.lineAccesses[lineAddr]
	ledger = append(ledger, LineAccess{Thread: thread, ByteOffset: byteOffset, IsWrite: isWrite, File: file, Line: line})
	if len(ledger) > lineAccessLedgerCap {
		ledger = ledger[len(ledger)-lineAccessLedgerCap:]
	}
	m.lineAccesses[lineAddr] = ledger

	threads := make(map[uint32]struct{})
	offsets := make(map[uint32]struct{})
	hasWrite := false
	for _, a := range ledger {
		threads[a.Thread] = struct{}{}
		offsets[a.ByteOffset] = struct{}{}
		hasWrite = hasWrite || a.IsWrite
	}
	if len(threads) >= 2 && len(offsets) >= 2 && hasWrite {
		m.falseSharingLines.Add(lineAddr)
	}
}

// Read performs a load on behalf of thread, tracking false sharing and
// driving the directory's read-snoop path (spec §4.5).
func (m *MultiCoreEngine) Read(addr uint64, thread uint32, file string, line uint32) CoreResult {
	core := m.CoreForThread(thread)
	lineAddr := addr &^ (uint64(m.lineSize) - 1)
	m.recordLineAccess(lineAddr, thread, uint32(addr-lineAddr), false, file, line)
	cs := m.cores[core]

	cs.DTLB.Access(addr)
	if cs.L1D.Probe(lineAddr) {
		cs.L1D.Access(addr, false)
		cs.CreditPrefetchHit(lineAddr)
		m.timing.TotalAccesses++
		m.timing.L1Hits++
		cycles := cs.Latency.L1Hit
		m.timing.TotalCycles += cycles
		return CoreResult{Core: core, L1Hit: true, Cycles: cycles}
	}

	result := CoreResult{Core: core}
	addrs := cs.Prefetcher.OnMiss(lineAddr, addr)
	result.PrefetchesIssued = len(addrs)
	cs.IssuePrefetches(cs.L1D, addrs)

	snoop := m.directory.RequestRead(core, lineAddr)
	state := simcache.Exclusive
	if snoop.Found {
		state = simcache.Shared
	}

	below := cs.AccessBeyondL1(lineAddr, false)
	installInfo := cs.L1D.InstallWithState(lineAddr, state, false)
	if installInfo.HadEviction {
		m.directory.EvictLine(core, installInfo.EvictedAddress)
		cs.CreditPrefetchEviction(installInfo.EvictedAddress)
	}
	cs.CreditPrefetchLate(lineAddr)

	result.L2Hit = below.L2Hit
	result.L3Hit = below.L3Hit
	result.MemoryAccess = below.MemoryAccess
	result.Writebacks = below.Writebacks
	result.Cycles = below.Cycles

	m.timing.TotalAccesses++
	if below.L2Hit {
		m.timing.L2Hits++
	}
	if below.L3Hit {
		m.timing.L3Hits++
	}
	if below.MemoryAccess {
		m.timing.MemoryAccesses++
	}
	m.timing.TotalCycles += below.Cycles
	return result
}

// Write performs a store on behalf of thread, forcing the line Modified
// and invalidating remote copies through the directory before the local
// write lands (spec §4.5 step 5: "this must also be reflected in the
// directory by calling request_exclusive before the cache access").
func (m *MultiCoreEngine) Write(addr uint64, thread uint32, file string, line uint32) CoreResult {
	core := m.CoreForThread(thread)
	lineAddr := addr &^ (uint64(m.lineSize) - 1)
	m.recordLineAccess(lineAddr, thread, uint32(addr-lineAddr), true, file, line)
	cs := m.cores[core]

	cs.DTLB.Access(addr)
	result := CoreResult{Core: core}

	if cs.L1D.Probe(lineAddr) {
		m.directory.RequestExclusive(core, lineAddr)
		cs.L1D.Access(addr, true)
		cs.L1D.UpgradeToModified(lineAddr)
		cs.CreditPrefetchHit(lineAddr)
		m.timing.TotalAccesses++
		m.timing.L1Hits++
		m.timing.TotalCycles += cs.Latency.L1Hit
		result.L1Hit = true
		result.Cycles = cs.Latency.L1Hit
		return result
	}

	addrs := cs.Prefetcher.OnMiss(lineAddr, addr)
	result.PrefetchesIssued = len(addrs)
	cs.IssuePrefetches(cs.L1D, addrs)

	m.directory.RequestExclusive(core, lineAddr)
	below := cs.AccessBeyondL1(lineAddr, true)
	installInfo := cs.L1D.InstallWithState(lineAddr, simcache.Modified, true)
	if installInfo.HadEviction {
		m.directory.EvictLine(core, installInfo.EvictedAddress)
		cs.CreditPrefetchEviction(installInfo.EvictedAddress)
	}
	cs.CreditPrefetchLate(lineAddr)

	result.L2Hit = below.L2Hit
	result.L3Hit = below.L3Hit
	result.MemoryAccess = below.MemoryAccess
	result.Writebacks = below.Writebacks
	result.Cycles = below.Cycles

	m.timing.TotalAccesses++
	if below.L2Hit {
		m.timing.L2Hits++
	}
	if below.L3Hit {
		m.timing.L3Hits++
	}
	if below.MemoryAccess {
		m.timing.MemoryAccesses++
	}
	m.timing.TotalCycles += below.Cycles
	return result
}

// Fetch performs an instruction fetch on behalf of thread. Instruction
// streams are treated as read-only and not run through the coherence
// directory: spec §4.4/§4.5 scope coherence tracking to data accesses, and
// an I-side MESI model would never observe a Modified transition in
// practice, so this routes straight to the core's private L1i/ITLB and the
// shared L2/L3, mirroring hierarchy.CacheSystem.Fetch.
func (m *MultiCoreEngine) Fetch(addr uint64, thread uint32) CoreResult {
	core := m.CoreForThread(thread)
	cs := m.cores[core]
	lineAddr := addr &^ (uint64(m.lineSize) - 1)

	cs.ITLB.Access(addr)
	result := CoreResult{Core: core}
	if cs.L1I.Probe(lineAddr) {
		cs.L1I.Access(addr, false)
		cs.CreditPrefetchHit(lineAddr)
		result.L1Hit = true
		result.Cycles = cs.Latency.L1Hit
		m.timing.TotalAccesses++
		m.timing.L1Hits++
		m.timing.TotalCycles += result.Cycles
		return result
	}

	addrs := cs.Prefetcher.OnMiss(lineAddr, addr)
	result.PrefetchesIssued = len(addrs)
	cs.IssuePrefetches(cs.L1I, addrs)

	below := cs.AccessBeyondL1(lineAddr, false)
	installInfo := cs.L1I.InstallWithState(lineAddr, simcache.Exclusive, false)
	if installInfo.HadEviction {
		cs.CreditPrefetchEviction(installInfo.EvictedAddress)
	}
	cs.CreditPrefetchLate(lineAddr)

	result.L2Hit = below.L2Hit
	result.L3Hit = below.L3Hit
	result.MemoryAccess = below.MemoryAccess
	result.Writebacks = below.Writebacks
	result.Cycles = below.Cycles

	m.timing.TotalAccesses++
	if below.L2Hit {
		m.timing.L2Hits++
	}
	if below.L3Hit {
		m.timing.L3Hits++
	}
	if below.MemoryAccess {
		m.timing.MemoryAccesses++
	}
	m.timing.TotalCycles += below.Cycles
	return result
}

// L1D returns the per-core L1 data cache, for reporting/visualization.
func (m *MultiCoreEngine) L1D(core int) *simcache.CacheLevel { return m.l1ds[core] }

// L1I returns the per-core L1 instruction cache, for reporting/visualization.
func (m *MultiCoreEngine) L1I(core int) *simcache.CacheLevel { return m.cores[core].L1I }

// SharedL2 returns the hierarchy-wide shared L2.
func (m *MultiCoreEngine) SharedL2() *simcache.CacheLevel { return m.sharedL2 }

// SharedL3 returns the hierarchy-wide shared L3, or nil if absent.
func (m *MultiCoreEngine) SharedL3() *simcache.CacheLevel { return m.sharedL3 }

// NumCores returns the configured core count.
func (m *MultiCoreEngine) NumCores() int { return m.numCores }

// PrefetchStats sums every per-core prefetcher's accounting into one
// total, since the shared L2/L3 is fed by numCores independent
// prefetchers rather than one (spec §4.3 is phrased per-core).
func (m *MultiCoreEngine) PrefetchStats() prefetch.Stats {
	var total prefetch.Stats
	for _, cs := range m.cores {
		s := cs.Prefetcher.Stats()
		total.Issued += s.Issued
		total.Useful += s.Useful
		total.Late += s.Late
		total.Useless += s.Useless
	}
	return total
}

// Threads returns every thread id observed so far.
func (m *MultiCoreEngine) Threads() []uint32 {
	out := make([]uint32, 0, len(m.threadToCore))
	for t := range m.threadToCore {
		out = append(out, t)
	}
	return out
}
