// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package trace

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// SoftwarePrefetchStats tracks Prefetch-op trace events, distinct from the
// hardware Prefetcher's own accounting in internal/prefetch (spec §4.6
// "software prefetches issued/useful/redundant/evicted").
type SoftwarePrefetchStats struct {
	Issued   uint64
	Useful   uint64
	Redundant uint64
	Evicted  uint64
}

// VectorStats rolls up vector load/store event counts and bytes.
type VectorStats struct {
	Loads      uint64
	Stores     uint64
	LoadBytes  uint64
	StoreBytes uint64
}

// AtomicStats rolls up atomic RMW/CAS event counts.
type AtomicStats struct {
	RMW uint64
	CAS uint64
}

// MemIntrinsicStats rolls up memcpy/memset/memmove event counts and bytes.
type MemIntrinsicStats struct {
	MemcpyCount  uint64
	MemcpyBytes  uint64
	MemsetCount  uint64
	MemsetBytes  uint64
	MemmoveCount uint64
	MemmoveBytes uint64
}

// Processor drives an Engine from a stream of Events, splitting byte
// ranges into line accesses and aggregating per-source-line statistics
// (spec §4.6).
type Processor struct {
	engine Engine

	sources map[Source]*SourceStats
	events  uint64

	SoftwarePrefetch SoftwarePrefetchStats
	Vector           VectorStats
	Atomic           AtomicStats
	MemIntrinsic     MemIntrinsicStats

	softwarePrefetched mapset.Set[uint64]
}

// NewProcessor builds a Processor driving engine.
func NewProcessor(engine Engine) *Processor {
	return &Processor{
		engine:             engine,
		sources:            make(map[Source]*SourceStats),
		softwarePrefetched: mapset.NewThreadUnsafeSet[uint64](),
	}
}

// SetFastMode disables 3C tracking at every level (spec §4.6).
func (p *Processor) SetFastMode(fast bool) { p.engine.SetFastMode(fast) }

// EventsProcessed returns the count of events dispatched via Process.
func (p *Processor) EventsProcessed() uint64 { return p.events }

type accessKind int

const (
	accessRead accessKind = iota
	accessWrite
	accessFetch
)

func kindOf(op Op) accessKind {
	switch op {
	case InstFetch, BBEntry:
		return accessFetch
	case Store, AtomicRMW, AtomicCAS, VectorStore, MemCopy, MemSet, MemMove:
		return accessWrite
	default:
		return accessRead
	}
}

// Process fragments ev's byte range into line accesses and drives the
// engine, aggregating SourceStats and the auxiliary roll-up counters (spec
// §4.6).
func (p *Processor) Process(ev Event) {
	p.events++
	p.rollup(ev)

	kind := kindOf(ev.Op)
	lineSize := p.engine.DataLineSize()
	if kind == accessFetch {
		lineSize = p.engine.InstructionLineSize()
	}

	size := ev.Size
	if size == 0 {
		size = 1
	}
	startLine := ev.Address &^ (uint64(lineSize) - 1)
	endAddr := ev.Address + uint64(size) - 1
	endLine := endAddr &^ (uint64(lineSize) - 1)

	for lineAddr := startLine; ; lineAddr += uint64(lineSize) {
		p.dispatch(ev, kind, lineAddr)
		if lineAddr >= endLine {
			break
		}
	}
}

func (p *Processor) dispatch(ev Event, kind accessKind, lineAddr uint64) {
	var hit bool
	switch kind {
	case accessFetch:
		hit = p.engine.Fetch(lineAddr, ev.Thread, ev.PC)
	case accessWrite:
		hit = p.engine.Write(lineAddr, ev.Thread, ev.PC, ev.Source.File, ev.Source.Line)
	default:
		hit = p.engine.Read(lineAddr, ev.Thread, ev.PC, ev.Source.File, ev.Source.Line)
	}

	if ev.Op == Prefetch {
		p.SoftwarePrefetch.Issued++
		if hit {
			p.SoftwarePrefetch.Redundant++
		} else {
			p.softwarePrefetched.Add(lineAddr)
		}
	} else if p.softwarePrefetched.Contains(lineAddr) {
		if hit {
			p.SoftwarePrefetch.Useful++
		}
		p.softwarePrefetched.Remove(lineAddr)
	}

	if ev.Source.Empty() {
		return
	}
	stats, ok := p.sources[ev.Source]
	if !ok {
		stats = newSourceStats(ev.Source.File, ev.Source.Line)
		p.sources[ev.Source] = stats
	}
	if hit {
		stats.Hits++
	} else {
		stats.Misses++
	}
	stats.Threads.Add(ev.Thread)
}

func (p *Processor) rollup(ev Event) {
	switch ev.Op {
	case VectorLoad:
		p.Vector.Loads++
		p.Vector.LoadBytes += uint64(ev.Size)
	case VectorStore:
		p.Vector.Stores++
		p.Vector.StoreBytes += uint64(ev.Size)
	case AtomicRMW:
		p.Atomic.RMW++
	case AtomicCAS:
		p.Atomic.CAS++
	case MemCopy:
		p.MemIntrinsic.MemcpyCount++
		p.MemIntrinsic.MemcpyBytes += uint64(ev.Size)
	case MemSet:
		p.MemIntrinsic.MemsetCount++
		p.MemIntrinsic.MemsetBytes += uint64(ev.Size)
	case MemMove:
		p.MemIntrinsic.MemmoveCount++
		p.MemIntrinsic.MemmoveBytes += uint64(ev.Size)
	}
}

// GetHotLines returns SourceStats sorted by misses descending, capped at
// limit (spec §4.6). limit <= 0 means unbounded.
func (p *Processor) GetHotLines(limit int) []*SourceStats {
	return hotLines(p.sources, limit)
}

// SourceCount returns how many distinct (file, line) pairs have been seen.
func (p *Processor) SourceCount() int { return len(p.sources) }
