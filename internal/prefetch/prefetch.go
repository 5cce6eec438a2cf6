// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package prefetch implements the pattern-detecting prefetcher described in
spec §4.3: next-line, stream, stride, adaptive, and Intel-like policies,
plus usefulness accounting. It has no knowledge of the cache hierarchy; the
hierarchy engine is responsible for installing the addresses this package
emits and for crediting useful/useless prefetches back through Record*.
*/
package prefetch

import "container/list"

// Policy selects which pattern-detection algorithm on_miss dispatches to.
type Policy int

const (
	PolicyNone Policy = iota
	PolicyNextLine
	PolicyStream
	PolicyStride
	PolicyAdaptive
	PolicyIntel
)

func (p Policy) String() string {
	switch p {
	case PolicyNextLine:
		return "next"
	case PolicyStream:
		return "stream"
	case PolicyStride:
		return "stride"
	case PolicyAdaptive:
		return "adaptive"
	case PolicyIntel:
		return "intel"
	default:
		return "none"
	}
}

// ParsePolicy maps a CLI flag value to a Policy. Unrecognized names fall
// back to PolicyNone with ok=false, leaving the usage-error decision to
// the CLI layer (spec §7.5).
func ParsePolicy(name string) (Policy, bool) {
	switch name {
	case "none", "":
		return PolicyNone, true
	case "next":
		return PolicyNextLine, true
	case "stream":
		return PolicyStream, true
	case "stride":
		return PolicyStride, true
	case "adaptive":
		return PolicyAdaptive, true
	case "intel":
		return PolicyIntel, true
	default:
		return PolicyNone, false
	}
}

const (
	streamTableSize = 16
	strideTableCap  = 4096 // spec §9: bounded LRU, not the reference's unbounded map
	confidenceMax   = 8
	confidenceThreshold = 2
	pageShift       = 12
)

// Stats is PrefetchStats from spec §4.3.
type Stats struct {
	Issued uint64
	Useful uint64
	Late   uint64
	Useless uint64
}

// Accuracy returns Useful/Issued, or 0 if nothing has been issued yet.
func (s Stats) Accuracy() float64 {
	if s.Issued == 0 {
		return 0
	}
	return float64(s.Useful) / float64(s.Issued)
}

type streamEntry struct {
	page       uint64
	startAddr  uint64
	lastAddr   uint64
	direction  int64
	confidence int
	valid      bool
}

type strideEntry struct {
	lastAddr   uint64
	stride     int64
	confidence int
}

// Prefetcher holds one stream table and one (bounded, LRU-capped) stride
// table, plus the degree and policy configured for the run.
type Prefetcher struct {
	policy   Policy
	degree   int
	lineSize int

	streamTable []streamEntry // fixed 16 entries, LRU-by-use via streamLast stamps
	streamClock uint64
	streamLast  [streamTableSize]uint64

	strideTable map[uint64]*list.Element // keyed by pc
	strideLRU   *list.List

	stats Stats
}

type strideLRUEntry struct {
	pc    uint64
	entry strideEntry
}

// New constructs a Prefetcher for the given policy/degree/line size.
func New(policy Policy, degree int, lineSize int) *Prefetcher {
	if degree <= 0 {
		degree = 1
	}
	return &Prefetcher{
		policy:      policy,
		degree:      degree,
		lineSize:    lineSize,
		streamTable: make([]streamEntry, streamTableSize),
		strideTable: make(map[uint64]*list.Element),
		strideLRU:   list.New(),
	}
}

// Stats returns a copy of the running accuracy counters.
func (p *Prefetcher) Stats() Stats { return p.stats }

// recordIssued credits n newly-issued prefetch addresses.
func (p *Prefetcher) recordIssued(n int) { p.stats.Issued += uint64(n) }

// RecordUsefulPrefetch credits a demand hit on a previously prefetched
// line (spec §4.2 step 2: "credit the prefetcher with record_useful_prefetch").
func (p *Prefetcher) RecordUsefulPrefetch() { p.stats.Useful++ }

// RecordUselessPrefetch credits an eviction of a prefetched line that was
// never demand-hit.
func (p *Prefetcher) RecordUselessPrefetch() { p.stats.Useless++ }

// RecordLate credits a prefetch that completed only after the demand
// access that wanted it already missed.
func (p *Prefetcher) RecordLate() { p.stats.Late++ }

// OnMiss dispatches to the configured policy and returns the line-aligned
// addresses to prefetch (spec §4.3). lineAddr must already be line-
// aligned; pc is the instruction address driving the stride table.
func (p *Prefetcher) OnMiss(lineAddr uint64, pc uint64) []uint64 {
	var addrs []uint64
	switch p.policy {
	case PolicyNone:
		return nil
	case PolicyNextLine:
		addrs = []uint64{lineAddr + uint64(p.lineSize)}
	case PolicyStream:
		addrs = p.streamPrefetch(lineAddr)
	case PolicyStride:
		addrs = p.stridePrefetch(lineAddr, pc)
	case PolicyAdaptive:
		addrs = p.adaptivePrefetch(lineAddr, pc)
	case PolicyIntel:
		addrs = p.intelPrefetch(lineAddr, pc)
	}
	if len(addrs) > 0 {
		p.recordIssued(len(addrs))
	}
	return addrs
}

func (p *Prefetcher) streamPrefetch(lineAddr uint64) []uint64 {
	page := lineAddr >> pageShift
	idx := p.findOrAllocStream(page)
	e := &p.streamTable[idx]

	if !e.valid {
		*e = streamEntry{page: page, startAddr: lineAddr, lastAddr: lineAddr, valid: true}
		return nil
	}

	line := uint64(p.lineSize)
	switch {
	case e.lastAddr+line == lineAddr:
		e.direction = 1
		if e.confidence < confidenceMax {
			e.confidence++
		}
	case e.lastAddr-line == lineAddr:
		e.direction = -1
		if e.confidence < confidenceMax {
			e.confidence++
		}
	default:
		e.startAddr = lineAddr
		e.direction = 0
		e.confidence = 0
	}
	e.lastAddr = lineAddr

	if e.confidence < confidenceThreshold || e.direction == 0 {
		return nil
	}
	out := make([]uint64, 0, p.degree)
	for k := 1; k <= p.degree; k++ {
		addr := lineAddr + uint64(e.direction)*uint64(k)*line
		if addr>>pageShift != page {
			break
		}
		out = append(out, addr)
	}
	return out
}

func (p *Prefetcher) findOrAllocStream(page uint64) int {
	p.streamClock++
	for i := range p.streamTable {
		if p.streamTable[i].valid && p.streamTable[i].page == page {
			p.streamLast[i] = p.streamClock
			return i
		}
	}
	// allocate: prefer an invalid slot, else evict the least-recently-used.
	victim := 0
	oldest := p.streamLast[0]
	for i := range p.streamTable {
		if !p.streamTable[i].valid {
			victim = i
			break
		}
		if p.streamLast[i] < oldest {
			oldest = p.streamLast[i]
			victim = i
		}
	}
	p.streamTable[victim] = streamEntry{}
	p.streamLast[victim] = p.streamClock
	return victim
}

func (p *Prefetcher) stridePrefetch(lineAddr uint64, pc uint64) []uint64 {
	entry, ok := p.getStride(pc)
	delta := int64(0)
	if ok {
		delta = int64(lineAddr) - int64(entry.lastAddr)
	}

	var confidence int
	var stride int64
	if ok && entry.stride == delta && delta != 0 {
		confidence = entry.confidence
		if confidence < confidenceMax {
			confidence++
		}
		stride = delta
	} else {
		confidence = 0
		stride = delta
	}
	p.putStride(pc, strideEntry{lastAddr: lineAddr, stride: stride, confidence: confidence})

	if confidence < confidenceThreshold || stride == 0 {
		return nil
	}
	out := make([]uint64, 0, p.degree)
	for k := int64(1); k <= int64(p.degree); k++ {
		out = append(out, uint64(int64(lineAddr)+k*stride))
	}
	return out
}

func (p *Prefetcher) adaptivePrefetch(lineAddr uint64, pc uint64) []uint64 {
	if addrs := p.stridePrefetch(lineAddr, pc); len(addrs) > 0 {
		return addrs
	}
	return p.streamPrefetch(lineAddr)
}

func (p *Prefetcher) intelPrefetch(lineAddr uint64, pc uint64) []uint64 {
	line := uint64(p.lineSize)
	pairBase := lineAddr &^ line // pair two adjacent lines into a 128B block
	pair := pairBase + line
	if pair == lineAddr {
		pair = pairBase
	}
	addrs := []uint64{pair}
	addrs = append(addrs, p.adaptivePrefetch(lineAddr, pc)...)
	return addrs
}

func (p *Prefetcher) getStride(pc uint64) (strideEntry, bool) {
	el, ok := p.strideTable[pc]
	if !ok {
		return strideEntry{}, false
	}
	p.strideLRU.MoveToFront(el)
	return el.Value.(*strideLRUEntry).entry, true
}

func (p *Prefetcher) putStride(pc uint64, e strideEntry) {
	if el, ok := p.strideTable[pc]; ok {
		el.Value.(*strideLRUEntry).entry = e
		p.strideLRU.MoveToFront(el)
		return
	}
	if p.strideLRU.Len() >= strideTableCap {
		oldest := p.strideLRU.Back()
		if oldest != nil {
			p.strideLRU.Remove(oldest)
			delete(p.strideTable, oldest.Value.(*strideLRUEntry).pc)
		}
	}
	el := p.strideLRU.PushFront(&strideLRUEntry{pc: pc, entry: e})
	p.strideTable[pc] = el
}
