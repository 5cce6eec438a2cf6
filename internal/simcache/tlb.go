// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package simcache

import "container/list"

// TLB is the auxiliary fully-associative translation-lookaside-buffer
// model summarized but not required by spec §9: a small LRU-capped page
// table cache. A zero-entry TLB reports every lookup as a hit with no
// penalty, matching "optional; may be stubbed".
type TLB struct {
	capacity int
	pageBits uint
	entries  map[uint64]*list.Element
	order    *list.List
}

// NewTLB builds a TLB with room for capacity page entries, each covering
// 2^pageShiftBits bytes. capacity==0 disables the model (always-hit stub).
func NewTLB(capacity int, pageShiftBits uint) *TLB {
	return &TLB{
		capacity: capacity,
		pageBits: pageShiftBits,
		entries:  make(map[uint64]*list.Element),
		order:    list.New(),
	}
}

// Access looks up addr's page, reporting a hit/miss and recording the
// translation as most-recently-used on either outcome (a miss still
// "walks the page table" and fills the TLB before returning).
func (t *TLB) Access(addr uint64) (hit bool) {
	if t.capacity <= 0 {
		return true
	}
	page := addr >> t.pageBits
	if el, ok := t.entries[page]; ok {
		t.order.MoveToFront(el)
		return true
	}
	if t.order.Len() >= t.capacity {
		oldest := t.order.Back()
		if oldest != nil {
			t.order.Remove(oldest)
			delete(t.entries, oldest.Value.(uint64))
		}
	}
	el := t.order.PushFront(page)
	t.entries[page] = el
	return false
}
