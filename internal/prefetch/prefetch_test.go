// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package prefetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextLineAlwaysOneAddress(t *testing.T) {
	p := New(PolicyNextLine, 4, 64)
	addrs := p.OnMiss(0x1000, 0)
	assert.Equal(t, []uint64{0x1040}, addrs)
}

func TestStreamBuildsConfidenceBeforeIssuing(t *testing.T) {
	p := New(PolicyStream, 2, 64)
	assert.Empty(t, p.OnMiss(0x1000, 0))
	assert.Empty(t, p.OnMiss(0x1040, 0))
	addrs := p.OnMiss(0x1080, 0)
	assert.NotEmpty(t, addrs)
	assert.LessOrEqual(t, len(addrs), 2)
}

func TestStrideDetectsConstantDelta(t *testing.T) {
	p := New(PolicyStride, 3, 64)
	assert.Empty(t, p.OnMiss(0x1000, 0xdead))
	assert.Empty(t, p.OnMiss(0x1100, 0xdead))
	assert.Empty(t, p.OnMiss(0x1200, 0xdead))
	addrs := p.OnMiss(0x1300, 0xdead)
	assert.Len(t, addrs, 3)
	assert.Equal(t, uint64(0x1400), addrs[0])
}

func TestAdaptiveFallsBackToStream(t *testing.T) {
	p := New(PolicyAdaptive, 2, 64)
	// never a stable stride (different PCs each time) but a stable stream.
	p.OnMiss(0x2000, 1)
	p.OnMiss(0x2040, 2)
	addrs := p.OnMiss(0x2080, 3)
	assert.NotEmpty(t, addrs)
}

func TestStrideTableEvictsLRU(t *testing.T) {
	p := New(PolicyStride, 1, 64)
	for pc := uint64(0); pc < strideTableCap+10; pc++ {
		p.OnMiss(uint64(pc)*64, pc)
	}
	assert.LessOrEqual(t, len(p.strideTable), strideTableCap)
}

func TestAccuracy(t *testing.T) {
	var s Stats
	assert.Equal(t, 0.0, s.Accuracy())
	s.Issued = 4
	s.Useful = 2
	assert.Equal(t, 0.5, s.Accuracy())
}
