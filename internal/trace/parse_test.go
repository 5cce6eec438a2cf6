// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLineLoad(t *testing.T) {
	ev, ok := ParseLine("L 1000 4 main.c:42 T7")
	assert.True(t, ok)
	assert.Equal(t, Load, ev.Op)
	assert.Equal(t, uint64(0x1000), ev.Address)
	assert.Equal(t, uint32(4), ev.Size)
	assert.Equal(t, "main.c", ev.Source.File)
	assert.Equal(t, uint32(42), ev.Source.Line)
	assert.Equal(t, uint32(7), ev.Thread)
}

func TestParseLineDefaultsThreadToOne(t *testing.T) {
	ev, ok := ParseLine("S 2000 8")
	assert.True(t, ok)
	assert.Equal(t, Store, ev.Op)
	assert.Equal(t, uint32(1), ev.Thread)
	assert.True(t, ev.Source.Empty())
}

func TestParseLineInstructionFetch(t *testing.T) {
	ev, ok := ParseLine("I 400000 4")
	assert.True(t, ok)
	assert.Equal(t, InstFetch, ev.Op)
}

func TestParseLineHandlesHexPrefix(t *testing.T) {
	ev, ok := ParseLine("L 0x1000 4")
	assert.True(t, ok)
	assert.Equal(t, uint64(0x1000), ev.Address)
}

func TestParseLineSkipsCommentsAndBlank(t *testing.T) {
	_, ok := ParseLine("# a comment")
	assert.False(t, ok)
	_, ok = ParseLine("   ")
	assert.False(t, ok)
}

func TestParseLineSkipsMalformed(t *testing.T) {
	cases := []string{"X 1000 4", "L nothex 4", "L 1000 notdec", "L 1000"}
	for _, c := range cases {
		_, ok := ParseLine(c)
		assert.False(t, ok, c)
	}
}

func TestReadAllCountsProcessedAndSkipped(t *testing.T) {
	input := "L 1000 4\n# comment\nbad line\nS 2000 4\n\n"
	var events []Event
	processed, skipped := ReadAll(strings.NewReader(input), func(e Event) { events = append(events, e) })
	assert.Equal(t, uint64(2), processed)
	assert.Equal(t, uint64(1), skipped)
	assert.Len(t, events, 2)
}
