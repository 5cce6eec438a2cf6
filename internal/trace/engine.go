// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package trace

import (
	"cachexplorer/internal/coherence"
	"cachexplorer/internal/hierarchy"
)

// Engine is whatever drives the cache hierarchy on behalf of the trace
// processor — either a single-core hierarchy.CacheSystem or a
// coherence.MultiCoreEngine, wrapped to a common shape so Processor never
// needs to know which one it has.
type Engine interface {
	DataLineSize() int
	InstructionLineSize() int
	Read(addr uint64, thread uint32, pc uint64, file string, line uint32) bool
	Write(addr uint64, thread uint32, pc uint64, file string, line uint32) bool
	Fetch(addr uint64, thread uint32, pc uint64) bool
	SetFastMode(bool)
}

// SingleCoreEngine adapts a hierarchy.CacheSystem to Engine, ignoring
// thread/file/line (no coherence or false-sharing tracking at one core).
type SingleCoreEngine struct {
	System *hierarchy.CacheSystem
}

func (e SingleCoreEngine) DataLineSize() int        { return e.System.L1D.Config.LineSize }
func (e SingleCoreEngine) InstructionLineSize() int { return e.System.L1I.Config.LineSize }
func (e SingleCoreEngine) SetFastMode(fast bool)    { e.System.SetFastMode(fast) }

func (e SingleCoreEngine) Read(addr uint64, _ uint32, pc uint64, _ string, _ uint32) bool {
	return e.System.Read(addr, pc).L1Hit
}

func (e SingleCoreEngine) Write(addr uint64, _ uint32, pc uint64, _ string, _ uint32) bool {
	return e.System.Write(addr, pc).L1Hit
}

func (e SingleCoreEngine) Fetch(addr uint64, _ uint32, pc uint64) bool {
	return e.System.Fetch(addr, pc).L1Hit
}

// MultiCoreEngineAdapter adapts a coherence.MultiCoreEngine to Engine,
// threading thread/file/line through to the false-sharing ledger.
type MultiCoreEngineAdapter struct {
	Engine   *coherence.MultiCoreEngine
	LineSize int
}

func (e MultiCoreEngineAdapter) DataLineSize() int        { return e.LineSize }
func (e MultiCoreEngineAdapter) InstructionLineSize() int { return e.LineSize }
func (e MultiCoreEngineAdapter) SetFastMode(fast bool)    { e.Engine.SetFastMode(fast) }

func (e MultiCoreEngineAdapter) Read(addr uint64, thread uint32, _ uint64, file string, line uint32) bool {
	return e.Engine.Read(addr, thread, file, line).L1Hit
}

func (e MultiCoreEngineAdapter) Write(addr uint64, thread uint32, _ uint64, file string, line uint32) bool {
	return e.Engine.Write(addr, thread, file, line).L1Hit
}

func (e MultiCoreEngineAdapter) Fetch(addr uint64, thread uint32, _ uint64) bool {
	return e.Engine.Fetch(addr, thread).L1Hit
}
