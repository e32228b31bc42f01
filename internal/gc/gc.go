// Package gc implements the mark-sweep collector described in spec.md
// §4.1: a tracked-allocation table keyed by pointer identity (not
// intrusive headers, avoiding padding/alignment traps on the tracked
// objects), a three-tier allocator split, and a suppression window used
// during macro expansion.
//
// This package is deliberately generic over the objects it tracks (any
// comparable pointer) so it never needs to import internal/value —
// internal/env wires the two together by walking Value children and
// calling MarkOnce for each reachable heap pointer. That split mirrors the
// teacher's allocator-interface idea in
// gopher-os-gopher-os/kernel/mem/pfn/bootmem_allocator.go, where a small
// bootstrap allocator is handed off to progressively richer ones without
// either layer needing to know the concrete object shapes.
package gc

// Tier identifies which allocator a tracked object belongs to.
type Tier int

const (
	// TierInfra is the stable OS-backed allocator: Env, Namespace, Var,
	// and hash-table backings. Never swept.
	TierInfra Tier = iota
	// TierNodeArena is the bump allocator backing the AST; owned for the
	// life of one evaluation session, never individually freed.
	TierNodeArena
	// TierGC is the mark-sweep-managed tier: every Value-bearing heap
	// allocation.
	TierGC
)

type record struct {
	size   uintptr
	tag    string
	tier   Tier
	marked bool
}

// Allocator tracks every GC-tier allocation and drives the mark-sweep
// cycle. Infra and node-arena allocations may optionally be registered
// too (for introspection/stats) but are never collected: Sweep only ever
// frees TierGC records.
type Allocator struct {
	tracked         map[any]*record
	bytesSinceSweep uint64
	threshold       uint64
	suppressDepth   int
	stats           Stats
}

// Stats reports allocator activity, mirroring the teacher's
// PoolStats/GetPoolStats convention (internal/interp/runtime/pool.go) of
// exposing counters for monitoring and benchmarking.
type Stats struct {
	Allocations uint64
	Collections uint64
	Freed       uint64
	LiveObjects int
}

// NewAllocator creates an Allocator with the given collection threshold
// (bytes allocated since the last sweep before ShouldCollect reports
// true).
func NewAllocator(thresholdBytes uint64) *Allocator {
	if thresholdBytes == 0 {
		thresholdBytes = 1 << 20 // 1MiB default, matching a modest embedded workload
	}
	return &Allocator{
		tracked:   make(map[any]*record),
		threshold: thresholdBytes,
	}
}

// Track registers a newly allocated object. obj must be a pointer (or
// other comparable reference type); size is an estimate used only for
// the collection-threshold heuristic.
func (a *Allocator) Track(obj any, size uintptr, tag string, tier Tier) {
	a.tracked[obj] = &record{size: size, tag: tag, tier: tier}
	a.stats.Allocations++
	if tier == TierGC {
		a.bytesSinceSweep += uint64(size)
	}
}

// ShouldCollect reports whether a safe point should trigger collect()
// per spec.md §4.1 step 1. Always false while suppressed.
func (a *Allocator) ShouldCollect() bool {
	return a.suppressDepth == 0 && a.bytesSinceSweep >= a.threshold
}

// Suppress enters a suppression window (spec.md §4.1 "Suppression
// window"): nested calls stack, matching the scoped-resource guidance in
// spec.md §9 ("Scoped GC suppression ... use a host-native
// guaranteed-release idiom") — callers pair Suppress with a deferred
// Unsuppress.
func (a *Allocator) Suppress() { a.suppressDepth++ }

// Unsuppress leaves one level of the suppression window.
func (a *Allocator) Unsuppress() {
	if a.suppressDepth > 0 {
		a.suppressDepth--
	}
}

// Suppressed reports whether collection is currently suppressed.
func (a *Allocator) Suppressed() bool { return a.suppressDepth > 0 }

// MarkOnce marks obj live for this cycle. It reports false (and does
// nothing) if obj is untracked or already marked this cycle — callers
// use the false return to cut off recursion through already-visited
// cyclic structures (spec.md §4.1 step 4).
func (a *Allocator) MarkOnce(obj any) bool {
	r, ok := a.tracked[obj]
	if !ok || r.marked {
		return false
	}
	r.marked = true
	return true
}

// Sweep frees every TierGC record not marked this cycle, then resets all
// marks for the next cycle. Infra and node-arena records are left alone
// regardless of mark state: they are owned by the Env/arena, not swept
// by the allocator (spec.md §4.1 step 5, §3.7 ownership summary).
func (a *Allocator) Sweep() {
	freed := uint64(0)
	for k, r := range a.tracked {
		if r.tier != TierGC {
			continue
		}
		if !r.marked {
			delete(a.tracked, k)
			freed++
			continue
		}
		r.marked = false
	}
	a.bytesSinceSweep = 0
	a.stats.Collections++
	a.stats.Freed += freed
	a.stats.LiveObjects = len(a.tracked)
}

// StatsSnapshot returns a snapshot of allocator counters.
func (a *Allocator) StatsSnapshot() Stats {
	a.stats.LiveObjects = len(a.tracked)
	return a.stats
}
