// Package env ties the pieces spec.md §3.7 lists as "owned by one Env"
// together: the GC allocator, the namespace registry, the dynamic-frame
// stack, the AST arena, the active VM, and the unified dispatch hub.
// It is also where GC root enumeration lives (internal/gc's own doc
// comment explicitly defers root-walking to whoever owns the registry
// and frames, rather than to the allocator or either evaluator).
//
// The teacher has no analogue: DWScript values are plain Go values
// collected by the host Go GC, so there is no root-walk to write. This
// package's CollectGC is new code, shaped entirely by value.Traceable's
// existing contract rather than ported from any teacher file.
package env

import (
	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/bytecode"
	"github.com/cwbudde/go-clj/internal/dispatch"
	"github.com/cwbudde/go-clj/internal/gc"
	"github.com/cwbudde/go-clj/internal/ns"
	"github.com/cwbudde/go-clj/internal/treewalk"
	"github.com/cwbudde/go-clj/internal/value"
)

// Env bundles everything one evaluation session shares, per spec.md
// §3.7. A host embeds one Env per thread (spec.md §5 "each Env is
// thread-affinitive").
type Env struct {
	Alloc  *gc.Allocator
	Reg    *ns.Registry
	Frames *ns.Frames
	Arena  *ast.Arena
	Tree   *treewalk.Interp
	VM     *bytecode.VM
	Hub    *dispatch.Hub
}

// New constructs a fresh Env: a registry seeded with clojure.core and
// user, both evaluators sharing that registry/frame state, and a Hub
// bridging them, wired as each evaluator's Caller.
func New() *Env {
	reg := ns.NewRegistry()
	alloc := gc.NewAllocator(0)
	frames := ns.NewFrames()
	arena := ast.NewArena()

	tree := treewalk.New(reg, alloc, frames)
	vm := bytecode.NewVM(reg, alloc, frames)
	hub := dispatch.New(vm, tree)
	tree.SetCaller(hub)
	vm.SetCaller(hub)
	vm.SetGCHook(func() {
		e := &Env{Alloc: alloc, Reg: reg, Frames: frames, Arena: arena, Tree: tree, VM: vm, Hub: hub}
		e.CollectGC()
	})

	return &Env{
		Alloc:  alloc,
		Reg:    reg,
		Frames: frames,
		Arena:  arena,
		Tree:   tree,
		VM:     vm,
		Hub:    hub,
	}
}

// CollectGC runs one mark-sweep cycle (spec.md §4.1): mark every Value
// reachable from a namespace Var root/meta or a dynamic-frame binding,
// then sweep. extraRoots lets a caller pass transient roots a generic
// Env can't see on its own. The GCHook New installs on the VM passes no
// extra roots, so values reachable only from VM operand stacks, VM
// frame locals or tree-walk locals are not marked by that collection.
func (e *Env) CollectGC(extraRoots ...value.Value) {
	if e.Alloc.Suppressed() {
		return
	}
	for _, n := range e.Reg.All() {
		for _, v := range n.Mappings() {
			markValue(e.Alloc, v.Root)
			markValue(e.Alloc, v.Meta)
		}
	}
	e.Frames.TraceChildren(func(v value.Value) { markValue(e.Alloc, v) })
	for _, v := range extraRoots {
		markValue(e.Alloc, v)
	}
	e.Alloc.Sweep()
}

// markValue marks v's heap payload (if any) and recurses into its
// children when it implements value.Traceable, mirroring spec.md
// §4.1 step 4's "recursively mark referenced Values, stopping at
// already-marked objects to handle cycles" — MarkOnce's false return
// is exactly that cycle cutoff.
func markValue(alloc *gc.Allocator, v value.Value) {
	obj := v.Heap()
	if obj == nil {
		return
	}
	if !alloc.MarkOnce(obj) {
		return
	}
	if t, ok := obj.(value.Traceable); ok {
		t.TraceChildren(func(child value.Value) { markValue(alloc, child) })
	}
}
