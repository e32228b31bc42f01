// Package treewalk implements the direct Node-to-Value interpreter of
// spec.md §4.4: a single-threaded recursive evaluator over ast.Node,
// closures captured by a lexical environment chain, `recur` via a
// trampoline sentinel, and `try`/`throw`/`catch`/`finally` via Go error
// unwinding.
//
// Grounded on internal/interp/interpreter.go's recursive-descent
// `Eval(node, env)` shape and internal/interp/runtime/environment.go's
// `Environment{store, outer}` chain: this package keeps both ideas
// verbatim, generalized from DWScript's statement/expression node split
// to this spec's single Node interface, and from compile-time-checked
// types to the dynamically-typed Value variants case 4.3.2 describes.
package treewalk

import "github.com/cwbudde/go-clj/internal/value"

// Env is one lexical frame: a name -> Value map plus an outer link,
// mirroring the teacher's Environment chain (store + outer, Get walking
// outward on miss) rather than the analyzer's scope-relative slot
// numbers — ast.Binding.Slot/LocalRefNode.Slot exist for
// internal/bytecode's flat per-function locals array; the tree-walker
// resolves purely by name, which sidesteps needing a frame-depth on
// every LocalRefNode.
type Env struct {
	vars  map[string]value.Value
	outer *Env
}

// NewEnv creates a child frame of outer (outer may be nil for the
// top-level frame of a zero-arg thunk with no lexical parent).
func NewEnv(outer *Env) *Env {
	return &Env{vars: map[string]value.Value{}, outer: outer}
}

// Define introduces or rebinds name in this frame only.
func (e *Env) Define(name string, v value.Value) { e.vars[name] = v }

// Get resolves name by walking outward through the frame chain.
func (e *Env) Get(name string) (value.Value, bool) {
	for f := e; f != nil; f = f.outer {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return value.Nil, false
}

// TraceChildren lets the GC walk every value reachable from this frame
// and its outer chain, used when a live tree-walk frame or a closure's
// captured Env is a mark root (spec.md §4.1 step 3).
func (e *Env) TraceChildren(yield func(value.Value)) {
	for f := e; f != nil; f = f.outer {
		for _, v := range f.vars {
			yield(v)
		}
	}
}
