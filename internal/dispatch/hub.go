// Package dispatch implements the single call-site spec.md §4.10 calls
// `call_fn_val`: whatever Value variant is being invoked, evaluation
// funnels through here so neither evaluator needs to know about the
// other's closure representation, and so keyword/map/set/multimethod
// "calling conventions" live in exactly one place.
//
// The teacher has no equivalent package: DWScript has one evaluator and
// a fixed, compile-time-resolved call target, so there is nothing to
// bridge. Hub's shape is instead grounded bottom-up on the two
// evaluators' own dispatch switches (internal/treewalk.Interp.CallClosure,
// internal/bytecode.VM.Call), generalized one level above both.
package dispatch

import (
	"fmt"

	"github.com/cwbudde/go-clj/internal/bytecode"
	"github.com/cwbudde/go-clj/internal/protocol"
	"github.com/cwbudde/go-clj/internal/treewalk"
	"github.com/cwbudde/go-clj/internal/value"
)

// Hub is the unified value.Caller wired into the analyzer, the
// tree-walk interpreter, and the bytecode VM, so each of those only
// ever calls Hub.Call rather than reaching into one another directly.
type Hub struct {
	VM   *bytecode.VM
	Tree *treewalk.Interp
}

// New builds a Hub over the evaluators it bridges. Callers must still
// wire the returned Hub back into vm.SetCaller/tree.SetCaller
// themselves (internal/env does this at Env construction) since Hub
// needs both evaluators to exist first.
func New(vm *bytecode.VM, tree *treewalk.Interp) *Hub {
	return &Hub{VM: vm, Tree: tree}
}

// Call implements value.Caller, routing fn per spec.md §4.10's table.
func (h *Hub) Call(fn value.Value, args []value.Value) (value.Value, error) {
	switch fn.Kind() {
	case value.KindBuiltinFn:
		return fn.AsBuiltinFn().Fn(h, args)

	case value.KindFn:
		switch cl := fn.AsFn().(type) {
		case *bytecode.Closure:
			// Active-VM reuse (spec.md §4.10): the already-constructed
			// VM pushes a frame rather than a fresh VM being allocated
			// per call, which would be hundreds of KB to ~1.5 MB each.
			return h.VM.CallFunction(cl, args)
		case *treewalk.Closure:
			return h.Tree.CallClosure(h, cl, args)
		default:
			return value.Nil, fmt.Errorf("dispatch: unrecognized fn closure type %T", cl)
		}

	case value.KindKeyword:
		return callKeyword(fn, args)

	case value.KindMap:
		return callMap(fn, args)

	case value.KindSet:
		return callSet(fn, args)

	case value.KindMultiFn:
		return h.callMultiFn(fn, args)

	case value.KindWasmFn:
		return value.Nil, fmt.Errorf("dispatch: wasm_fn invocation not supported by this host")

	default:
		return value.Nil, fmt.Errorf("%s is not a function", fn.Kind())
	}
}

// callKeyword implements `(k m)` / `(k m default)` -> `(get m k default)`:
// a keyword used as a fn looks itself up in its single collection
// argument, a common Clojure idiom for keyed-lookup callbacks.
func callKeyword(kw value.Value, args []value.Value) (value.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return value.Nil, fmt.Errorf("keyword %s called with %d argument(s), expected 1 or 2", kw.PrStr(), len(args))
	}
	def := value.Nil
	if len(args) == 2 {
		def = args[1]
	}
	if args[0].Kind() != value.KindMap {
		return def, nil
	}
	if v, ok := args[0].AsMap().Get(kw); ok {
		return v, nil
	}
	return def, nil
}

// callMap implements `(m k)` / `(m k default)`.
func callMap(m value.Value, args []value.Value) (value.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return value.Nil, fmt.Errorf("map called with %d argument(s), expected 1 or 2", len(args))
	}
	if v, ok := m.AsMap().Get(args[0]); ok {
		return v, nil
	}
	if len(args) == 2 {
		return args[1], nil
	}
	return value.Nil, nil
}

// callSet implements `(s x)` -> x if s contains x, else nil.
func callSet(s value.Value, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, fmt.Errorf("set called with %d argument(s), expected 1", len(args))
	}
	if s.AsSet().Contains(args[0]) {
		return args[0], nil
	}
	return value.Nil, nil
}

// callMultiFn runs the dispatch fn, resolves the method for its result
// against the multimethod's method table (consulting its hierarchy, if
// any, for isa?-aware ancestor matching), and calls the resolved method.
func (h *Hub) callMultiFn(fn value.Value, args []value.Value) (value.Value, error) {
	m := fn.AsMultiFn()
	dispatchVal, err := h.Call(m.DispatchFn, args)
	if err != nil {
		return value.Nil, err
	}
	var hier *protocol.Hierarchy
	if m.Hierarchy != value.Nil {
		hier, _ = m.Hierarchy.AsVarRef().(*protocol.Hierarchy)
	}
	result := protocol.Dispatch(m, dispatchVal, hier)
	if !result.Found {
		return value.Nil, protocol.ErrNoMethod(m.Name, dispatchVal)
	}
	return h.Call(result.Fn, args)
}
