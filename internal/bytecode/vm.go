package bytecode

import (
	"fmt"

	"github.com/cwbudde/go-clj/internal/gc"
	"github.com/cwbudde/go-clj/internal/ns"
	"github.com/cwbudde/go-clj/internal/value"
)

// VM is the stack-based evaluator of spec.md §4.6: the second of this
// core's two evaluators, running compiled FnProtos instead of walking
// ast.Node directly. One VM instance is reused across calls ("active-VM
// reuse", spec.md §4.10) rather than constructed fresh per invocation,
// so a bytecode fn calling another bytecode fn stays inside the same
// VM/frame-stack machinery instead of spinning up a nested evaluator.
type VM struct {
	Reg    *ns.Registry
	Alloc  *gc.Allocator
	Frames *ns.Frames
	Caller value.Caller

	// GCHook, if set, is invoked at loop back-edges whenever Alloc
	// reports a safe point is due (spec.md §4.1 step 2). internal/env
	// owns root enumeration and wires this in; this package never walks
	// GC roots itself.
	GCHook func()
}

// NewVM creates a VM over the given runtime state. Reg/Alloc/Frames are
// shared with whichever other evaluator (internal/treewalk) is active
// in the same session, per spec.md §3.7's single Env owning them both.
// Named NewVM rather than New since this package's Compiler already
// claims the plain constructor name.
func NewVM(reg *ns.Registry, alloc *gc.Allocator, frames *ns.Frames) *VM {
	return &VM{Reg: reg, Alloc: alloc, Frames: frames}
}

// SetCaller wires the unified dispatch hub (internal/dispatch.Hub in
// the full system) this VM defers to for every callable Value variant
// it does not implement directly (builtin_fn, treewalk fn, multi_fn,
// protocol methods, ...).
func (vm *VM) SetCaller(c value.Caller) { vm.Caller = c }

// SetGCHook wires in the safe-point callback (see GCHook's doc comment).
func (vm *VM) SetGCHook(hook func()) { vm.GCHook = hook }

// Call implements value.Caller: a bytecode Closure runs directly
// through this VM (the active-VM-reuse path); everything else is
// handed to vm.Caller.
func (vm *VM) Call(fn value.Value, args []value.Value) (value.Value, error) {
	if cl, ok := fn.AsFn().(*Closure); ok {
		return vm.CallFunction(cl, args)
	}
	if vm.Caller == nil {
		return value.Nil, fmt.Errorf("bytecode: no dispatch hub wired into this VM for a %s value", fn.Kind())
	}
	return vm.Caller.Call(fn, args)
}

// CallFunction is the active-VM-reuse entry point (spec.md §4.10):
// internal/dispatch's hub calls straight into it for any bytecode
// Closure rather than constructing a fresh VM.
func (vm *VM) CallFunction(cl *Closure, args []value.Value) (value.Value, error) {
	proto, ok := selectArity(cl.Proto.Arities, len(args))
	if !ok {
		return value.Nil, fmt.Errorf("arity_error: %s does not accept %d argument(s)", closureLabel(cl), len(args))
	}

	f := &frm{proto: proto, upvalues: cl.Upvalues, locals: make([]value.Value, proto.LocalCount)}
	if err := bindArgs(f, proto, args); err != nil {
		return value.Nil, err
	}
	if proto.SelfSlot >= 0 {
		f.locals[proto.SelfSlot] = value.NewFn(cl)
	}

	savedNS := vm.Reg.Current()
	if defNS, ok := vm.Reg.Find(proto.DefiningNS); ok {
		vm.Reg.SetCurrent(defNS)
	}
	defer vm.Reg.SetCurrent(savedNS)

	return vm.execFrame(f)
}

// RunTopLevel executes a zero-arg, zero-capture FnProto produced by
// Compiler.CompileTopLevel — one form at a time, the way pkg/clj.EvalString
// and internal/bootstrap's Phase 2 hot-recompile both drive this VM.
// Unlike CallFunction it bypasses arity selection entirely: a top-level
// proto has no sibling arities to choose among.
func (vm *VM) RunTopLevel(proto *FnProto) (value.Value, error) {
	f := &frm{proto: proto, locals: make([]value.Value, proto.LocalCount)}

	savedNS := vm.Reg.Current()
	if defNS, ok := vm.Reg.Find(proto.DefiningNS); ok {
		vm.Reg.SetCurrent(defNS)
	}
	defer vm.Reg.SetCurrent(savedNS)

	return vm.execFrame(f)
}

// bindArgs binds proto's fixed params positionally and, if variadic,
// collects the remainder into a list bound to the last param slot —
// the same layout internal/treewalk's bindParams uses, just addressed
// by flat slot instead of by name.
func bindArgs(f *frm, proto *FnProto, args []value.Value) error {
	fixed := proto.ParamCount
	if proto.Variadic {
		fixed--
	}
	for i := 0; i < fixed; i++ {
		f.locals[i] = args[i]
	}
	if !proto.Variadic {
		return nil
	}
	rest := value.EmptyList()
	for i := len(args) - 1; i >= fixed; i-- {
		rest = value.ConsList(args[i], rest.AsList())
	}
	f.locals[fixed] = rest
	return nil
}

// frm is one active call frame: its proto's code, a private operand
// stack, its locals and upvalues, and the try-handler stack active
// within it. Named frm (not frame) to avoid colliding with the
// disassembler's own per-instruction notion of "frame of reference".
type frm struct {
	proto    *FnProto
	ip       int
	locals   []value.Value
	upvalues []value.Value
	stack    []value.Value
	tryStack []tryEntry
}

type tryEntry struct {
	region    TryRegion
	stackBase int
}

func (f *frm) push(v value.Value) { f.stack = append(f.stack, v) }

func (f *frm) pop() value.Value {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frm) peek() value.Value { return f.stack[len(f.stack)-1] }
