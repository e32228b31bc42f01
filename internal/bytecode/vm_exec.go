package bytecode

import (
	"fmt"
	"math"

	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/errs"
	"github.com/cwbudde/go-clj/internal/gc"
	"github.com/cwbudde/go-clj/internal/ns"
	"github.com/cwbudde/go-clj/internal/protocol"
	"github.com/cwbudde/go-clj/internal/value"
)

// thrown carries a user `throw`'s payload through the Go call stack,
// the bytecode-side twin of internal/treewalk's thrownValue. Kept
// separate (not shared) so this package does not import treewalk.
type thrown struct{ v value.Value }

func (t *thrown) Error() string { return t.v.PrStr() }

// isCatchable mirrors internal/treewalk's isCatchable: a *thrown is
// always catchable (exactly a user `throw`), an *errs.Report defers to
// its Kind (spec.md §4.4: "stack overflow and OOM are not catchable"),
// and anything else — including an error surfacing from a nested call
// into the tree-walk evaluator — defaults to catchable.
func isCatchable(err error) bool {
	switch e := err.(type) {
	case *thrown:
		return true
	case *errs.Report:
		return e.Kind.Catchable()
	}
	return true
}

// toThrowable converts a caught Go error into the Value bound to a
// catch clause's local, matching internal/treewalk's toThrowable
// synthesized ex-info shape exactly so `(catch ExceptionInfo e ...)`
// behaves identically regardless of which evaluator ran the code.
func toThrowable(err error) value.Value {
	if t, ok := err.(*thrown); ok {
		return t.v
	}
	fields := value.NewMap([]value.MapEntry{
		{Key: value.Kw("", "message"), Val: value.String(err.Error())},
	})
	return value.NewRecord("ExceptionInfo", fields.AsMap())
}

// classMatches mirrors internal/treewalk's classMatches.
func classMatches(className string, v value.Value) bool {
	switch className {
	case "", "_", "Exception", "Throwable", "Object":
		return true
	}
	return protocol.TypeKey(v) == className
}

// execFrame runs f from its current ip until OpRet, or until an error
// unwinds past every try region f owns.
func (vm *VM) execFrame(f *frm) (value.Value, error) {
	for f.ip < len(f.proto.Code) {
		instr := f.proto.Code[f.ip]
		src := f.proto.SourceMap[f.ip]
		f.ip++
		result, done, err := vm.exec1(f, instr, src)
		if err != nil {
			if !isCatchable(err) {
				return value.Nil, err
			}
			handled, propagate := vm.unwind(f, err)
			if handled {
				continue
			}
			return value.Nil, propagate
		}
		if done {
			return result, nil
		}
	}
	if len(f.stack) > 0 {
		return f.peek(), nil
	}
	return value.Nil, nil
}

// unwind pops f's try stack looking for a clause err matches, binding
// the thrown value and redirecting f.ip on a hit. Every region popped
// along the way that does NOT match still runs its finally block (if
// any) inline before the search continues outward — spec.md §4.3.2's
// "finally always runs", reproduced at the VM level since bytecode
// jumps alone cannot express "run this, then keep propagating".
func (vm *VM) unwind(f *frm, err error) (handled bool, propagate error) {
	thrownVal := toThrowable(err)
	for len(f.tryStack) > 0 {
		entry := f.tryStack[len(f.tryStack)-1]
		f.tryStack = f.tryStack[:len(f.tryStack)-1]
		if entry.stackBase <= len(f.stack) {
			f.stack = f.stack[:entry.stackBase]
		}
		for _, spec := range entry.region.Specs {
			if classMatches(spec.ClassName, thrownVal) {
				f.locals[spec.BindSlot] = thrownVal
				f.ip = spec.HandlerIP
				return true, nil
			}
		}
		if entry.region.FinallyIP >= 0 {
			if ferr := vm.runFinally(f, entry.region.FinallyIP); ferr != nil {
				return false, ferr
			}
		}
	}
	return false, err
}

// runFinally executes the finally block at ip in place, stopping at the
// OpFinallyEnd that terminates it, then restores f.ip. Used only for the
// unmatched-exception unwind path; the normal/caught-exit path reaches
// the same block by an ordinary compiled jump and runs it through the
// main execFrame loop instead.
func (vm *VM) runFinally(f *frm, ip int) error {
	saved := f.ip
	f.ip = ip
	for {
		instr := f.proto.Code[f.ip]
		if instr.Op == OpFinallyEnd {
			f.ip = saved
			return nil
		}
		src := f.proto.SourceMap[f.ip]
		f.ip++
		if _, done, err := vm.exec1(f, instr, src); err != nil {
			f.ip = saved
			return err
		} else if done {
			f.ip = saved
			return nil
		}
	}
}

// exec1 runs one instruction, returning the frame's result and done=true
// only for OpRet.
func (vm *VM) exec1(f *frm, instr Instruction, src ast.SourceInfo) (value.Value, bool, error) {
	switch instr.Op {
	case OpConstLoad:
		f.push(f.proto.Constants[instr.A])
	case OpNil:
		f.push(value.Nil)
	case OpTrue:
		f.push(value.Bool(true))
	case OpFalse:
		f.push(value.Bool(false))

	case OpPop:
		f.pop()
	case OpDup:
		f.push(f.peek())

	case OpLocalLoad:
		f.push(f.locals[instr.A])
	case OpLocalStore:
		f.locals[instr.A] = f.pop()

	case OpUpvalueLoad:
		f.push(f.upvalues[instr.A])
	case OpUpvalueStore:
		f.upvalues[instr.A] = f.pop()

	case OpVarLoad:
		v := f.proto.Constants[instr.A].AsVarRef().(*ns.Var)
		f.push(vm.Frames.Deref(v))
	case OpSetBang:
		name := f.proto.Constants[instr.A].AsString()
		val := f.pop()
		v, ok := vm.Reg.Current().Resolve(name)
		if !ok {
			return value.Nil, false, fmt.Errorf("%s: unable to resolve var: %s", src, name)
		}
		if !vm.Frames.Set(v, val) {
			return value.Nil, false, fmt.Errorf("%s: set! on a non-dynamic or unbound var: %s", src, name)
		}
		f.push(val)
	case OpDef:
		name := f.proto.Constants[instr.A].AsString()
		init := f.pop()
		v := vm.Reg.Current().Intern(name)
		ns.BindRoot(v, init)
		f.push(value.NewVarRef(v))
	case OpDefMacro:
		name := f.proto.Constants[instr.A].AsString()
		init := f.pop()
		v := vm.Reg.Current().Intern(name)
		v.IsMacro = true
		ns.BindRoot(v, init)
		f.push(value.NewVarRef(v))
	case OpDefMulti:
		name := f.proto.Constants[instr.A].AsString()
		dispatchFn := f.pop()
		m := value.NewMultiFn(name, dispatchFn)
		v := vm.Reg.Current().Intern(name)
		ns.BindRoot(v, m)
		f.push(m)
	case OpDefMethod:
		name := f.proto.Constants[instr.A].AsString()
		fn := f.pop()
		dispatchVal := f.pop()
		mv, ok := vm.Reg.Current().Resolve(name)
		if !ok {
			return value.Nil, false, fmt.Errorf("%s: unable to resolve var: %s", src, name)
		}
		multi := vm.Frames.Deref(mv).AsMultiFn()
		key := protocol.DispatchKey(dispatchVal)
		isDefaultKw := dispatchVal.Kind() == value.KindKeyword &&
			dispatchVal.AsKeyword().Ns == "" && dispatchVal.AsKeyword().Name == "default"
		if isDefaultKw {
			multi.Default = fn
		} else {
			multi.Methods[key] = fn
		}
		multi.CacheInvalidate()
		f.push(fn)
	case OpLazySeq:
		thunk := f.pop()
		f.push(value.NewLazySeq(thunk))
	case OpTrap:
		msg := f.proto.Constants[instr.A].AsString()
		return value.Nil, false, fmt.Errorf("%s: %s", src, msg)

	case OpJump:
		f.ip += int(int16(instr.A))
	case OpJumpIfFalse:
		test := f.pop()
		if !test.Truthy() {
			f.ip += int(int16(instr.A))
		}
	case OpJumpBack:
		f.ip -= int(instr.A)
		if vm.GCHook != nil && vm.Alloc != nil && vm.Alloc.ShouldCollect() {
			vm.GCHook()
		}

	case OpCall, OpTailCall:
		args := make([]value.Value, instr.A)
		for i := int(instr.A) - 1; i >= 0; i-- {
			args[i] = f.pop()
		}
		fnVal := f.pop()
		result, err := vm.Call(fnVal, args)
		if err != nil {
			return value.Nil, false, err
		}
		f.push(result)
	case OpRet:
		return f.pop(), true, nil
	case OpClosure:
		proto := f.proto.Protos[instr.A]
		ups := make([]value.Value, len(proto.Captures))
		for i, capt := range proto.Captures {
			if capt.FromUpvalue {
				ups[i] = f.upvalues[capt.Slot]
			} else {
				ups[i] = f.locals[capt.Slot]
			}
		}
		cl := &Closure{Proto: proto, Upvalues: ups, DefiningNS: proto.DefiningNS}
		if vm.Alloc != nil {
			vm.Alloc.Track(cl, 0, "bytecode.Closure", gc.TierGC)
		}
		f.push(value.NewFn(cl))

	case OpListNew:
		items := popN(f, int(instr.A))
		lst := value.EmptyList()
		for i := len(items) - 1; i >= 0; i-- {
			lst = value.ConsList(items[i], lst.AsList())
		}
		f.push(lst)
	case OpVectorNew:
		f.push(value.NewVector(popN(f, int(instr.A))))
	case OpMapNew:
		kvs := popN(f, int(instr.A)*2)
		entries := make([]value.MapEntry, instr.A)
		for i := range entries {
			entries[i] = value.MapEntry{Key: kvs[2*i], Val: kvs[2*i+1]}
		}
		f.push(value.NewMap(entries))
	case OpSetNew:
		f.push(value.NewSet(popN(f, int(instr.A))))

	case OpTryBegin:
		f.tryStack = append(f.tryStack, tryEntry{region: f.proto.TryRegions[instr.A], stackBase: len(f.stack)})
	case OpTryEnd:
		f.tryStack = f.tryStack[:len(f.tryStack)-1]
	case OpThrow:
		return value.Nil, false, &thrown{v: f.pop()}
	case OpFinallyEnd:
		// no-op when reached by falling off the normal merge point; the
		// unmatched-exception unwind path (runFinally) stops here itself
		// rather than executing this case.

	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpRem, OpLt, OpLe, OpGt, OpGe, OpEq, OpNeq:
		if err := vm.binOp(f, instr.Op, src); err != nil {
			return value.Nil, false, err
		}

	default:
		return value.Nil, false, fmt.Errorf("%s: bytecode: unhandled opcode %s", src, instr.Op)
	}
	return value.Nil, false, nil
}

func popN(f *frm, n int) []value.Value {
	items := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		items[i] = f.pop()
	}
	return items
}

// binOp executes one arithmetic/comparison opcode. `=`/`not=` compare
// structurally across any Value kind (spec.md §4.2's generic equality);
// the rest require numeric operands. Int+int stays exact except
// division, which falls back to float the same way Clojure's `/`
// promotes an inexact integer division rather than silently truncating.
func (vm *VM) binOp(f *frm, op OpCode, src ast.SourceInfo) error {
	b, a := f.pop(), f.pop()

	if op == OpEq {
		f.push(value.Bool(value.Equal(a, b)))
		return nil
	}
	if op == OpNeq {
		f.push(value.Bool(!value.Equal(a, b)))
		return nil
	}

	if !isNumber(a) || !isNumber(b) {
		return fmt.Errorf("%s: %s requires numeric operands, got %s and %s", src, op, a.Kind(), b.Kind())
	}

	if a.Kind() == value.KindInt && b.Kind() == value.KindInt {
		return intBinOp(f, op, a.AsInt(), b.AsInt(), src)
	}
	return floatBinOp(f, op, asFloat64(a), asFloat64(b), src)
}

func isNumber(v value.Value) bool {
	return v.Kind() == value.KindInt || v.Kind() == value.KindFloat
}

func asFloat64(v value.Value) float64 {
	if v.Kind() == value.KindInt {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

func intBinOp(f *frm, op OpCode, a, b int64, src ast.SourceInfo) error {
	switch op {
	case OpAdd:
		f.push(value.Int(a + b))
	case OpSub:
		f.push(value.Int(a - b))
	case OpMul:
		f.push(value.Int(a * b))
	case OpDiv:
		if b == 0 {
			return fmt.Errorf("%s: arithmetic_error: divide by zero", src)
		}
		if a%b == 0 {
			f.push(value.Int(a / b))
		} else {
			f.push(value.Float(float64(a) / float64(b)))
		}
	case OpMod:
		if b == 0 {
			return fmt.Errorf("%s: arithmetic_error: divide by zero", src)
		}
		m := a % b
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		f.push(value.Int(m))
	case OpRem:
		if b == 0 {
			return fmt.Errorf("%s: arithmetic_error: divide by zero", src)
		}
		f.push(value.Int(a % b))
	case OpLt:
		f.push(value.Bool(a < b))
	case OpLe:
		f.push(value.Bool(a <= b))
	case OpGt:
		f.push(value.Bool(a > b))
	case OpGe:
		f.push(value.Bool(a >= b))
	}
	return nil
}

func floatBinOp(f *frm, op OpCode, a, b float64, src ast.SourceInfo) error {
	switch op {
	case OpAdd:
		f.push(value.Float(a + b))
	case OpSub:
		f.push(value.Float(a - b))
	case OpMul:
		f.push(value.Float(a * b))
	case OpDiv:
		if b == 0 {
			return fmt.Errorf("%s: arithmetic_error: divide by zero", src)
		}
		f.push(value.Float(a / b))
	case OpMod:
		if b == 0 {
			return fmt.Errorf("%s: arithmetic_error: divide by zero", src)
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		f.push(value.Float(m))
	case OpRem:
		if b == 0 {
			return fmt.Errorf("%s: arithmetic_error: divide by zero", src)
		}
		f.push(value.Float(math.Mod(a, b)))
	case OpLt:
		f.push(value.Bool(a < b))
	case OpLe:
		f.push(value.Bool(a <= b))
	case OpGt:
		f.push(value.Bool(a > b))
	case OpGe:
		f.push(value.Bool(a >= b))
	}
	return nil
}
