// Package value defines the uniform runtime Value representation shared by
// the analyzer, tree-walk interpreter, and bytecode VM.
//
// Value is a tagged datum: a small Kind discriminator plus an immediate
// payload (int64/float64) or a heap pointer. nil, boolean, char, small
// integer, and float are immediate; everything else is heap-allocated
// (see Traceable below for how the collector walks it; of these, only
// closures are registered with the internal/gc allocator). This keeps
// the tagged-variant shape spec.md §9 asks for as the reference design,
// with call sites (Kind(), AsInt(), etc.) stable enough that a later
// NaN-boxed representation could be swapped in behind the same API.
package value

import "math/big"

// Kind discriminates the variant a Value holds.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindChar
	KindInt
	KindFloat
	KindBigInt
	KindBigDecimal
	KindRatio
	KindString
	KindSymbol
	KindKeyword
	KindList
	KindVector
	KindMap
	KindSet
	KindCons
	KindLazySeq
	KindFn
	KindBuiltinFn
	KindMultiFn
	KindProtocol
	KindRecord
	KindAtom
	KindDelay
	KindRegex
	KindVarRef
	KindWasmModule
	KindWasmFn
	KindReduced
)

var kindNames = [...]string{
	"nil", "boolean", "char", "integer", "float", "big_int", "big_decimal",
	"ratio", "string", "symbol", "keyword", "list", "vector", "map", "set",
	"cons", "lazy_seq", "fn", "builtin_fn", "multi_fn", "protocol",
	"record", "atom", "delay", "regex", "var_ref", "wasm_module", "wasm_fn",
	"reduced",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is the uniform datum. Immediate kinds (nil/bool/char/int/float)
// live entirely in i/f; every other kind stores a pointer to a concrete
// heap object in obj. obj is deliberately `any` rather than a typed union:
// packages above value (ast, ns, treewalk, bytecode) attach their own
// concrete closure/var types and satisfy Traceable structurally, so value
// never needs to import them back (see Traceable and Caller below).
type Value struct {
	kind Kind
	i    int64
	f    float64
	obj  any
}

// Traceable is implemented by heap objects (defined in this package or
// above it) whose children must be visited during GC mark. Kinds whose
// payload holds no further Values (plain strings, regexes) need not
// implement it.
type Traceable interface {
	TraceChildren(yield func(Value))
}

// Caller invokes a callable Value with arguments. It is the single seam
// that lets data-only heap objects (lazy sequences, atoms, multimethods)
// trigger evaluation without this package importing the evaluators: every
// function that needs to call a Value (lazy seq realization, MultiFn
// dispatch) takes a Caller explicitly rather than reaching for global
// state, per spec.md §9's "thread an explicit context handle" guidance.
type Caller interface {
	Call(fn Value, args []Value) (Value, error)
}

// Nil is the singleton nil value.
var Nil = Value{kind: KindNil}

func Bool(b bool) Value {
	var i int64
	if b {
		i = 1
	}
	return Value{kind: KindBool, i: i}
}

func Char(r rune) Value { return Value{kind: KindChar, i: int64(r)} }

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

func BigInt(v *big.Int) Value { return Value{kind: KindBigInt, obj: v} }

func BigDecimal(v *big.Float) Value { return Value{kind: KindBigDecimal, obj: v} }

func Ratio(v *big.Rat) Value { return Value{kind: KindRatio, obj: v} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNil() bool   { return v.kind == KindNil }
func (v Value) AsBool() bool  { return v.i != 0 }
func (v Value) AsChar() rune  { return rune(v.i) }
func (v Value) AsInt() int64  { return v.i }
func (v Value) AsFloat() float64 { return v.f }
func (v Value) AsBigInt() *big.Int { return v.obj.(*big.Int) }
func (v Value) AsBigDecimal() *big.Float { return v.obj.(*big.Float) }
func (v Value) AsRatio() *big.Rat { return v.obj.(*big.Rat) }

// Heap returns the raw heap payload for heap-backed kinds, or nil for
// immediates. Used by gc to key the tracked-allocation table and by
// TraceChildren to dispatch on Traceable.
func (v Value) Heap() any { return v.obj }

// Truthy implements Clojure truthiness: everything except nil and false
// is truthy (note this differs from "zero value is falsy" languages like
// the teacher's DWScript — 0, "", and empty collections are all truthy).
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.i != 0
	default:
		return true
	}
}

// Is reports whether two Values are the identical heap object (or equal
// immediate), matching Clojure's `identical?`.
func Is(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool, KindChar, KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	default:
		return a.obj == b.obj
	}
}

// newHeap wraps a heap object with its kind. Constructors for each heap
// kind live in heap.go to keep this file focused on the Value API.
func newHeap(k Kind, obj any) Value { return Value{kind: k, obj: obj} }
