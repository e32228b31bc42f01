package bytecode

import (
	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/value"
)

// CatchSpec is one `catch` clause's handler target: the code offset to
// jump to when it matches, and the local slot its value binds to
// (spec.md §4.6 "try_begin pushes a handler {handler_ip, sp_snapshot,
// binding_name}" — binding_name is a compile-time local slot here, the
// way OpLocalStore already addresses locals by slot everywhere else in
// this VM rather than by name). Multi-catch compiles to one CatchSpec
// per clause inside the same TryRegion, tried in source order, mirroring
// internal/treewalk's runCatchChain walking a TryNode.Inner chain.
type CatchSpec struct {
	HandlerIP int
	BindSlot  int
	ClassName string
}

// TryRegion is what a single try_begin pushes onto the VM's per-frame
// try stack: its ordered catch clauses and, if the `try` has a
// `finally`, the code offset of that block. FinallyIP is -1 when there
// is none. The VM runs the finally block both on the normal/caught exit
// path (via a plain jump already baked into the surrounding code) and,
// critically, on an unmatched-exception unwind past this try (spec.md
// §4.3.2's treewalk parity: finally always runs) — the latter case is
// the one thing bytecode alone can't express as straight-line jumps,
// since it must run the block and then keep propagating the original
// exception rather than falling through, so the VM interprets it
// specially (see vm_exec.go's unwind).
type TryRegion struct {
	Specs     []CatchSpec
	FinallyIP int
}

// Chunk is the code a FnProto (or the top-level compile unit) runs:
// instructions, its constant pool, and a parallel source map for
// runtime error locations (spec.md §3.6).
type Chunk struct {
	Code      []Instruction
	Constants []value.Value
	SourceMap []ast.SourceInfo
}

func (c *Chunk) emit(op OpCode, a uint16, src ast.SourceInfo) int {
	c.Code = append(c.Code, Instruction{Op: op, A: a})
	c.SourceMap = append(c.SourceMap, src)
	return len(c.Code) - 1
}

// addConstant interns v into the pool, returning its index. Constants
// are not deduplicated: the compiler emits one pool entry per literal
// site, matching the teacher's straightforward append-only pool.
func (c *Chunk) addConstant(v value.Value) uint16 {
	c.Constants = append(c.Constants, v)
	return uint16(len(c.Constants) - 1)
}

// Capture is one upvalue a closure copies out of its defining frame at
// creation time (spec.md §4.5). Source is that frame's own locals
// unless FromUpvalue is set, in which case it is that frame's own
// upvalue array instead — needed when a doubly-nested closure captures
// a name that its immediate parent itself only reaches as an upvalue.
type Capture struct {
	FromUpvalue bool
	Slot        uint16
}

// FnProto is one compiled function arity (spec.md §3.6). A multi-arity
// `fn` compiles to one FnProto per arity; Arities on the first
// (primary) one lists every sibling arity, including itself, so
// whichever arity the VM lands in can dispatch a mismatched call
// straight to the right sibling.
type FnProto struct {
	Chunk

	Name       string
	ParamCount int
	Variadic   bool
	LocalCount int
	Captures   []Capture
	Arities    []*FnProto
	Protos     []*FnProto // closures created by `closure` ops in this proto's code
	TryRegions []TryRegion
	DefiningNS string
	// SelfSlot is the local slot a named fn's own closure value is
	// written into before its body runs, so internal recursive calls by
	// name resolve without a Var lookup (mirrors internal/treewalk's
	// self-reference frame in evalFn). -1 for anonymous fns.
	SelfSlot int
}

// selectArity mirrors internal/treewalk's arity selection, operating
// over compiled FnProtos instead of ast.FnArity: exact match wins,
// else the first variadic arity whose fixed param count fits.
func selectArity(arities []*FnProto, argc int) (*FnProto, bool) {
	for _, p := range arities {
		if !p.Variadic && p.ParamCount == argc {
			return p, true
		}
	}
	for _, p := range arities {
		if p.Variadic && argc >= p.ParamCount-1 {
			return p, true
		}
	}
	return nil, false
}
