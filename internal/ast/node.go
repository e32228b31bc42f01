// Package ast defines Node, the executable AST the analyzer produces
// from reader Forms (spec.md §3.5): 24 variants, each carrying a
// SourceInfo, owned by a per-session arena that outlives any GC cycle
// (spec.md §3.7).
//
// Grounded on the teacher's internal/ast package's per-node-kind
// struct-with-String() convention (one file group per concern); the
// arena itself has no teacher analogue (DWScript never re-walks its AST
// after analysis the way macro expansion here demands a stable,
// never-freed tree) and is instead grounded on the bump-allocator idiom
// in gopher-os-gopher-os/kernel/mem/pfn/bootmem_allocator.go (a
// monotonic counter handing out slots that are never individually
// freed).
package ast

import (
	"fmt"

	"github.com/cwbudde/go-clj/internal/value"
)

// NodeKind discriminates the 24 Node variants of spec.md §3.5.
type NodeKind uint8

const (
	KindConstant NodeKind = iota
	KindVarRef
	KindLocalRef
	KindIf
	KindDo
	KindLet
	KindLetFn
	KindLoop
	KindRecur
	KindFn
	KindCall
	KindDef
	KindSetBang
	KindQuote
	KindThrow
	KindTry
	KindDefProtocol
	KindExtendType
	KindReify
	KindDefMulti
	KindDefMethod
	KindLazySeq
	KindCaseStar
	KindVarForm
)

// SourceInfo is the position every Node carries.
type SourceInfo struct {
	Line   int
	Column int
	File   string
}

// String renders "file:line:column" for diagnostics (treewalk and
// bytecode error messages format a Node's Source() this way).
func (s SourceInfo) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// Node is the common interface every variant implements.
type Node interface {
	Kind() NodeKind
	Source() SourceInfo
}

// Sourced is satisfied by every *XxxNode pointer, letting callers that
// just finished building a node in the arena stamp its position in one
// line: `withSrc(arena.NewIf(...), a, line, col)`.
type Sourced interface {
	Node
	SetSrc(SourceInfo)
}

type base struct {
	Src SourceInfo
}

func (b base) Source() SourceInfo   { return b.Src }
func (b *base) SetSrc(s SourceInfo) { b.Src = s }

// ConstantNode is a literal value folded at analysis time (quote
// results, self-evaluating literals).
type ConstantNode struct {
	base
	Value value.Value
}

func (*ConstantNode) Kind() NodeKind { return KindConstant }

// VarRefNode references a resolved Var by its namespace-qualified name.
type VarRefNode struct {
	base
	Ns   string
	Name string
}

func (*VarRefNode) Kind() NodeKind { return KindVarRef }

// LocalRefNode references a local by its resolved lexical slot.
type LocalRefNode struct {
	base
	Name string
	Slot int
}

func (*LocalRefNode) Kind() NodeKind { return KindLocalRef }

// IfNode is `if` with Else possibly nil (implying nil, spec.md §4.3.2).
type IfNode struct {
	base
	Test, Then, Else Node
}

func (*IfNode) Kind() NodeKind { return KindIf }

// DoNode is a body of statements; an empty Do evaluates to nil.
type DoNode struct {
	base
	Body []Node
}

func (*DoNode) Kind() NodeKind { return KindDo }

// Binding is one `let`/`loop` binding pair after destructuring expansion
// (spec.md §4.3.3 reduces every pattern to simple name=init bindings).
type Binding struct {
	Name string
	Slot int
	Init Node
}

// LetNode is `let`/`let*`.
type LetNode struct {
	base
	Bindings []Binding
	Body     []Node
}

func (*LetNode) Kind() NodeKind { return KindLet }

// LetFnNode is `letfn*`: names are pre-registered before any init so
// mutual recursion works (spec.md §4.3.2).
type LetFnNode struct {
	base
	Bindings []Binding
	Body     []Node
}

func (*LetFnNode) Kind() NodeKind { return KindLetFn }

// LoopNode is a recur point like Let, but its body can `recur` back to
// it.
type LoopNode struct {
	base
	Bindings []Binding
	Body     []Node
}

func (*LoopNode) Kind() NodeKind { return KindLoop }

// RecurNode jumps to the enclosing recur point; Args must match its
// arity (spec.md §4.3.2, §8.1).
type RecurNode struct {
	base
	Args []Node
}

func (*RecurNode) Kind() NodeKind { return KindRecur }

// FnArity is one arity of a (possibly multi-arity) fn.
type FnArity struct {
	Params   []string
	Slots    []int
	Variadic bool
	Body     []Node
	LocalCount int
	// CaptureSlots names the enclosing frame's local slots this arity's
	// closure copies into its upvalue array (spec.md §4.5 "Capture
	// slots per-local"). Nothing populates or reads it: the bytecode
	// compiler computes its own FnProto.Captures, and the tree-walker
	// captures by environment chain.
	CaptureSlots []int
}

// FnNode is `fn`/`fn*`, optionally named (self-reference local) with one
// or more arities.
type FnNode struct {
	base
	Name       string // empty if anonymous
	Arities    []*FnArity
	DefiningNS string
}

func (*FnNode) Kind() NodeKind { return KindFn }

// CallNode is a function call: Fn evaluated then applied to Args.
type CallNode struct {
	base
	Fn   Node
	Args []Node
}

func (*CallNode) Kind() NodeKind { return KindCall }

// DefNode is `def`/`defmacro` (IsMacro distinguishes).
type DefNode struct {
	base
	Name    string
	Init    Node // nil if no initializer
	IsMacro bool
	Doc     string
	Meta    value.Value
}

func (*DefNode) Kind() NodeKind { return KindDef }

// SetBangNode mutates the top dynamic binding for Var Name.
type SetBangNode struct {
	base
	Name string
	Val  Node
}

func (*SetBangNode) Kind() NodeKind { return KindSetBang }

// QuoteNode captures a Form-derived Value verbatim.
type QuoteNode struct {
	base
	Value value.Value
}

func (*QuoteNode) Kind() NodeKind { return KindQuote }

// ThrowNode throws its single evaluated argument.
type ThrowNode struct {
	base
	Expr Node
}

func (*ThrowNode) Kind() NodeKind { return KindThrow }

// CatchClause is one `catch` inside a TryNode.
type CatchClause struct {
	ClassName string
	BindName  string
	BindSlot  int
	Body      []Node
}

// TryNode nests multi-catch into a chain of single-catch Try nodes per
// spec.md §4.3.2 ("analyzer nests multi-catch into a chain of single-
// catch try nodes so that each inner try has exactly one catch, and the
// outermost carries the finally"): every link carries exactly one Catch
// (Catch is nil only for a try with no catch clause at all), and Body
// and Finally are only set on the outermost node.
type TryNode struct {
	base
	Body    []Node
	Catch   *CatchClause
	Inner   *TryNode // the next inner try in the chain, or nil
	Finally []Node
}

func (*TryNode) Kind() NodeKind { return KindTry }

// ProtocolMethodSig is one method signature inside defprotocol.
type ProtocolMethodSig struct {
	Name    string
	Arities [][]string // each entry is a parameter-name list, including `this`
}

// DefProtocolNode registers a protocol's method signatures.
type DefProtocolNode struct {
	base
	Name    string
	Methods []ProtocolMethodSig
}

func (*DefProtocolNode) Kind() NodeKind { return KindDefProtocol }

// ExtendTypeMethod is one method implementation inside extend-type/reify.
type ExtendTypeMethod struct {
	Name string
	Fn   *FnNode
}

// ExtendTypeNode registers method fns on a type key for a protocol.
type ExtendTypeNode struct {
	base
	TypeKey      string // "" / "nil" key handled by the analyzer normalizing to a sentinel
	ProtocolName string
	Methods      []ExtendTypeMethod
}

func (*ExtendTypeNode) Kind() NodeKind { return KindExtendType }

// ReifyNode is an anonymous multi-protocol implementation.
type ReifyNode struct {
	base
	Protocols []string
	Methods   []ExtendTypeMethod
}

func (*ReifyNode) Kind() NodeKind { return KindReify }

// DefMultiNode registers a multimethod's dispatch fn.
type DefMultiNode struct {
	base
	Name       string
	DispatchFn Node
}

func (*DefMultiNode) Kind() NodeKind { return KindDefMulti }

// DefMethodNode registers one (dispatch-val -> fn) pair on a named
// multimethod.
type DefMethodNode struct {
	base
	MultiName   string
	DispatchVal Node
	Fn          *FnNode
}

func (*DefMethodNode) Kind() NodeKind { return KindDefMethod }

// LazySeqNode wraps Body as a zero-arg thunk producing a lazy sequence.
type LazySeqNode struct {
	base
	Body []Node
}

func (*LazySeqNode) Kind() NodeKind { return KindLazySeq }

// CaseTestType distinguishes the three case* dispatch strategies of
// spec.md §4.3.2.
type CaseTestType int

const (
	CaseTestInt CaseTestType = iota
	CaseTestHashEquiv
	CaseTestHashIdentity
)

// CaseClause pairs a literal test value with its result Node.
type CaseClause struct {
	Test Node
	Then Node
}

// CaseStarNode is the hash-based dispatch table `case` expands into.
type CaseStarNode struct {
	base
	Expr     Node
	Shift    uint
	Mask     uint
	TestType CaseTestType
	Clauses  map[int64][]CaseClause // hash-key -> clauses sharing that hash
	Default  Node
	SkipCheck map[int64]bool
}

func (*CaseStarNode) Kind() NodeKind { return KindCaseStar }

// VarFormNode is `(var sym)`/`#'sym`: resolves (and may auto-intern) a
// Var at analysis time.
type VarFormNode struct {
	base
	Ns   string
	Name string
}

func (*VarFormNode) Kind() NodeKind { return KindVarForm }
