package bytecode

import (
	"fmt"

	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/ns"
	"github.com/cwbudde/go-clj/internal/value"
)

// intrinsicOps maps the core arithmetic/comparison symbols spec.md
// §4.5 names to their direct opcode, emitted only for exactly two
// arguments; any other arity falls back to a normal var_load + call so
// the Var's variadic builtin fallback handles it (spec.md §4.10).
var intrinsicOps = map[string]OpCode{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv,
	"<": OpLt, "<=": OpLe, ">": OpGt, ">=": OpGe,
	"=": OpEq, "not=": OpNeq,
}

// Compiler compiles ast.Node into FnProtos (spec.md §4.5). One
// Compiler instance is scoped to a single top-level compilation; a
// fresh scope tree is built per FnProto.
type Compiler struct {
	reg *ns.Registry
}

// New creates a Compiler over reg, used to resolve Vars referenced as
// constants (var_load operands hold a *ns.Var, not a name, so lookups
// happen once at compile time).
func New(reg *ns.Registry) *Compiler {
	return &Compiler{reg: reg}
}

// scope is the compiler's flat per-function slot table: unlike the
// analyzer's scope-relative numbering (internal/analyzer's
// scope.pushScope resets `next` per nesting level), this allocates
// monotonically increasing slots across an entire FnProto so a single
// flat locals array can address every binding by slot alone, matching
// the VM's Frame{locals_base + slot} addressing.
type scope struct {
	names  map[string]int
	parent *scope
	proto  *FnProto // the enclosing FnProto whose LocalCount this scope allocates from
}

func newScope(parent *scope, proto *FnProto) *scope {
	return &scope{names: map[string]int{}, parent: parent, proto: proto}
}

func (s *scope) declare(name string) int {
	slot := s.proto.LocalCount
	s.proto.LocalCount++
	s.names[name] = slot
	return slot
}

func (s *scope) resolve(name string) (int, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if slot, ok := sc.names[name]; ok {
			return slot, true
		}
	}
	return 0, false
}

// fnCtx tracks per-FnProto compiler state: the current scope chain, the
// loop-recur target (for `recur`), and the enclosing fnCtx (for
// resolving a name as an upvalue capture when not found locally).
type fnCtx struct {
	proto    *FnProto
	scope    *scope
	loop     *loopCtx
	outer    *fnCtx
	captures *captureState
}

// captureState is shared by every arity of one `fn` literal: all
// arities close over the same outer scope and must therefore agree on
// one upvalue-slot numbering so a single Closure.Upvalues array serves
// whichever arity selectArity picks at call time.
type captureState struct {
	captures []Capture
	index    map[string]int
}

type loopCtx struct {
	slots     []int // the recur-target locals, in binding order
	back      int   // code offset of the loop body's start, for the back-edge jump
	outerLoop *loopCtx
}

// CompileTopLevel compiles a single top-level form into a zero-arg
// FnProto whose body is node — the unit pkg/clj.EvalString runs once
// through the VM per form, and the unit internal/bootstrap's Phase 2
// recompiles a hot core fn's source through.
func (c *Compiler) CompileTopLevel(node ast.Node, sourceFile string) (*FnProto, error) {
	proto := &FnProto{Name: "", DefiningNS: c.reg.Current().Name, SelfSlot: -1}
	ctx := &fnCtx{proto: proto}
	ctx.scope = newScope(nil, proto)
	if err := c.compileNode(ctx, node); err != nil {
		return nil, err
	}
	proto.emit(OpRet, 0, node.Source())
	return proto, nil
}

// CompileFn compiles every arity of node into FnProtos, wiring
// Arities on the first so runtime dispatch can find its siblings
// (spec.md §4.5 "Multi-arity fn: separate FnProto per arity").
func (c *Compiler) CompileFn(outer *fnCtx, node *ast.FnNode) (*FnProto, error) {
	cs := &captureState{index: map[string]int{}}
	protos := make([]*FnProto, len(node.Arities))
	for i, arity := range node.Arities {
		p, err := c.compileArity(outer, node.Name, node.DefiningNS, arity, cs)
		if err != nil {
			return nil, err
		}
		protos[i] = p
	}
	for _, p := range protos {
		p.Arities = protos
		p.Captures = cs.captures
	}
	return protos[0], nil
}

func (c *Compiler) compileArity(outer *fnCtx, name, definingNS string, arity *ast.FnArity, cs *captureState) (*FnProto, error) {
	proto := &FnProto{
		Name:       name,
		ParamCount: len(arity.Params),
		Variadic:   arity.Variadic,
		DefiningNS: definingNS,
		SelfSlot:   -1,
	}
	ctx := &fnCtx{proto: proto, outer: outer, captures: cs}
	ctx.scope = newScope(nil, proto)
	for _, p := range arity.Params {
		ctx.scope.declare(p)
	}
	if name != "" {
		proto.SelfSlot = ctx.scope.declare(name)
	}
	for i, stmt := range arity.Body {
		if i == len(arity.Body)-1 {
			if err := c.compileNode(ctx, stmt); err != nil {
				return nil, err
			}
		} else {
			if err := c.compileNode(ctx, stmt); err != nil {
				return nil, err
			}
			proto.emit(OpPop, 0, stmt.Source())
		}
	}
	if len(arity.Body) == 0 {
		proto.emit(OpNil, 0, ast.SourceInfo{})
	}
	proto.emit(OpRet, 0, ast.SourceInfo{})
	return proto, nil
}

// compileNode compiles node, leaving exactly one Value on the operand
// stack.
func (c *Compiler) compileNode(ctx *fnCtx, n ast.Node) error {
	switch node := n.(type) {
	case *ast.ConstantNode:
		return c.compileConst(ctx, node.Value, node.Source())
	case *ast.QuoteNode:
		return c.compileConst(ctx, node.Value, node.Source())
	case *ast.VarRefNode:
		return c.compileVarRef(ctx, node)
	case *ast.VarFormNode:
		v, err := c.resolveVar(node.Ns, node.Name)
		if err != nil {
			return err
		}
		ctx.proto.emit(OpConstLoad, ctx.proto.addConstant(value.NewVarRef(v)), node.Source())
		return nil
	case *ast.LocalRefNode:
		return c.compileLocalRef(ctx, node.Name, node.Source())
	case *ast.IfNode:
		return c.compileIf(ctx, node)
	case *ast.DoNode:
		return c.compileDo(ctx, node.Body, node.Source())
	case *ast.LetNode:
		return c.compileLet(ctx, node.Bindings, node.Body, node.Source())
	case *ast.LetFnNode:
		return c.compileLetFn(ctx, node)
	case *ast.LoopNode:
		return c.compileLoop(ctx, node)
	case *ast.RecurNode:
		return c.compileRecur(ctx, node)
	case *ast.FnNode:
		return c.compileFnLiteral(ctx, node)
	case *ast.CallNode:
		return c.compileCall(ctx, node)
	case *ast.DefNode:
		return c.compileDef(ctx, node)
	case *ast.SetBangNode:
		return c.compileSetBang(ctx, node)
	case *ast.ThrowNode:
		if err := c.compileNode(ctx, node.Expr); err != nil {
			return err
		}
		ctx.proto.emit(OpThrow, 0, node.Source())
		return nil
	case *ast.TryNode:
		return c.compileTry(ctx, node)
	case *ast.LazySeqNode:
		return c.compileLazySeq(ctx, node)
	case *ast.CaseStarNode:
		return c.compileCaseStar(ctx, node)
	case *ast.DefProtocolNode, *ast.ExtendTypeNode, *ast.ReifyNode, *ast.DefMultiNode, *ast.DefMethodNode:
		return c.compileTrap(ctx, n, "protocol/multimethod definitions are not compiled to bytecode; this form must run through the tree-walk evaluator")
	default:
		return c.compileTrap(ctx, n, fmt.Sprintf("compiler: unhandled node kind %T", n))
	}
}

// compileTrap emits spec.md §4.5's "invalid-node emission": a
// source-stamped runtime error in place of a feature this compiler
// deliberately does not lower to bytecode.
func (c *Compiler) compileTrap(ctx *fnCtx, n ast.Node, msg string) error {
	ctx.proto.emit(OpTrap, ctx.proto.addConstant(value.String(msg)), n.Source())
	return nil
}

func (c *Compiler) compileConst(ctx *fnCtx, v value.Value, src ast.SourceInfo) error {
	switch {
	case v.IsNil():
		ctx.proto.emit(OpNil, 0, src)
	case v.Kind() == value.KindBool && v.AsBool():
		ctx.proto.emit(OpTrue, 0, src)
	case v.Kind() == value.KindBool && !v.AsBool():
		ctx.proto.emit(OpFalse, 0, src)
	default:
		ctx.proto.emit(OpConstLoad, ctx.proto.addConstant(v), src)
	}
	return nil
}

func (c *Compiler) resolveVar(nsName, sym string) (*ns.Var, error) {
	target, ok := c.reg.Find(nsName)
	if !ok {
		return nil, fmt.Errorf("compiler: no such namespace: %s", nsName)
	}
	v, ok := target.Resolve(sym)
	if !ok {
		return nil, fmt.Errorf("compiler: unable to resolve var: %s/%s", nsName, sym)
	}
	return v, nil
}

func (c *Compiler) compileVarRef(ctx *fnCtx, node *ast.VarRefNode) error {
	v, err := c.resolveVar(node.Ns, node.Name)
	if err != nil {
		return err
	}
	ctx.proto.emit(OpVarLoad, ctx.proto.addConstant(value.NewVarRef(v)), node.Source())
	return nil
}

// compileLocalRef resolves name in the current fnCtx's scope chain; if
// not found there, it is captured as an upvalue from an enclosing
// fnCtx, recursively (a closure of a closure still resolves through
// its immediate parent's own upvalues, not by reaching two frames up).
func (c *Compiler) compileLocalRef(ctx *fnCtx, name string, src ast.SourceInfo) error {
	if slot, ok := ctx.scope.resolve(name); ok {
		ctx.proto.emit(OpLocalLoad, uint16(slot), src)
		return nil
	}
	slot, err := c.captureUpvalue(ctx, name)
	if err != nil {
		return err
	}
	ctx.proto.emit(OpUpvalueLoad, uint16(slot), src)
	return nil
}

func (c *Compiler) captureUpvalue(ctx *fnCtx, name string) (int, error) {
	if slot, ok := ctx.captures.index[name]; ok {
		return slot, nil
	}
	if ctx.outer == nil {
		return 0, fmt.Errorf("compiler: unbound local: %s", name)
	}
	var capt Capture
	if srcSlot, ok := ctx.outer.scope.resolve(name); ok {
		capt.Slot = uint16(srcSlot)
	} else {
		// Not a direct local of the immediate parent either: capture it
		// there first (recursively), then re-capture here as coming from
		// the parent's own upvalue array rather than its locals.
		outerUpSlot, err := c.captureUpvalue(ctx.outer, name)
		if err != nil {
			return 0, err
		}
		capt = Capture{FromUpvalue: true, Slot: uint16(outerUpSlot)}
	}
	captureSlot := len(ctx.captures.captures)
	ctx.captures.captures = append(ctx.captures.captures, capt)
	ctx.captures.index[name] = captureSlot
	return captureSlot, nil
}

func (c *Compiler) compileIf(ctx *fnCtx, node *ast.IfNode) error {
	if err := c.compileNode(ctx, node.Test); err != nil {
		return err
	}
	jumpToElse := ctx.proto.emit(OpJumpIfFalse, 0, node.Source())
	if err := c.compileNode(ctx, node.Then); err != nil {
		return err
	}
	jumpToEnd := ctx.proto.emit(OpJump, 0, node.Source())
	c.patchJump(ctx.proto, jumpToElse)
	if node.Else != nil {
		if err := c.compileNode(ctx, node.Else); err != nil {
			return err
		}
	} else {
		ctx.proto.emit(OpNil, 0, node.Source())
	}
	c.patchJump(ctx.proto, jumpToEnd)
	return nil
}

// patchJump rewrites a forward jump's operand now that the target
// offset (the next instruction to be emitted) is known.
func (c *Compiler) patchJump(proto *FnProto, site int) {
	distance := len(proto.Code) - site - 1
	proto.Code[site].A = uint16(int16(distance))
}

func (c *Compiler) compileDo(ctx *fnCtx, body []ast.Node, src ast.SourceInfo) error {
	if len(body) == 0 {
		ctx.proto.emit(OpNil, 0, src)
		return nil
	}
	for i, stmt := range body {
		if err := c.compileNode(ctx, stmt); err != nil {
			return err
		}
		if i != len(body)-1 {
			ctx.proto.emit(OpPop, 0, stmt.Source())
		}
	}
	return nil
}

func (c *Compiler) compileLet(ctx *fnCtx, bindings []ast.Binding, body []ast.Node, src ast.SourceInfo) error {
	ctx.scope = newScope(ctx.scope, ctx.proto)
	for _, b := range bindings {
		if err := c.compileNode(ctx, b.Init); err != nil {
			return err
		}
		slot := ctx.scope.declare(b.Name)
		ctx.proto.emit(OpLocalStore, uint16(slot), b.Init.Source())
	}
	if err := c.compileDo(ctx, body, src); err != nil {
		return err
	}
	ctx.scope = ctx.scope.parent
	return nil
}

func (c *Compiler) compileLetFn(ctx *fnCtx, node *ast.LetFnNode) error {
	ctx.scope = newScope(ctx.scope, ctx.proto)
	for _, b := range node.Bindings {
		ctx.scope.declare(b.Name)
	}
	for _, b := range node.Bindings {
		if err := c.compileNode(ctx, b.Init); err != nil {
			return err
		}
		slot, _ := ctx.scope.resolve(b.Name)
		ctx.proto.emit(OpLocalStore, uint16(slot), b.Init.Source())
	}
	if err := c.compileDo(ctx, node.Body, node.Source()); err != nil {
		return err
	}
	ctx.scope = ctx.scope.parent
	return nil
}

func (c *Compiler) compileLoop(ctx *fnCtx, node *ast.LoopNode) error {
	ctx.scope = newScope(ctx.scope, ctx.proto)
	slots := make([]int, len(node.Bindings))
	for i, b := range node.Bindings {
		if err := c.compileNode(ctx, b.Init); err != nil {
			return err
		}
		slots[i] = ctx.scope.declare(b.Name)
		ctx.proto.emit(OpLocalStore, uint16(slots[i]), b.Init.Source())
	}
	back := len(ctx.proto.Code)
	ctx.loop = &loopCtx{slots: slots, back: back, outerLoop: ctx.loop}
	if err := c.compileDo(ctx, node.Body, node.Source()); err != nil {
		return err
	}
	ctx.loop = ctx.loop.outerLoop
	ctx.scope = ctx.scope.parent
	return nil
}

func (c *Compiler) compileRecur(ctx *fnCtx, node *ast.RecurNode) error {
	if ctx.loop == nil {
		// recur at fn-arity tail position: the recur targets are the
		// function's own parameter slots and the back-edge is the very
		// start of the proto's code.
		if len(node.Args) == 0 {
			return fmt.Errorf("compiler: recur outside of loop or fn")
		}
	}
	for _, a := range node.Args {
		if err := c.compileNode(ctx, a); err != nil {
			return err
		}
	}
	var slots []int
	var back int
	if ctx.loop != nil {
		slots, back = ctx.loop.slots, ctx.loop.back
	} else {
		slots = make([]int, ctx.proto.ParamCount)
		for i := range slots {
			slots[i] = i
		}
		back = 0
	}
	if len(node.Args) != len(slots) {
		return fmt.Errorf("compiler: recur arity mismatch: expected %d, got %d", len(slots), len(node.Args))
	}
	for i := len(slots) - 1; i >= 0; i-- {
		ctx.proto.emit(OpLocalStore, uint16(slots[i]), node.Source())
	}
	distance := len(ctx.proto.Code) - back + 1
	ctx.proto.emit(OpJumpBack, uint16(distance), node.Source())
	return nil
}

func (c *Compiler) compileFnLiteral(ctx *fnCtx, node *ast.FnNode) error {
	primary, err := c.CompileFn(ctx, node)
	if err != nil {
		return err
	}
	idx := len(ctx.proto.Protos)
	ctx.proto.Protos = append(ctx.proto.Protos, primary)
	ctx.proto.emit(OpClosure, uint16(idx), node.Source())
	return nil
}

// coreNS is the namespace intrinsic arithmetic/comparison ops are only
// recognized in — a user shadowing `+` in their own namespace must
// still go through the normal var_load + call path.
const coreNS = "clojure.core"

func (c *Compiler) compileCall(ctx *fnCtx, node *ast.CallNode) error {
	if vref, ok := node.Fn.(*ast.VarRefNode); ok && vref.Ns == coreNS && len(node.Args) == 2 {
		if op, ok := intrinsicOps[vref.Name]; ok {
			if err := c.compileNode(ctx, node.Args[0]); err != nil {
				return err
			}
			if err := c.compileNode(ctx, node.Args[1]); err != nil {
				return err
			}
			ctx.proto.emit(op, 0, node.Source())
			return nil
		}
	}
	if err := c.compileNode(ctx, node.Fn); err != nil {
		return err
	}
	for _, a := range node.Args {
		if err := c.compileNode(ctx, a); err != nil {
			return err
		}
	}
	ctx.proto.emit(OpCall, uint16(len(node.Args)), node.Source())
	return nil
}

func (c *Compiler) compileDef(ctx *fnCtx, node *ast.DefNode) error {
	if node.Init != nil {
		if err := c.compileNode(ctx, node.Init); err != nil {
			return err
		}
	} else {
		ctx.proto.emit(OpNil, 0, node.Source())
	}
	op := OpDef
	if node.IsMacro {
		op = OpDefMacro
	}
	ctx.proto.emit(op, ctx.proto.addConstant(value.String(node.Name)), node.Source())
	return nil
}

// compileSetBang mirrors internal/treewalk's evalSetBang exactly:
// resolution happens against whichever namespace is current at the
// moment `set!` runs, not the namespace the enclosing fn was defined
// in, so the name (not a pre-resolved *ns.Var) is what the compiler
// bakes into the constant pool.
func (c *Compiler) compileSetBang(ctx *fnCtx, node *ast.SetBangNode) error {
	if err := c.compileNode(ctx, node.Val); err != nil {
		return err
	}
	ctx.proto.emit(OpSetBang, ctx.proto.addConstant(value.String(node.Name)), node.Source())
	return nil
}

// compileTry compiles a TryNode chain (spec.md §4.3.2's single-catch
// links threaded through Inner) into one TryRegion holding every catch
// clause in source order, mirroring internal/treewalk's runCatchChain
// walking the same Inner chain. The body runs under try_begin/try_end;
// a match in the region jumps straight to its handler (the VM does the
// class matching, see vm_exec.go); all paths (normal exit, any
// handler) converge on a single compiled `finally` block before falling
// through to whatever follows. An exception that matches no clause in
// this try unwinds past it entirely — the VM, not this compiled
// bytecode, is responsible for still running the finally block on that
// path before continuing to propagate (see TryRegion's doc comment).
func (c *Compiler) compileTry(ctx *fnCtx, node *ast.TryNode) error {
	var chain []*ast.TryNode
	for link := node; link != nil; link = link.Inner {
		chain = append(chain, link)
	}
	ctx.scope = newScope(ctx.scope, ctx.proto)
	specs := make([]CatchSpec, 0, len(chain))
	for _, link := range chain {
		if link.Catch == nil {
			continue
		}
		slot := ctx.scope.declare(link.Catch.BindName)
		specs = append(specs, CatchSpec{ClassName: link.Catch.ClassName, BindSlot: slot})
	}
	regionIdx := len(ctx.proto.TryRegions)
	ctx.proto.TryRegions = append(ctx.proto.TryRegions, TryRegion{Specs: specs, FinallyIP: -1})
	ctx.proto.emit(OpTryBegin, uint16(regionIdx), node.Source())
	if err := c.compileDo(ctx, node.Body, node.Source()); err != nil {
		return err
	}
	ctx.proto.emit(OpTryEnd, 0, node.Source())
	jumpToMerge := ctx.proto.emit(OpJump, 0, node.Source())

	var handlerJumps []int
	specIdx := 0
	for _, link := range chain {
		if link.Catch == nil {
			continue
		}
		ctx.proto.TryRegions[regionIdx].Specs[specIdx].HandlerIP = len(ctx.proto.Code)
		specIdx++
		if err := c.compileDo(ctx, link.Catch.Body, link.Source()); err != nil {
			return err
		}
		handlerJumps = append(handlerJumps, ctx.proto.emit(OpJump, 0, link.Source()))
	}
	for _, j := range handlerJumps {
		c.patchJump(ctx.proto, j)
	}
	c.patchJump(ctx.proto, jumpToMerge)

	if len(node.Finally) > 0 {
		ctx.proto.TryRegions[regionIdx].FinallyIP = len(ctx.proto.Code)
		if err := c.compileDo(ctx, node.Finally, node.Source()); err != nil {
			return err
		}
		ctx.proto.emit(OpPop, 0, node.Source())
		ctx.proto.emit(OpFinallyEnd, 0, node.Source())
	}
	ctx.scope = ctx.scope.parent
	return nil
}

func (c *Compiler) compileLazySeq(ctx *fnCtx, node *ast.LazySeqNode) error {
	thunk := &ast.FnNode{Arities: []*ast.FnArity{{Body: node.Body}}, DefiningNS: ctx.proto.DefiningNS}
	proto, err := c.compileArity(ctx, "", ctx.proto.DefiningNS, thunk.Arities[0], &captureState{index: map[string]int{}})
	if err != nil {
		return err
	}
	idx := len(ctx.proto.Protos)
	ctx.proto.Protos = append(ctx.proto.Protos, proto)
	ctx.proto.emit(OpClosure, uint16(idx), node.Source())
	ctx.proto.emit(OpLazySeq, 0, node.Source())
	return nil
}

// compileCaseStar does not compile case* dispatch: it emits a trap
// whose error tells the user the form must run through the tree-walk
// evaluator, so a case* reached on the VM fails at run time.
func (c *Compiler) compileCaseStar(ctx *fnCtx, node *ast.CaseStarNode) error {
	return c.compileTrap(ctx, node, "case* is not compiled to bytecode; this form must run through the tree-walk evaluator")
}
