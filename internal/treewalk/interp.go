package treewalk

import (
	"fmt"

	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/errs"
	"github.com/cwbudde/go-clj/internal/gc"
	"github.com/cwbudde/go-clj/internal/ns"
	"github.com/cwbudde/go-clj/internal/protocol"
	"github.com/cwbudde/go-clj/internal/value"
)

// Interp is the tree-walk evaluator state (spec.md §4.4): a registry for
// Var resolution, the GC allocator (this package declares no mark-sweep
// safe points; collection runs from the VM's loop back-edges or an
// explicit CollectGC call), the dynamic binding frame stack, and a Caller used to invoke
// closures/builtins/multimethods uniformly — this is always the
// internal/dispatch hub, injected so this package never imports it.
type Interp struct {
	Reg    *ns.Registry
	Alloc  *gc.Allocator
	Frames *ns.Frames
	Caller value.Caller

	reifyCounter int
}

// New creates an Interp. Caller must be set (directly or via SetCaller)
// before any call-bearing form is evaluated; it is left a separate step
// because the dispatch hub itself needs a live *Interp to route `fn`
// (tree-walk) calls, so the two are wired together after construction.
func New(reg *ns.Registry, alloc *gc.Allocator, frames *ns.Frames) *Interp {
	return &Interp{Reg: reg, Alloc: alloc, Frames: frames}
}

// SetCaller wires the dispatch hub in after both it and the Interp have
// been constructed (they are mutually referential at the type level but
// not at the import level: dispatch imports treewalk, not vice versa).
func (in *Interp) SetCaller(c value.Caller) { in.Caller = c }

// recurSignal is returned (never wrapped) by RecurNode evaluation; the
// enclosing loop/fn call site recognizes it and rebinds rather than
// treating it as a thrown error (spec.md §4.4 "returning a sentinel").
type recurSignal struct{ args []value.Value }

func (recurSignal) Error() string { return "recur used outside of loop or fn" }

// thrownValue is the Go error carrying a user `throw`'s Value payload
// through the normal Go call stack, unwound by the nearest matching
// TryNode (spec.md §4.4 "Zig/host exception-style unwind").
type thrownValue struct{ v value.Value }

func (t *thrownValue) Error() string { return t.v.PrStr() }

// Throw wraps v as a Go error for callers (e.g. builtins) that need to
// raise a user-level exception value rather than a host error.
func Throw(v value.Value) error { return &thrownValue{v: v} }

// isCatchable reports whether err may be caught by `try`/`catch`
// (spec.md §4.4: "stack overflow and OOM are not catchable"). A
// *thrownValue is always catchable (it is exactly a user `throw`); an
// *errs.Report defers to its Kind; any other Go error defaults to
// catchable, matching "runtime errors from builtins ... are catchable".
func isCatchable(err error) bool {
	switch e := err.(type) {
	case *thrownValue:
		return true
	case *errs.Report:
		return e.Kind.Catchable()
	case recurSignal:
		return false
	}
	return true
}

// toThrowable converts a caught Go error into the Value bound to a
// catch clause's local: a *thrownValue unwraps to its original payload;
// anything else is synthesized into an ex-info-shaped record (spec.md
// §4.4 "a synthesized ex-info map when isUserError(err) is true").
func toThrowable(err error) value.Value {
	if t, ok := err.(*thrownValue); ok {
		return t.v
	}
	fields := value.NewMap([]value.MapEntry{
		{Key: value.Kw("", "message"), Val: value.String(err.Error())},
	})
	return value.NewRecord("ExceptionInfo", fields.AsMap())
}

// Eval evaluates one Node in env (spec.md §4.3.1's dispatch, run at
// evaluation time instead of analysis time).
func (in *Interp) Eval(n ast.Node, env *Env) (value.Value, error) {
	switch node := n.(type) {
	case *ast.ConstantNode:
		return node.Value, nil
	case *ast.QuoteNode:
		return node.Value, nil
	case *ast.VarRefNode:
		return in.evalVarRef(node)
	case *ast.VarFormNode:
		v, err := in.resolveVar(node.Ns, node.Name, node.Source())
		if err != nil {
			return value.Nil, err
		}
		return value.NewVarRef(v), nil
	case *ast.LocalRefNode:
		v, ok := env.Get(node.Name)
		if !ok {
			return value.Nil, fmt.Errorf("%s: unbound local: %s", node.Source(), node.Name)
		}
		return v, nil
	case *ast.IfNode:
		return in.evalIf(node, env)
	case *ast.DoNode:
		return in.evalBody(node.Body, env)
	case *ast.LetNode:
		return in.evalLet(node, env)
	case *ast.LetFnNode:
		return in.evalLetFn(node, env)
	case *ast.LoopNode:
		return in.evalLoop(node, env)
	case *ast.RecurNode:
		return in.evalRecur(node, env)
	case *ast.FnNode:
		return in.evalFn(node, env)
	case *ast.CallNode:
		return in.evalCall(node, env)
	case *ast.DefNode:
		return in.evalDef(node, env)
	case *ast.SetBangNode:
		return in.evalSetBang(node, env)
	case *ast.ThrowNode:
		return in.evalThrow(node, env)
	case *ast.TryNode:
		return in.evalTry(node, env)
	case *ast.LazySeqNode:
		return in.evalLazySeq(node, env)
	case *ast.DefProtocolNode:
		return in.evalDefProtocol(node)
	case *ast.ExtendTypeNode:
		return in.evalExtendType(node, env)
	case *ast.ReifyNode:
		return in.evalReify(node, env)
	case *ast.DefMultiNode:
		return in.evalDefMulti(node, env)
	case *ast.DefMethodNode:
		return in.evalDefMethod(node, env)
	case *ast.CaseStarNode:
		return in.evalCaseStar(node, env)
	default:
		return value.Nil, fmt.Errorf("treewalk: unhandled node kind %T", n)
	}
}

// evalBody evaluates a statement sequence, returning the last result
// (or nil for an empty body).
func (in *Interp) evalBody(body []ast.Node, env *Env) (value.Value, error) {
	result := value.Nil
	for _, stmt := range body {
		var err error
		result, err = in.Eval(stmt, env)
		if err != nil {
			return value.Nil, err
		}
	}
	return result, nil
}

func (in *Interp) evalVarRef(node *ast.VarRefNode) (value.Value, error) {
	v, err := in.resolveVar(node.Ns, node.Name, node.Source())
	if err != nil {
		return value.Nil, err
	}
	return in.Frames.Deref(v), nil
}

func (in *Interp) resolveVar(nsName, sym string, where ast.SourceInfo) (*ns.Var, error) {
	target, ok := in.Reg.Find(nsName)
	if !ok {
		return nil, fmt.Errorf("%s: no such namespace: %s", where, nsName)
	}
	v, ok := target.Resolve(sym)
	if !ok {
		return nil, fmt.Errorf("%s: unable to resolve var: %s/%s", where, nsName, sym)
	}
	return v, nil
}

func (in *Interp) evalIf(node *ast.IfNode, env *Env) (value.Value, error) {
	test, err := in.Eval(node.Test, env)
	if err != nil {
		return value.Nil, err
	}
	if test.Truthy() {
		return in.Eval(node.Then, env)
	}
	if node.Else == nil {
		return value.Nil, nil
	}
	return in.Eval(node.Else, env)
}

func (in *Interp) evalLet(node *ast.LetNode, env *Env) (value.Value, error) {
	frame := NewEnv(env)
	for _, b := range node.Bindings {
		v, err := in.Eval(b.Init, frame)
		if err != nil {
			return value.Nil, err
		}
		frame.Define(b.Name, v)
	}
	return in.evalBody(node.Body, frame)
}

func (in *Interp) evalLetFn(node *ast.LetFnNode, env *Env) (value.Value, error) {
	frame := NewEnv(env)
	for _, b := range node.Bindings {
		frame.Define(b.Name, value.Nil)
	}
	for _, b := range node.Bindings {
		v, err := in.Eval(b.Init, frame)
		if err != nil {
			return value.Nil, err
		}
		frame.Define(b.Name, v)
	}
	return in.evalBody(node.Body, frame)
}

func (in *Interp) evalLoop(node *ast.LoopNode, env *Env) (value.Value, error) {
	frame := NewEnv(env)
	for _, b := range node.Bindings {
		v, err := in.Eval(b.Init, frame)
		if err != nil {
			return value.Nil, err
		}
		frame.Define(b.Name, v)
	}
	for {
		result, err := in.evalBody(node.Body, frame)
		if err == nil {
			return result, nil
		}
		rs, ok := err.(recurSignal)
		if !ok {
			return value.Nil, err
		}
		if len(rs.args) != len(node.Bindings) {
			return value.Nil, fmt.Errorf("%s: recur arity mismatch: expected %d, got %d",
				node.Source(), len(node.Bindings), len(rs.args))
		}
		next := NewEnv(env)
		for i, b := range node.Bindings {
			next.Define(b.Name, rs.args[i])
		}
		frame = next
	}
}

func (in *Interp) evalRecur(node *ast.RecurNode, env *Env) (value.Value, error) {
	args := make([]value.Value, len(node.Args))
	for i, a := range node.Args {
		v, err := in.Eval(a, env)
		if err != nil {
			return value.Nil, err
		}
		args[i] = v
	}
	return value.Nil, recurSignal{args: args}
}

func (in *Interp) evalFn(node *ast.FnNode, env *Env) (value.Value, error) {
	closureEnv := env
	if node.Name != "" {
		closureEnv = NewEnv(env)
	}
	cl := &Closure{Name: node.Name, Arities: node.Arities, Env: closureEnv, DefiningNS: node.DefiningNS}
	fv := value.NewFn(cl)
	if node.Name != "" {
		closureEnv.Define(node.Name, fv)
	}
	if in.Alloc != nil {
		in.Alloc.Track(cl, 0, "treewalk.Closure", gc.TierGC)
	}
	return fv, nil
}

func (in *Interp) evalCall(node *ast.CallNode, env *Env) (value.Value, error) {
	fnVal, err := in.Eval(node.Fn, env)
	if err != nil {
		return value.Nil, err
	}
	args := make([]value.Value, len(node.Args))
	for i, a := range node.Args {
		v, err := in.Eval(a, env)
		if err != nil {
			return value.Nil, err
		}
		args[i] = v
	}
	if in.Caller == nil {
		return value.Nil, fmt.Errorf("%s: no dispatch hub wired into this interpreter", node.Source())
	}
	return in.Caller.Call(fnVal, args)
}

// CallClosure runs cl with args (spec.md §4.4's per-closure-call
// responsibilities): select the matching arity, bind params into a
// fresh frame rooted at the closure's captured Env, switch
// current_ns to the closure's defining_ns for the duration of the
// call (restored on every exit path), and loop on `recur`.
func (in *Interp) CallClosure(caller value.Caller, cl *Closure, args []value.Value) (value.Value, error) {
	if caller != nil {
		in.Caller = caller
	}
	arity, ok := selectArity(cl.Arities, len(args))
	if !ok {
		return value.Nil, fmt.Errorf("arity_error: %s does not accept %d argument(s)", closureLabel(cl), len(args))
	}

	savedNS := in.Reg.Current()
	if defNS, ok := in.Reg.Find(cl.DefiningNS); ok {
		in.Reg.SetCurrent(defNS)
	}
	defer in.Reg.SetCurrent(savedNS)

	for {
		frame := NewEnv(cl.Env)
		if err := bindParams(frame, arity, args); err != nil {
			return value.Nil, err
		}
		result, err := in.evalBody(arity.Body, frame)
		if err == nil {
			return result, nil
		}
		rs, isRecur := err.(recurSignal)
		if !isRecur {
			return value.Nil, err
		}
		if len(rs.args) != len(arity.Params) {
			return value.Nil, fmt.Errorf("arity_error: recur in %s expected %d argument(s), got %d",
				closureLabel(cl), len(arity.Params), len(rs.args))
		}
		args = rs.args
	}
}

func closureLabel(cl *Closure) string {
	if cl.Name == "" {
		return "fn"
	}
	return cl.Name
}

// bindParams binds arity's fixed params positionally and, if variadic,
// collects the remainder into a list bound to the last param name.
func bindParams(frame *Env, arity *ast.FnArity, args []value.Value) error {
	fixed := len(arity.Params)
	if arity.Variadic {
		fixed--
	}
	for i := 0; i < fixed; i++ {
		frame.Define(arity.Params[i], args[i])
	}
	if !arity.Variadic {
		return nil
	}
	rest := value.EmptyList()
	for i := len(args) - 1; i >= fixed; i-- {
		rest = value.ConsList(args[i], rest.AsList())
	}
	frame.Define(arity.Params[fixed], rest)
	return nil
}

func (in *Interp) evalDef(node *ast.DefNode, env *Env) (value.Value, error) {
	v := in.Reg.Current().Intern(node.Name)
	if node.Doc != "" {
		v.Doc = node.Doc
	}
	if node.IsMacro {
		v.IsMacro = true
	}
	applyDefMeta(v, node.Meta)
	if node.Init != nil {
		val, err := in.Eval(node.Init, env)
		if err != nil {
			return value.Nil, err
		}
		ns.BindRoot(v, val)
	}
	return value.NewVarRef(v), nil
}

// applyDefMeta reads :dynamic/:private/:const off a def's metadata map
// (spec.md §4.3.2 "metadata on name parsed for :dynamic :private :const
// :doc flags").
func applyDefMeta(v *ns.Var, meta value.Value) {
	if meta.Kind() != value.KindMap {
		return
	}
	m := meta.AsMap()
	if val, ok := m.Get(value.Kw("", "dynamic")); ok && val.Truthy() {
		v.IsDynamic = true
	}
	if val, ok := m.Get(value.Kw("", "private")); ok && val.Truthy() {
		v.IsPrivate = true
	}
	if val, ok := m.Get(value.Kw("", "const")); ok && val.Truthy() {
		v.IsConst = true
	}
	if val, ok := m.Get(value.Kw("", "doc")); ok && val.Kind() == value.KindString {
		v.Doc = val.AsString()
	}
}

func (in *Interp) evalSetBang(node *ast.SetBangNode, env *Env) (value.Value, error) {
	v, err := in.resolveVar(in.Reg.Current().Name, node.Name, node.Source())
	if err != nil {
		return value.Nil, err
	}
	val, err := in.Eval(node.Val, env)
	if err != nil {
		return value.Nil, err
	}
	if !in.Frames.Set(v, val) {
		return value.Nil, fmt.Errorf("%s: set! on a non-dynamic or unbound var: %s", node.Source(), node.Name)
	}
	return val, nil
}

func (in *Interp) evalThrow(node *ast.ThrowNode, env *Env) (value.Value, error) {
	v, err := in.Eval(node.Expr, env)
	if err != nil {
		return value.Nil, err
	}
	return value.Nil, Throw(v)
}

func (in *Interp) evalTry(node *ast.TryNode, env *Env) (value.Value, error) {
	result, err := in.evalBody(node.Body, env)
	if err != nil {
		result, err = in.runCatchChain(node, err, env)
	}
	if len(node.Finally) > 0 {
		if _, ferr := in.evalBody(node.Finally, env); ferr != nil {
			return value.Nil, ferr
		}
	}
	return result, err
}

// runCatchChain walks from the outermost TryNode's first catch through
// its Inner chain, trying each clause's ClassName against err in turn
// (spec.md §4.3.2 "analyzer nests multi-catch into a chain of
// single-catch try nodes").
func (in *Interp) runCatchChain(node *ast.TryNode, err error, env *Env) (value.Value, error) {
	if !isCatchable(err) {
		return value.Nil, err
	}
	thrown := toThrowable(err)
	for link := node; link != nil; link = link.Inner {
		if link.Catch == nil {
			continue
		}
		if !classMatches(link.Catch.ClassName, thrown) {
			continue
		}
		frame := NewEnv(env)
		frame.Define(link.Catch.BindName, thrown)
		return in.evalBody(link.Catch.Body, frame)
	}
	return value.Nil, err
}

// classMatches reports whether a catch clause's declared class name
// accepts thrown. "Exception"/"Throwable"/"_" catch anything, matching
// the teacher's catch-all convention; a record's TypeName is compared
// directly, otherwise the protocol type key (e.g. "map", "string") is
// compared so `(catch ExceptionInfo e ...)`-style patterns still work
// against synthesized ex-info records.
func classMatches(className string, thrown value.Value) bool {
	switch className {
	case "", "_", "Exception", "Throwable", "Object":
		return true
	}
	return protocol.TypeKey(thrown) == className
}

func (in *Interp) evalLazySeq(node *ast.LazySeqNode, env *Env) (value.Value, error) {
	cl := &Closure{Env: env, Arities: []*ast.FnArity{{Body: node.Body}}}
	if in.Alloc != nil {
		in.Alloc.Track(cl, 0, "treewalk.Closure", gc.TierGC)
	}
	return value.NewLazySeq(value.NewFn(cl)), nil
}

func (in *Interp) evalDefProtocol(node *ast.DefProtocolNode) (value.Value, error) {
	names := make([]string, len(node.Methods))
	for i, m := range node.Methods {
		names[i] = m.Name
	}
	p := value.NewProtocol(node.Name, names)
	v := in.Reg.Current().Intern(node.Name)
	ns.BindRoot(v, p)
	return p, nil
}

func (in *Interp) evalExtendType(node *ast.ExtendTypeNode, env *Env) (value.Value, error) {
	pv, err := in.resolveVar(in.Reg.Current().Name, node.ProtocolName, node.Source())
	if err != nil {
		return value.Nil, err
	}
	proto := in.Frames.Deref(pv).AsProtocol()
	for _, m := range node.Methods {
		fnVal, err := in.evalFn(m.Fn, env)
		if err != nil {
			return value.Nil, err
		}
		protocol.Extend(proto, node.TypeKey, m.Name, fnVal)
	}
	return value.Nil, nil
}

func (in *Interp) evalReify(node *ast.ReifyNode, env *Env) (value.Value, error) {
	in.reifyCounter++
	typeName := fmt.Sprintf("reify$%d", in.reifyCounter)
	inst := value.NewRecord(typeName, value.NewMap(nil).AsMap())
	for _, protoName := range node.Protocols {
		pv, err := in.resolveVar(in.Reg.Current().Name, protoName, node.Source())
		if err != nil {
			return value.Nil, err
		}
		proto := in.Frames.Deref(pv).AsProtocol()
		for _, m := range node.Methods {
			fnVal, err := in.evalFn(m.Fn, env)
			if err != nil {
				return value.Nil, err
			}
			protocol.Extend(proto, typeName, m.Name, fnVal)
		}
	}
	return inst, nil
}

func (in *Interp) evalDefMulti(node *ast.DefMultiNode, env *Env) (value.Value, error) {
	dispatchFn, err := in.Eval(node.DispatchFn, env)
	if err != nil {
		return value.Nil, err
	}
	m := value.NewMultiFn(node.Name, dispatchFn)
	v := in.Reg.Current().Intern(node.Name)
	ns.BindRoot(v, m)
	return m, nil
}

func (in *Interp) evalDefMethod(node *ast.DefMethodNode, env *Env) (value.Value, error) {
	mv, err := in.resolveVar(in.Reg.Current().Name, node.MultiName, node.Source())
	if err != nil {
		return value.Nil, err
	}
	multi := in.Frames.Deref(mv).AsMultiFn()
	dispatchVal, err := in.Eval(node.DispatchVal, env)
	if err != nil {
		return value.Nil, err
	}
	fnVal, err := in.evalFn(node.Fn, env)
	if err != nil {
		return value.Nil, err
	}
	key := protocol.DispatchKey(dispatchVal)
	isDefaultKw := dispatchVal.Kind() == value.KindKeyword &&
		dispatchVal.AsKeyword().Ns == "" && dispatchVal.AsKeyword().Name == "default"
	if isDefaultKw {
		multi.Default = fnVal
	} else {
		multi.Methods[key] = fnVal
	}
	multi.CacheInvalidate()
	return fnVal, nil
}

func (in *Interp) evalCaseStar(node *ast.CaseStarNode, env *Env) (value.Value, error) {
	exprVal, err := in.Eval(node.Expr, env)
	if err != nil {
		return value.Nil, err
	}
	h := caseHash(exprVal, node.TestType)
	bucket := (h >> node.Shift) & int64(node.Mask)
	clauses, ok := node.Clauses[bucket]
	if !ok {
		return in.Eval(node.Default, env)
	}
	if node.SkipCheck != nil && node.SkipCheck[bucket] && len(clauses) == 1 {
		return in.Eval(clauses[0].Then, env)
	}
	for _, c := range clauses {
		testVal, err := in.Eval(c.Test, env)
		if err != nil {
			return value.Nil, err
		}
		matched := false
		if node.TestType == ast.CaseTestHashIdentity {
			matched = value.Is(testVal, exprVal)
		} else {
			matched = value.Equal(testVal, exprVal)
		}
		if matched {
			return in.Eval(c.Then, env)
		}
	}
	return in.Eval(node.Default, env)
}
