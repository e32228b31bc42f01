package analyzer

import (
	"testing"

	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/gc"
	"github.com/cwbudde/go-clj/internal/ns"
	"github.com/cwbudde/go-clj/internal/reader"
	"github.com/cwbudde/go-clj/internal/value"
)

// builtinNames lists every core symbol the desugaring code paths in this
// package resolve by name; tests intern stub Vars for each so
// resolveBuiltinRef never fails on a missing symbol.
var builtinNames = []string{
	"nth", "seq", "first", "next", "get", "__seq-to-map", "hash-map",
	"vector", "hash-set", "list", "map", "mapcat", "take-while", "+", "str",
	"xs", "ys", "pos?", "x",
}

type nopCaller struct{ result value.Value }

func (c nopCaller) Call(fn value.Value, args []value.Value) (value.Value, error) {
	return c.result, nil
}

// newTestAnalyzer builds an Analyzer over a fresh registry with every
// builtin name this package's desugars reference already interned.
func newTestAnalyzer() *Analyzer {
	reg := ns.NewRegistry()
	core := reg.FindOrCreate("clojure.core")
	for _, name := range builtinNames {
		core.Intern(name)
	}
	user := reg.Current()
	for _, name := range builtinNames {
		v, _ := core.Resolve(name)
		user.Refer(name, v)
	}
	arena := ast.NewArena()
	alloc := gc.NewAllocator(0)
	return New(arena, reg, alloc, nopCaller{result: value.Nil}, "test.clj")
}

// readAll reads every form out of src, returning any reader error to the
// caller.
func readAll(t *testing.T, src string) ([]reader.Form, error) {
	t.Helper()
	forms, err := reader.New(src).ReadAll()
	return forms, err
}

// analyzeSrc reads exactly one form from src and analyzes it.
func analyzeSrc(t *testing.T, a *Analyzer, src string) ast.Node {
	t.Helper()
	forms, err := reader.New(src).ReadAll()
	if err != nil {
		t.Fatalf("reader error: %v", err)
	}
	if len(forms) != 1 {
		t.Fatalf("expected exactly one form, got %d", len(forms))
	}
	n, err := a.Analyze(forms[0])
	if err != nil {
		t.Fatalf("analyze error: %v", err)
	}
	return n
}

func TestAnalyzeConstant(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `42`)
	c, ok := n.(*ast.ConstantNode)
	if !ok {
		t.Fatalf("expected *ast.ConstantNode, got %T", n)
	}
	if c.Value.AsInt() != 42 {
		t.Errorf("expected 42, got %v", c.Value.AsInt())
	}
}

func TestAnalyzeIfWithoutElse(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(if true 1)`)
	ifNode, ok := n.(*ast.IfNode)
	if !ok {
		t.Fatalf("expected *ast.IfNode, got %T", n)
	}
	if ifNode.Else != nil {
		t.Error("expected a missing else branch to stay nil")
	}
}

func TestAnalyzeIfRejectsWrongArity(t *testing.T) {
	a := newTestAnalyzer()
	forms, _ := reader.New(`(if true)`).ReadAll()
	if _, err := a.Analyze(forms[0]); err == nil {
		t.Fatal("expected an error for `if` with only one argument")
	}
}

func TestAnalyzeDoEmptyBody(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(do)`)
	doNode, ok := n.(*ast.DoNode)
	if !ok {
		t.Fatalf("expected *ast.DoNode, got %T", n)
	}
	if len(doNode.Body) != 0 {
		t.Errorf("expected an empty body, got %d forms", len(doNode.Body))
	}
}

func TestAnalyzeLetSimpleBindings(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(let [x 1 y 2] x)`)
	letNode, ok := n.(*ast.LetNode)
	if !ok {
		t.Fatalf("expected *ast.LetNode, got %T", n)
	}
	if len(letNode.Bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(letNode.Bindings))
	}
	if letNode.Bindings[0].Name != "x" || letNode.Bindings[1].Name != "y" {
		t.Errorf("expected bindings x, y in order; got %v", letNode.Bindings)
	}
}

func TestAnalyzeLetVectorDestructure(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(let [[a b] x] a)`)
	letNode, ok := n.(*ast.LetNode)
	if !ok {
		t.Fatalf("expected *ast.LetNode, got %T", n)
	}
	// synthetic vec temp, plus a, b
	if len(letNode.Bindings) != 3 {
		t.Fatalf("expected 3 bindings (temp + a + b), got %d: %v", len(letNode.Bindings), letNode.Bindings)
	}
	if letNode.Bindings[1].Name != "a" || letNode.Bindings[2].Name != "b" {
		t.Errorf("expected a, b bound after the synthetic temp, got %v", letNode.Bindings)
	}
}

func TestAnalyzeLetVectorRestAndAs(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(let [[a & more :as all] x] a)`)
	letNode := n.(*ast.LetNode)
	names := make([]string, len(letNode.Bindings))
	for i, b := range letNode.Bindings {
		names[i] = b.Name
	}
	if names[len(names)-1] != "all" {
		t.Errorf("expected :as binding 'all' last, got %v", names)
	}
	foundMore := false
	for _, nm := range names {
		if nm == "more" {
			foundMore = true
		}
	}
	if !foundMore {
		t.Errorf("expected a 'more' rest binding, got %v", names)
	}
}

func TestAnalyzeLetMapDestructureKeysAndAs(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(let [{:keys [a b] :as m} x] a)`)
	letNode := n.(*ast.LetNode)
	names := make([]string, len(letNode.Bindings))
	for i, b := range letNode.Bindings {
		names[i] = b.Name
	}
	want := map[string]bool{"a": false, "b": false, "m": false}
	for _, nm := range names {
		if _, ok := want[nm]; ok {
			want[nm] = true
		}
	}
	for nm, found := range want {
		if !found {
			t.Errorf("expected a binding named %q among %v", nm, names)
		}
	}
}

func TestAnalyzeLetMapDestructureOrDefault(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(let [{:keys [a] :or {a 10}} x] a)`)
	letNode := n.(*ast.LetNode)
	var aInit ast.Node
	for _, b := range letNode.Bindings {
		if b.Name == "a" {
			aInit = b.Init
		}
	}
	call, ok := aInit.(*ast.CallNode)
	if !ok {
		t.Fatalf("expected the 'a' binding to init from a get call, got %T", aInit)
	}
	if len(call.Args) != 3 {
		t.Fatalf("expected get called with a default arg (map, key, default), got %d args", len(call.Args))
	}
}

func TestAnalyzeFnMultiArity(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(fn ([x] x) ([x y] y))`)
	fn, ok := n.(*ast.FnNode)
	if !ok {
		t.Fatalf("expected *ast.FnNode, got %T", n)
	}
	if len(fn.Arities) != 2 {
		t.Fatalf("expected 2 arities, got %d", len(fn.Arities))
	}
	if len(fn.Arities[0].Params) != 1 || len(fn.Arities[1].Params) != 2 {
		t.Errorf("expected arities of 1 and 2 params, got %v", fn.Arities)
	}
}

func TestAnalyzeFnSingleArityShorthand(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(fn [x] x)`)
	fn := n.(*ast.FnNode)
	if len(fn.Arities) != 1 {
		t.Fatalf("expected 1 arity, got %d", len(fn.Arities))
	}
	if fn.Arities[0].Variadic {
		t.Error("expected a non-variadic arity")
	}
}

func TestAnalyzeFnVariadic(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(fn [x & rest] rest)`)
	fn := n.(*ast.FnNode)
	if !fn.Arities[0].Variadic {
		t.Error("expected the arity to be marked variadic")
	}
	if len(fn.Arities[0].Params) != 2 {
		t.Errorf("expected 2 params (x, rest), got %d", len(fn.Arities[0].Params))
	}
}

func TestAnalyzeFnDestructuredParam(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(fn [[a b]] a)`)
	fn := n.(*ast.FnNode)
	arity := fn.Arities[0]
	if len(arity.Params) != 1 {
		t.Fatalf("expected a single synthetic param, got %d", len(arity.Params))
	}
	if len(arity.Body) != 1 {
		t.Fatalf("expected a single wrapping let in the body, got %d nodes", len(arity.Body))
	}
	if _, ok := arity.Body[0].(*ast.LetNode); !ok {
		t.Errorf("expected the body to be wrapped in a let for destructuring, got %T", arity.Body[0])
	}
}

func TestAnalyzeLoopRecurArityMismatch(t *testing.T) {
	a := newTestAnalyzer()
	forms, _ := reader.New(`(loop [x 0] (recur x x))`).ReadAll()
	if _, err := a.Analyze(forms[0]); err == nil {
		t.Fatal("expected a recur arity mismatch error")
	}
}

func TestAnalyzeLoopRecurMatchingArity(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(loop [x 0] (recur x))`)
	loopNode, ok := n.(*ast.LoopNode)
	if !ok {
		t.Fatalf("expected *ast.LoopNode, got %T", n)
	}
	if len(loopNode.Bindings) != 1 {
		t.Fatalf("expected 1 loop binding, got %d", len(loopNode.Bindings))
	}
}

func TestAnalyzeRecurOutsideLoopFails(t *testing.T) {
	a := newTestAnalyzer()
	forms, _ := reader.New(`(recur 1)`).ReadAll()
	if _, err := a.Analyze(forms[0]); err == nil {
		t.Fatal("expected an error for recur outside a loop/fn")
	}
}

func TestAnalyzeLoopDestructuredBinding(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(loop [[a b] x] (recur [a b]))`)
	loopNode := n.(*ast.LoopNode)
	if len(loopNode.Bindings) != 1 {
		t.Fatalf("expected a single synthetic loop target, got %d", len(loopNode.Bindings))
	}
	if len(loopNode.Body) != 1 {
		t.Fatalf("expected a single wrapping let in the loop body, got %d", len(loopNode.Body))
	}
	if _, ok := loopNode.Body[0].(*ast.LetNode); !ok {
		t.Errorf("expected loop body wrapped in a destructuring let, got %T", loopNode.Body[0])
	}
}

func TestAnalyzeDefInternsVar(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(def x 10)`)
	def, ok := n.(*ast.DefNode)
	if !ok {
		t.Fatalf("expected *ast.DefNode, got %T", n)
	}
	if def.Name != "x" {
		t.Errorf("expected name x, got %s", def.Name)
	}
	if _, ok := a.reg.Current().Resolve("x"); !ok {
		t.Error("expected def to intern the var in the current namespace")
	}
}

func TestAnalyzeDefWithDocstring(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(def x "docs" 10)`)
	def := n.(*ast.DefNode)
	if def.Doc != "docs" {
		t.Errorf("expected docstring 'docs', got %q", def.Doc)
	}
}

func TestAnalyzeDefMacroSetsIsMacro(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(defmacro m (fn [x] x))`)
	def, ok := n.(*ast.DefNode)
	if !ok {
		t.Fatalf("expected *ast.DefNode, got %T", n)
	}
	if !def.IsMacro {
		t.Error("expected IsMacro to be true for defmacro")
	}
	v, ok := a.reg.Current().Resolve("m")
	if !ok || !v.IsMacro {
		t.Error("expected the interned var to be marked as a macro")
	}
}

func TestAnalyzeQuoteCapturesFormAsValue(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(quote (a b c))`)
	q, ok := n.(*ast.QuoteNode)
	if !ok {
		t.Fatalf("expected *ast.QuoteNode, got %T", n)
	}
	if q.Value.Kind() != value.KindList {
		t.Errorf("expected a quoted list value, got %v", q.Value.Kind())
	}
}

func TestAnalyzeTryChainsCatchClauses(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(try 1 (catch ArithmeticException e e) (catch Exception e e) (finally 2))`)
	outer, ok := n.(*ast.TryNode)
	if !ok {
		t.Fatalf("expected *ast.TryNode, got %T", n)
	}
	if outer.Catch == nil || outer.Catch.ClassName != "ArithmeticException" {
		t.Fatalf("expected the outer node's own catch to be the first-written clause, got %+v", outer.Catch)
	}
	if outer.Inner == nil || outer.Inner.Catch == nil || outer.Inner.Catch.ClassName != "Exception" {
		t.Fatalf("expected an inner link carrying the second catch clause")
	}
	if len(outer.Finally) != 1 {
		t.Errorf("expected finally only on the outermost node")
	}
	if outer.Inner.Finally != nil {
		t.Errorf("expected no finally on the inner link")
	}
	if outer.Inner.Body != nil {
		t.Errorf("expected no body on the inner link")
	}
}

func TestAnalyzeTryNoCatch(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(try 1)`)
	tryNode := n.(*ast.TryNode)
	if tryNode.Catch != nil {
		t.Error("expected no catch clause")
	}
	if len(tryNode.Body) != 1 {
		t.Errorf("expected a single body form")
	}
}

func TestAnalyzeThrowRequiresOneArg(t *testing.T) {
	a := newTestAnalyzer()
	forms, _ := reader.New(`(throw)`).ReadAll()
	if _, err := a.Analyze(forms[0]); err == nil {
		t.Fatal("expected an error for throw with no argument")
	}
}

func TestAnalyzeLazySeqWrapsBody(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(lazy-seq 1 2)`)
	ls, ok := n.(*ast.LazySeqNode)
	if !ok {
		t.Fatalf("expected *ast.LazySeqNode, got %T", n)
	}
	if len(ls.Body) != 2 {
		t.Errorf("expected 2 body forms, got %d", len(ls.Body))
	}
}

func TestAnalyzeLiteralVectorOfConstantsFolds(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `[1 2 3]`)
	c, ok := n.(*ast.ConstantNode)
	if !ok {
		t.Fatalf("expected a folded *ast.ConstantNode, got %T", n)
	}
	if c.Value.Kind() != value.KindVector {
		t.Errorf("expected a vector value, got %v", c.Value.Kind())
	}
}

func TestAnalyzeLiteralVectorWithNonConstStaysCall(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `[1 x]`)
	if _, ok := n.(*ast.CallNode); !ok {
		t.Fatalf("expected a *ast.CallNode to the vector builtin, got %T", n)
	}
}

func TestAnalyzeUnresolvedSymbolErrors(t *testing.T) {
	a := newTestAnalyzer()
	forms, _ := reader.New(`totally-unbound-name`).ReadAll()
	if _, err := a.Analyze(forms[0]); err == nil {
		t.Fatal("expected an unresolved-symbol error")
	}
}

func TestAnalyzeLocalShadowsSpecialForm(t *testing.T) {
	a := newTestAnalyzer()
	// `if` bound as a local inside the let shadows the special form, so
	// `(if)` in the body analyzes as an ordinary call to the local value
	// rather than being parsed as an `if` special form (which would
	// reject this arity).
	n := analyzeSrc(t, a, `(let [if 5] (if))`)
	letNode, ok := n.(*ast.LetNode)
	if !ok {
		t.Fatalf("expected *ast.LetNode, got %T", n)
	}
	call, ok := letNode.Body[0].(*ast.CallNode)
	if !ok {
		t.Fatalf("expected the shadowed (if) to analyze as a call, got %T", letNode.Body[0])
	}
	if _, ok := call.Fn.(*ast.LocalRefNode); !ok {
		t.Errorf("expected the call target to be the shadowing local, got %T", call.Fn)
	}
}
