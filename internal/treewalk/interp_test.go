package treewalk

import (
	"testing"

	"github.com/cwbudde/go-clj/internal/analyzer"
	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/gc"
	"github.com/cwbudde/go-clj/internal/ns"
	"github.com/cwbudde/go-clj/internal/reader"
	"github.com/cwbudde/go-clj/internal/value"
)

// testHub is a minimal value.Caller that routes tree-walk closures back
// into this package's own Interp and everything else straight to its
// BuiltinFn — the same shape internal/lazyseq's stubCaller uses, kept
// local here because internal/dispatch imports this package, so these
// tests cannot import it.
type testHub struct{ in *Interp }

func (h testHub) Call(fn value.Value, args []value.Value) (value.Value, error) {
	switch c := fn.AsFn().(type) {
	case *Closure:
		return h.in.CallClosure(h, c, args)
	}
	if fn.Kind() == value.KindBuiltinFn {
		return fn.AsBuiltinFn().Fn(h, args)
	}
	if fn.Kind() == value.KindMultiFn {
		return value.Nil, nil
	}
	return value.Nil, nil
}

// newTestSuite wires a fresh Registry/Allocator/Frames/Analyzer/Interp
// together, with `+`/`-`/`=` builtins interned in clojure.core so
// call-bearing test forms have something to invoke.
func newTestSuite(t *testing.T) (*analyzer.Analyzer, *Interp) {
	t.Helper()
	reg := ns.NewRegistry()
	alloc := gc.NewAllocator(0)
	frames := ns.NewFrames()

	core := reg.FindOrCreate("clojure.core")
	plus := core.Intern("+")
	ns.BindRoot(plus, value.NewBuiltinFn(&value.BuiltinFn{
		Name:     "+",
		Variadic: true,
		Fn: func(c value.Caller, args []value.Value) (value.Value, error) {
			var total int64
			for _, a := range args {
				total += a.AsInt()
			}
			return value.Int(total), nil
		},
	}))
	minus := core.Intern("-")
	ns.BindRoot(minus, value.NewBuiltinFn(&value.BuiltinFn{
		Name:     "-",
		Variadic: true,
		Fn: func(c value.Caller, args []value.Value) (value.Value, error) {
			total := args[0].AsInt()
			for _, a := range args[1:] {
				total -= a.AsInt()
			}
			return value.Int(total), nil
		},
	}))
	eq := core.Intern("=")
	ns.BindRoot(eq, value.NewBuiltinFn(&value.BuiltinFn{
		Name:     "=",
		Variadic: true,
		Fn: func(c value.Caller, args []value.Value) (value.Value, error) {
			for i := 1; i < len(args); i++ {
				if !value.Equal(args[0], args[i]) {
					return value.Bool(false), nil
				}
			}
			return value.Bool(true), nil
		},
	}))
	user := reg.Current()
	for _, name := range []string{"+", "-", "="} {
		v, _ := core.Resolve(name)
		user.Refer(name, v)
	}

	arena := ast.NewArena()
	in := New(reg, alloc, frames)
	a := analyzer.New(arena, reg, alloc, testHub{in: in}, "test.clj")
	in.SetCaller(testHub{in: in})
	return a, in
}

func analyzeOne(t *testing.T, a *analyzer.Analyzer, src string) ast.Node {
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

func evalSrc(t *testing.T, src string) value.Value {
	t.Helper()
	a, in := newTestSuite(t)
	n := analyzeOne(t, a, src)
	v, err := in.Eval(n, nil)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	return v
}

func TestEvalConstant(t *testing.T) {
	v := evalSrc(t, `42`)
	if v.AsInt() != 42 {
		t.Errorf("expected 42, got %v", v.PrStr())
	}
}

func TestEvalIf(t *testing.T) {
	if v := evalSrc(t, `(if true 1 2)`); v.AsInt() != 1 {
		t.Errorf("expected 1, got %v", v.PrStr())
	}
	if v := evalSrc(t, `(if false 1 2)`); v.AsInt() != 2 {
		t.Errorf("expected 2, got %v", v.PrStr())
	}
	if v := evalSrc(t, `(if false 1)`); !v.IsNil() {
		t.Errorf("expected nil, got %v", v.PrStr())
	}
}

func TestEvalLet(t *testing.T) {
	v := evalSrc(t, `(let [a 1 b 2] (+ a b))`)
	if v.AsInt() != 3 {
		t.Errorf("expected 3, got %v", v.PrStr())
	}
}

func TestEvalFnCall(t *testing.T) {
	v := evalSrc(t, `((fn [x y] (+ x y)) 3 4)`)
	if v.AsInt() != 7 {
		t.Errorf("expected 7, got %v", v.PrStr())
	}
}

func TestEvalRecursiveFn(t *testing.T) {
	v := evalSrc(t, `((fn countdown [n] (if (= n 0) n (countdown (- n 1)))) 5)`)
	if v.AsInt() != 0 {
		t.Errorf("expected 0, got %v", v.PrStr())
	}
}

func TestEvalLoopRecur(t *testing.T) {
	v := evalSrc(t, `(loop [i 0 acc 0] (if (= i 3) acc (recur (+ i 1) (+ acc i))))`)
	if v.AsInt() != 3 {
		t.Errorf("expected 0+1+2=3, got %v", v.PrStr())
	}
}

func TestEvalTryCatchThrow(t *testing.T) {
	a, in := newTestSuite(t)
	n := analyzeOne(t, a, `(try (throw "boom") (catch Exception e "caught"))`)
	v, err := in.Eval(n, nil)
	if err != nil {
		t.Fatalf("eval error: %v", err)
	}
	if v.AsString() != "caught" {
		t.Errorf("expected caught, got %v", v.PrStr())
	}
}

func TestEvalTryFinallyAlwaysRuns(t *testing.T) {
	a, in := newTestSuite(t)
	fin := in.Reg.Current().Intern("fin-ran")
	ns.BindRoot(fin, value.Bool(false))
	n := analyzeOne(t, a, `(try 1 (finally (def fin-ran true)))`)
	if _, err := in.Eval(n, nil); err != nil {
		t.Fatalf("eval error: %v", err)
	}
	v, _ := in.Reg.Current().Resolve("fin-ran")
	if !v.Root.Truthy() {
		t.Errorf("expected finally clause to have run")
	}
}

func TestEvalDef(t *testing.T) {
	a, in := newTestSuite(t)
	n := analyzeOne(t, a, `(def answer 42)`)
	if _, err := in.Eval(n, nil); err != nil {
		t.Fatalf("eval error: %v", err)
	}
	v, ok := in.Reg.Current().Resolve("answer")
	if !ok {
		t.Fatalf("expected answer to be interned")
	}
	if v.Root.AsInt() != 42 {
		t.Errorf("expected 42, got %v", v.Root.PrStr())
	}
}
