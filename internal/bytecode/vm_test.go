package bytecode

import (
	"testing"

	"github.com/cwbudde/go-clj/internal/analyzer"
	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/gc"
	"github.com/cwbudde/go-clj/internal/ns"
	"github.com/cwbudde/go-clj/internal/reader"
	"github.com/cwbudde/go-clj/internal/value"
)

// testHub is a minimal value.Caller routing this package's own Closures
// back into the VM and everything else straight to its BuiltinFn, kept
// local because internal/dispatch imports this package, so these tests
// cannot import it — the same shape internal/treewalk's own testHub uses.
type testHub struct{ vm *VM }

func (h testHub) Call(fn value.Value, args []value.Value) (value.Value, error) {
	if _, ok := fn.AsFn().(*Closure); ok {
		return h.vm.Call(fn, args)
	}
	if fn.Kind() == value.KindBuiltinFn {
		return fn.AsBuiltinFn().Fn(h, args)
	}
	return value.Nil, nil
}

func newTestSuite(t *testing.T) (*analyzer.Analyzer, *Compiler, *VM) {
	t.Helper()
	reg := ns.NewRegistry()
	alloc := gc.NewAllocator(0)
	frames := ns.NewFrames()

	core := reg.FindOrCreate("clojure.core")
	// +, *, and < compile straight to their intrinsic opcode (see
	// compileCall's coreNS-qualified shortcut) and so are never actually
	// invoked as these BuiltinFns at runtime; they still need a resolvable
	// Var here since the analyzer must tag the call's VarRefNode with its
	// defining namespace before the compiler can recognize the shortcut.
	for _, name := range []string{"+", "*", "<"} {
		v := core.Intern(name)
		ns.BindRoot(v, value.NewBuiltinFn(&value.BuiltinFn{Name: name, Variadic: true,
			Fn: func(c value.Caller, args []value.Value) (value.Value, error) { return value.Nil, nil }}))
	}
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
	for _, name := range []string{"+", "-", "*", "<", "="} {
		v, _ := core.Resolve(name)
		user.Refer(name, v)
	}

	vm := NewVM(reg, alloc, frames)
	hub := testHub{vm: vm}
	vm.SetCaller(hub)

	arena := ast.NewArena()
	a := analyzer.New(arena, reg, alloc, hub, "test.clj")
	c := New(reg)
	return a, c, vm
}

func compileOne(t *testing.T, a *analyzer.Analyzer, c *Compiler, src string) *FnProto {
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
	proto, err := c.CompileTopLevel(n, "test.clj")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return proto
}

func runSrc(t *testing.T, src string) value.Value {
	t.Helper()
	a, c, vm := newTestSuite(t)
	proto := compileOne(t, a, c, src)
	v, err := vm.RunTopLevel(proto)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	return v
}

func TestVMConstant(t *testing.T) {
	if v := runSrc(t, `42`); v.AsInt() != 42 {
		t.Errorf("expected 42, got %v", v.PrStr())
	}
}

func TestVMArithmeticIntrinsics(t *testing.T) {
	if v := runSrc(t, `(+ 3 4)`); v.AsInt() != 7 {
		t.Errorf("expected 7, got %v", v.PrStr())
	}
	if v := runSrc(t, `(* 6 7)`); v.AsInt() != 42 {
		t.Errorf("expected 42, got %v", v.PrStr())
	}
	if v := runSrc(t, `(< 1 2)`); !v.AsBool() {
		t.Errorf("expected true")
	}
}

func TestVMIf(t *testing.T) {
	if v := runSrc(t, `(if true 1 2)`); v.AsInt() != 1 {
		t.Errorf("expected 1, got %v", v.PrStr())
	}
	if v := runSrc(t, `(if false 1 2)`); v.AsInt() != 2 {
		t.Errorf("expected 2, got %v", v.PrStr())
	}
}

func TestVMLet(t *testing.T) {
	v := runSrc(t, `(let [a 1 b 2] (+ a b))`)
	if v.AsInt() != 3 {
		t.Errorf("expected 3, got %v", v.PrStr())
	}
}

func TestVMFnCall(t *testing.T) {
	v := runSrc(t, `((fn [x y] (+ x y)) 3 4)`)
	if v.AsInt() != 7 {
		t.Errorf("expected 7, got %v", v.PrStr())
	}
}

func TestVMClosureCapture(t *testing.T) {
	v := runSrc(t, `(let [n 10] ((fn [x] (+ x n)) 5))`)
	if v.AsInt() != 15 {
		t.Errorf("expected 15, got %v", v.PrStr())
	}
}

func TestVMRecursiveFn(t *testing.T) {
	v := runSrc(t, `((fn countdown [n] (if (= n 0) n (countdown (- n 1)))) 5)`)
	if v.AsInt() != 0 {
		t.Errorf("expected 0, got %v", v.PrStr())
	}
}

func TestVMLoopRecur(t *testing.T) {
	v := runSrc(t, `(loop [i 0 acc 0] (if (= i 3) acc (recur (+ i 1) (+ acc i))))`)
	if v.AsInt() != 3 {
		t.Errorf("expected 0+1+2=3, got %v", v.PrStr())
	}
}

func TestVMTryCatchThrow(t *testing.T) {
	v := runSrc(t, `(try (throw "boom") (catch Exception e "caught"))`)
	if v.AsString() != "caught" {
		t.Errorf("expected caught, got %v", v.PrStr())
	}
}

func TestVMTryFinallyAlwaysRunsOnUnmatchedThrow(t *testing.T) {
	a, c, vm := newTestSuite(t)
	vm.Reg.Current().Intern("fin-ran")
	fin, _ := vm.Reg.Current().Resolve("fin-ran")
	ns.BindRoot(fin, value.Bool(false))

	proto := compileOne(t, a, c, `(try (throw "boom") (catch NoSuchClass e e) (finally (def fin-ran true)))`)
	_, err := vm.RunTopLevel(proto)
	if err == nil {
		t.Fatal("expected the unmatched throw to propagate")
	}
	fin, _ = vm.Reg.Current().Resolve("fin-ran")
	if !fin.Root.Truthy() {
		t.Errorf("expected finally to run even though no catch matched")
	}
}

func TestVMDef(t *testing.T) {
	a, c, vm := newTestSuite(t)
	proto := compileOne(t, a, c, `(def answer 42)`)
	if _, err := vm.RunTopLevel(proto); err != nil {
		t.Fatalf("run error: %v", err)
	}
	v, ok := vm.Reg.Current().Resolve("answer")
	if !ok {
		t.Fatalf("expected answer to be interned")
	}
	if v.Root.AsInt() != 42 {
		t.Errorf("expected 42, got %v", v.Root.PrStr())
	}
}
