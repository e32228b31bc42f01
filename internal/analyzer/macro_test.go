package analyzer

import (
	"testing"

	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/value"
)

// expandingCaller stands in for the dispatch hub during macro expansion
// tests: calling any fn returns a fixed Value, regardless of args.
type expandingCaller struct {
	result value.Value
}

func (c expandingCaller) Call(fn value.Value, args []value.Value) (value.Value, error) {
	return c.result, nil
}

func TestExpandMacroAnalyzesTheExpansion(t *testing.T) {
	a := newTestAnalyzer()
	macroVar := a.reg.Current().Intern("my-macro")
	macroVar.IsMacro = true

	// The macro call expands to `(+ 1 2)`.
	one := value.Int(1)
	two := value.Int(2)
	plusSym := value.Sym("", "+")
	list := value.ConsList(two, value.EmptyList().AsList())
	list = value.ConsList(one, list.AsList())
	list = value.ConsList(plusSym, list.AsList())
	a.caller = expandingCaller{result: list}

	n := analyzeSrc(t, a, `(my-macro 1 2)`)
	call, ok := n.(*ast.CallNode)
	if !ok {
		t.Fatalf("expected the macro to expand to a *ast.CallNode, got %T", n)
	}
	callee, ok := call.Fn.(*ast.VarRefNode)
	if !ok || callee.Name != "+" {
		t.Fatalf("expected the expansion to call +, got %+v", call.Fn)
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 args in the expansion, got %d", len(call.Args))
	}
}

func TestExpandMacroSuppressesGCDuringExpansion(t *testing.T) {
	a := newTestAnalyzer()
	macroVar := a.reg.Current().Intern("noop-macro")
	macroVar.IsMacro = true
	a.caller = expandingCaller{result: value.Nil}

	if a.alloc.Suppressed() {
		t.Fatal("expected the allocator to start unsuppressed")
	}
	_ = analyzeSrc(t, a, `(noop-macro)`)
	if a.alloc.Suppressed() {
		t.Error("expected expandMacro to leave the allocator unsuppressed once expansion completes")
	}
}
