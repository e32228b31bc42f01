package analyzer

import (
	"testing"

	"github.com/cwbudde/go-clj/internal/ast"
)

func TestAnalyzeForSingleBindingUsesMap(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(for [x xs] x)`)
	call, ok := n.(*ast.CallNode)
	if !ok {
		t.Fatalf("expected *ast.CallNode, got %T", n)
	}
	callee, ok := call.Fn.(*ast.VarRefNode)
	if !ok || callee.Name != "map" {
		t.Fatalf("expected a call to map, got %+v", call.Fn)
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 args (fn, coll), got %d", len(call.Args))
	}
	if _, ok := call.Args[0].(*ast.FnNode); !ok {
		t.Errorf("expected the first arg to be the element fn, got %T", call.Args[0])
	}
}

func TestAnalyzeForMultipleBindingsUseMapcat(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(for [x xs y ys] [x y])`)
	call, ok := n.(*ast.CallNode)
	if !ok {
		t.Fatalf("expected *ast.CallNode, got %T", n)
	}
	callee := call.Fn.(*ast.VarRefNode)
	if callee.Name != "mapcat" {
		t.Errorf("expected the outer combinator to be mapcat for a nested for, got %s", callee.Name)
	}
}

func TestAnalyzeForWhenWrapsInnermostInMapcat(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(for [x xs :when (pos? x)] x)`)
	call := n.(*ast.CallNode)
	callee := call.Fn.(*ast.VarRefNode)
	if callee.Name != "mapcat" {
		t.Errorf("expected mapcat when a :when modifier is present even on a single binding, got %s", callee.Name)
	}
}

func TestAnalyzeForWhileWrapsCollectionInTakeWhile(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(for [x xs :while (pos? x)] x)`)
	call := n.(*ast.CallNode)
	// args[1] is the (possibly wrapped) collection expression
	inner, ok := call.Args[1].(*ast.CallNode)
	if !ok {
		t.Fatalf("expected the collection arg to be a take-while call, got %T", call.Args[1])
	}
	calleeName := inner.Fn.(*ast.VarRefNode).Name
	if calleeName != "take-while" {
		t.Errorf("expected take-while, got %s", calleeName)
	}
}

func TestAnalyzeForRequiresBindingVector(t *testing.T) {
	a := newTestAnalyzer()
	forms, _ := readAll(t, `(for x x)`)
	if _, err := a.Analyze(forms[0]); err == nil {
		t.Fatal("expected an error when the first arg isn't a binding vector")
	}
}

func TestAnalyzeCaseStarParsesClauses(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(case* x 0 0 :default-val {5 [5 :five 6 :six]} :hash-equiv)`)
	cs, ok := n.(*ast.CaseStarNode)
	if !ok {
		t.Fatalf("expected *ast.CaseStarNode, got %T", n)
	}
	if cs.TestType != ast.CaseTestHashEquiv {
		t.Errorf("expected hash-equiv test type, got %v", cs.TestType)
	}
	clause, ok := cs.Clauses[5]
	if !ok || len(clause) != 2 {
		t.Fatalf("expected 2 entries under hash 5, got %+v", cs.Clauses[5])
	}
}

func TestAnalyzeCaseStarIntTestType(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(case* x 0 0 nil {1 [1 :one]} :int)`)
	cs := n.(*ast.CaseStarNode)
	if cs.TestType != ast.CaseTestInt {
		t.Errorf("expected int test type, got %v", cs.TestType)
	}
}

func TestAnalyzeCaseStarSkipCheckSet(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(case* x 0 0 nil {1 [1 :one]} :hash-equiv #{1})`)
	cs := n.(*ast.CaseStarNode)
	if !cs.SkipCheck[1] {
		t.Error("expected hash 1 to be present in the skip-check set")
	}
}

func TestAnalyzeCaseStarRequiresMinimumArgs(t *testing.T) {
	a := newTestAnalyzer()
	forms, _ := readAll(t, `(case* x 0 0)`)
	if _, err := a.Analyze(forms[0]); err == nil {
		t.Fatal("expected an error for case* with too few arguments")
	}
}
