package analyzer

import (
	"testing"

	"github.com/cwbudde/go-clj/internal/ast"
)

func TestAnalyzeDefProtocolParsesMethods(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(defprotocol Shape (area [this]) (perimeter [this] [this unit]))`)
	dp, ok := n.(*ast.DefProtocolNode)
	if !ok {
		t.Fatalf("expected *ast.DefProtocolNode, got %T", n)
	}
	if dp.Name != "Shape" {
		t.Errorf("expected name Shape, got %s", dp.Name)
	}
	if len(dp.Methods) != 2 {
		t.Fatalf("expected 2 methods, got %d", len(dp.Methods))
	}
	if dp.Methods[1].Name != "perimeter" || len(dp.Methods[1].Arities) != 2 {
		t.Errorf("expected perimeter with 2 arities, got %+v", dp.Methods[1])
	}
}

func TestAnalyzeDefProtocolRejectsDuplicateMethod(t *testing.T) {
	a := newTestAnalyzer()
	forms, _ := readAll(t, `(defprotocol Shape (area [this]) (area [this x]))`)
	if _, err := a.Analyze(forms[0]); err == nil {
		t.Fatal("expected an error for a duplicate protocol method name")
	}
}

func TestAnalyzeDefProtocolRejectsEmptyArity(t *testing.T) {
	a := newTestAnalyzer()
	forms, _ := readAll(t, `(defprotocol Shape (area []))`)
	if _, err := a.Analyze(forms[0]); err == nil {
		t.Fatal("expected an error for a protocol method arity with no `this` arg")
	}
}

func TestAnalyzeExtendTypeSingleProtocol(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(extend-type String Shape (area [this] 1))`)
	ext, ok := n.(*ast.ExtendTypeNode)
	if !ok {
		t.Fatalf("expected *ast.ExtendTypeNode, got %T", n)
	}
	if ext.TypeKey != "string" {
		t.Errorf("expected type key 'string' for the String alias, got %s", ext.TypeKey)
	}
	if len(ext.Methods) != 1 || ext.Methods[0].Name != "area" {
		t.Errorf("expected a single 'area' method, got %+v", ext.Methods)
	}
}

func TestAnalyzeExtendTypeMultipleProtocolsDesugarsToDo(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(extend-type MyRec Shape (area [this] 1) Named (name [this] "x"))`)
	doNode, ok := n.(*ast.DoNode)
	if !ok {
		t.Fatalf("expected *ast.DoNode for multiple protocol groups, got %T", n)
	}
	if len(doNode.Body) != 2 {
		t.Fatalf("expected 2 ExtendTypeNodes in the do, got %d", len(doNode.Body))
	}
	first, ok := doNode.Body[0].(*ast.ExtendTypeNode)
	if !ok || first.ProtocolName != "Shape" {
		t.Errorf("expected the first group to target Shape, got %+v", doNode.Body[0])
	}
}

func TestAnalyzeExtendTypeNilKey(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(extend-type nil Shape (area [this] 0))`)
	ext := n.(*ast.ExtendTypeNode)
	if ext.TypeKey != "nil" {
		t.Errorf("expected type key 'nil', got %s", ext.TypeKey)
	}
}

func TestAnalyzeReifyFlattensProtocolsAndMethods(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(reify Shape (area [this] 1) Named (name [this] "s"))`)
	r, ok := n.(*ast.ReifyNode)
	if !ok {
		t.Fatalf("expected *ast.ReifyNode, got %T", n)
	}
	if len(r.Protocols) != 2 {
		t.Fatalf("expected 2 protocol names, got %d", len(r.Protocols))
	}
	if len(r.Methods) != 2 {
		t.Fatalf("expected 2 methods total, got %d", len(r.Methods))
	}
}

func TestAnalyzeDefRecordDesugarsToTwoDefs(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(defrecord Point [x y])`)
	doNode, ok := n.(*ast.DoNode)
	if !ok {
		t.Fatalf("expected *ast.DoNode, got %T", n)
	}
	if len(doNode.Body) != 2 {
		t.Fatalf("expected 2 defs, got %d", len(doNode.Body))
	}
	ctor, ok := doNode.Body[0].(*ast.DefNode)
	if !ok || ctor.Name != "->Point" {
		t.Fatalf("expected the first def to be ->Point, got %+v", doNode.Body[0])
	}
	ident, ok := doNode.Body[1].(*ast.DefNode)
	if !ok || ident.Name != "map->Point" {
		t.Fatalf("expected the second def to be map->Point, got %+v", doNode.Body[1])
	}
	if _, ok := a.reg.Current().Resolve("->Point"); !ok {
		t.Error("expected ->Point to be interned")
	}
}

func TestAnalyzeDefRecordCtorFieldOrder(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(defrecord Point [x y])`)
	doNode := n.(*ast.DoNode)
	ctor := doNode.Body[0].(*ast.DefNode)
	fn := ctor.Init.(*ast.FnNode)
	if len(fn.Arities) != 1 || len(fn.Arities[0].Params) != 2 {
		t.Fatalf("expected a single 2-arg arity, got %+v", fn.Arities)
	}
	if fn.Arities[0].Params[0] != "x" || fn.Arities[0].Params[1] != "y" {
		t.Errorf("expected positional params x, y, got %v", fn.Arities[0].Params)
	}
}

func TestAnalyzeDefMultiInternsVarEarly(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(defmulti area :kind)`)
	dm, ok := n.(*ast.DefMultiNode)
	if !ok {
		t.Fatalf("expected *ast.DefMultiNode, got %T", n)
	}
	if dm.Name != "area" {
		t.Errorf("expected name area, got %s", dm.Name)
	}
	if _, ok := a.reg.Current().Resolve("area"); !ok {
		t.Error("expected defmulti to intern its var before the dispatch fn analyzes")
	}
}

func TestAnalyzeDefMethodParsesDispatchAndFn(t *testing.T) {
	a := newTestAnalyzer()
	n := analyzeSrc(t, a, `(defmethod area :circle [this] 1)`)
	dm, ok := n.(*ast.DefMethodNode)
	if !ok {
		t.Fatalf("expected *ast.DefMethodNode, got %T", n)
	}
	if dm.MultiName != "area" {
		t.Errorf("expected multi name area, got %s", dm.MultiName)
	}
	if len(dm.Fn.Arities) != 1 || len(dm.Fn.Arities[0].Params) != 1 {
		t.Errorf("expected a single 1-arg arity, got %+v", dm.Fn.Arities)
	}
}
