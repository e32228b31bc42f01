package ast

import (
	"testing"

	"github.com/cwbudde/go-clj/internal/value"
)

func TestArenaGrowsAcrossSlabs(t *testing.T) {
	a := &Arena{slabCap: 4}
	var last *ConstantNode
	for i := 0; i < 10; i++ {
		last = a.NewConstant(ConstantNode{Value: value.Int(int64(i))})
	}
	if a.Count() != 10 {
		t.Fatalf("expected 10 nodes across slabs, got %d", a.Count())
	}
	if last.Value.AsInt() != 9 {
		t.Errorf("expected last node's value to be 9, got %v", last.Value.AsInt())
	}
	if len(a.slabs) < 2 {
		t.Errorf("expected arena to span multiple slabs with slabCap 4 and 10 allocations, got %d slabs", len(a.slabs))
	}
}

func TestNodeKindDiscriminatesVariants(t *testing.T) {
	a := NewArena()
	c := a.NewConstant(ConstantNode{Value: value.Nil})
	v := a.NewVarRef(VarRefNode{Name: "x"})
	var n1 Node = c
	var n2 Node = v
	if n1.Kind() != KindConstant {
		t.Error("expected ConstantNode.Kind() == KindConstant")
	}
	if n2.Kind() != KindVarRef {
		t.Error("expected VarRefNode.Kind() == KindVarRef")
	}
}

func TestIfNodeElseMayBeNil(t *testing.T) {
	a := NewArena()
	ifNode := a.NewIf(IfNode{Test: a.NewConstant(ConstantNode{Value: value.Bool(true)})})
	if ifNode.Else != nil {
		t.Error("expected Else to default to nil when omitted")
	}
}

func TestTryNodeChainsSingleCatchPerLink(t *testing.T) {
	a := NewArena()
	inner := a.NewTry(TryNode{
		Body:  []Node{a.NewConstant(ConstantNode{Value: value.Int(1)})},
		Catch: &CatchClause{ClassName: "ArithmeticException", BindName: "e"},
	})
	outer := a.NewTry(TryNode{
		Body:    []Node{inner},
		Catch:   &CatchClause{ClassName: "Exception", BindName: "e"},
		Finally: []Node{a.NewConstant(ConstantNode{Value: value.Nil})},
	})
	if outer.Inner == nil {
		outer.Inner = inner
	}
	if outer.Finally == nil {
		t.Error("expected outermost try to carry the finally body")
	}
	if inner.Finally != nil {
		t.Error("expected inner chain link to carry no finally of its own")
	}
}
