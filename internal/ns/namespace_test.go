package ns

import (
	"testing"

	"github.com/cwbudde/go-clj/internal/value"
)

func TestInternPreservesIdentityAcrossRedef(t *testing.T) {
	r := NewRegistry()
	user := r.Current()

	v1 := user.Intern("x")
	BindRoot(v1, value.Int(1))
	v2 := user.Intern("x")
	BindRoot(v2, value.Int(2))

	if v1 != v2 {
		t.Fatal("expected Intern to return the identical *Var across re-def")
	}
	if v1.Root.AsInt() != 2 {
		t.Errorf("expected root 2 after rebind, got %v", v1.Root.AsInt())
	}
}

func TestNewNamespaceInheritsRefers(t *testing.T) {
	r := NewRegistry()
	user := r.Current()
	core := r.FindOrCreate("core")
	v := core.Intern("inc")
	user.Refer("inc", v)

	other := r.FindOrCreate("other.ns")
	if _, ok := other.Resolve("inc"); !ok {
		t.Error("expected new namespace to inherit current namespace's refers")
	}
}

func TestResolveQualifiedViaAlias(t *testing.T) {
	r := NewRegistry()
	user := r.Current()
	mathNs := r.FindOrCreate("my.math")
	sq := mathNs.Intern("square")
	user.AddAlias("m", mathNs)

	v, ok := r.ResolveQualified(user, "m", "square")
	if !ok || v != sq {
		t.Error("expected alias resolution to find my.math/square")
	}
}

func TestDynamicFrameLIFO(t *testing.T) {
	r := NewRegistry()
	user := r.Current()
	v := user.Intern("*x*")
	v.IsDynamic = true
	BindRoot(v, value.Int(0))

	frames := NewFrames()
	if got := frames.Deref(v); got.AsInt() != 0 {
		t.Fatalf("expected root 0 before binding, got %v", got.AsInt())
	}

	frames.PushFrame(map[*Var]value.Value{v: value.Int(1)})
	if got := frames.Deref(v); got.AsInt() != 1 {
		t.Errorf("expected 1 inside binding, got %v", got.AsInt())
	}
	frames.PopFrame()

	if got := frames.Deref(v); got.AsInt() != 0 {
		t.Errorf("expected root 0 restored after pop, got %v", got.AsInt())
	}
}

func TestSetRequiresDynamic(t *testing.T) {
	r := NewRegistry()
	user := r.Current()
	v := user.Intern("y")
	frames := NewFrames()
	frames.PushFrame(map[*Var]value.Value{})
	if frames.Set(v, value.Int(1)) {
		t.Error("expected set! on non-dynamic var with no binding to fail")
	}
}
