package protocol

import (
	"testing"

	"github.com/cwbudde/go-clj/internal/value"
)

func TestTypeKeyDistinguishesKindsAndRecords(t *testing.T) {
	if got := TypeKey(value.Int(1)); got != "integer" {
		t.Errorf("expected integer, got %s", got)
	}
	if got := TypeKey(value.Nil); got != "nil" {
		t.Errorf("expected nil, got %s", got)
	}
	rec := value.NewRecord("Point", value.NewMap(nil).AsMap())
	if got := TypeKey(rec); got != "Point" {
		t.Errorf("expected Point, got %s", got)
	}
}

func TestExtendAndResolveProtocolMethod(t *testing.T) {
	p := value.NewProtocol("Shape", []string{"area"}).AsProtocol()
	areaFn := value.NewBuiltinFn(&value.BuiltinFn{Name: "area", MinArity: 1})
	Extend(p, "Point", "area", areaFn)

	rec := value.NewRecord("Point", value.NewMap(nil).AsMap())
	fn, ok := Resolve(p, rec, "area")
	if !ok || fn != areaFn {
		t.Fatal("expected Resolve to find the extended method")
	}
	if _, ok := Resolve(p, rec, "perimeter"); ok {
		t.Error("expected perimeter to be unresolved")
	}
}

func TestHierarchyIsaFollowsMultipleDeriveLevels(t *testing.T) {
	h := NewHierarchy()
	h.Derive("square", "rectangle")
	h.Derive("rectangle", "shape")

	if !h.Isa("square", "shape") {
		t.Error("expected square to isa shape transitively")
	}
	if h.Isa("shape", "square") {
		t.Error("isa must not be symmetric")
	}
}

func TestDispatchFallsBackToHierarchyThenDefault(t *testing.T) {
	m := value.NewMultiFn("area", value.Nil).AsMultiFn()
	shapeFn := value.NewBuiltinFn(&value.BuiltinFn{Name: "shape-area"})
	defaultFn := value.NewBuiltinFn(&value.BuiltinFn{Name: "default-area"})
	m.Methods["shape"] = shapeFn
	m.Default = defaultFn

	h := NewHierarchy()
	h.Derive("square", "shape")

	res := Dispatch(m, value.Kw("", "square"), h)
	if !res.Found || res.Fn != shapeFn {
		t.Fatal("expected hierarchy fallback to find the shape method")
	}

	res2 := Dispatch(m, value.Kw("", "circle"), h)
	if !res2.Found || res2.Fn != defaultFn {
		t.Fatal("expected default method for an unrelated dispatch value")
	}
}

func TestDispatchCachesExactMatch(t *testing.T) {
	m := value.NewMultiFn("area", value.Nil).AsMultiFn()
	fn := value.NewBuiltinFn(&value.BuiltinFn{Name: "square-area"})
	m.Methods["square"] = fn

	Dispatch(m, value.Kw("", "square"), nil)
	if cached, ok := m.CacheGet("square"); !ok || cached != fn {
		t.Error("expected exact-match dispatch to populate the cache")
	}
}
