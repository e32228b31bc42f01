package value

import "testing"

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil", Nil, false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero int", Int(0), true},
		{"empty string", String(""), true},
		{"empty list", EmptyList(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Truthy(); got != tt.want {
				t.Errorf("Truthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNumericEqualityAcrossKinds(t *testing.T) {
	if !Equal(Int(1), Float(1.0)) {
		t.Error("expected 1 = 1.0")
	}
	if Equal(Int(1), Int(2)) {
		t.Error("expected 1 != 2")
	}
}

func TestKeywordIdentity(t *testing.T) {
	a := Kw("", "foo")
	b := Kw("", "foo")
	if !Is(a, b) {
		t.Error("expected interned keywords to be identical")
	}
}

func TestVectorPersistence(t *testing.T) {
	v1 := NewVector([]Value{Int(1), Int(2)})
	vec2 := v1.AsVector().Conj(Int(3))
	v2 := newHeap(KindVector, vec2)

	if v1.AsVector().Len() != 2 {
		t.Errorf("original vector mutated: len=%d", v1.AsVector().Len())
	}
	if v2.AsVector().Len() != 3 {
		t.Errorf("expected new vector len 3, got %d", v2.AsVector().Len())
	}
}

func TestMapAssocDissoc(t *testing.T) {
	m := NewMap(nil)
	m1 := m.AsMap().Assoc(Kw("", "a"), Int(1))
	if _, ok := m.AsMap().Get(Kw("", "a")); ok {
		t.Error("original map mutated by Assoc")
	}
	v, ok := m1.Get(Kw("", "a"))
	if !ok || v.AsInt() != 1 {
		t.Error("expected :a -> 1 in new map")
	}
	m2 := m1.Dissoc(Kw("", "a"))
	if _, ok := m2.Get(Kw("", "a")); ok {
		t.Error("expected :a removed after Dissoc")
	}
}

func TestPrStrRoundTripShape(t *testing.T) {
	v := NewVector([]Value{Int(1), Int(2), Int(3)})
	got := v.PrStr()
	want := "[1 2 3]"
	if got != want {
		t.Errorf("PrStr() = %q, want %q", got, want)
	}
}

func TestSetEqualityIgnoresOrder(t *testing.T) {
	a := NewSet([]Value{Int(1), Int(2), Int(3)})
	b := NewSet([]Value{Int(3), Int(2), Int(1)})
	if !Equal(a, b) {
		t.Error("expected sets with same elements in different order to be equal")
	}
}
