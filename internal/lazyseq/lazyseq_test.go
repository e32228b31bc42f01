package lazyseq

import (
	"testing"

	"github.com/cwbudde/go-clj/internal/value"
)

// stubCaller invokes a BuiltinFn directly, treating any other callable
// kind as an error; sufficient for exercising thunks built from
// value.NewBuiltinFn in these tests.
type stubCaller struct{}

func (stubCaller) Call(fn value.Value, args []value.Value) (value.Value, error) {
	return fn.AsBuiltinFn().Fn(stubCaller{}, args)
}

func thunkReturning(v value.Value) value.Value {
	return value.NewBuiltinFn(&value.BuiltinFn{
		Name: "thunk",
		Fn: func(_ value.Caller, _ []value.Value) (value.Value, error) {
			return v, nil
		},
	})
}

func TestRealizeMemoizesThunkCall(t *testing.T) {
	calls := 0
	thunk := value.NewBuiltinFn(&value.BuiltinFn{
		Name: "thunk",
		Fn: func(_ value.Caller, _ []value.Value) (value.Value, error) {
			calls++
			return value.NewCons(value.Int(1), value.Nil), nil
		},
	})
	seq := value.NewLazySeq(thunk)
	c := stubCaller{}

	if _, err := Realize(c, seq); err != nil {
		t.Fatal(err)
	}
	if _, err := Realize(c, seq); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected thunk invoked exactly once, got %d", calls)
	}
}

func TestFirstRestWalkLazySeq(t *testing.T) {
	c := stubCaller{}
	tail := value.NewLazySeq(thunkReturning(value.NewCons(value.Int(2), value.Nil)))
	seq := value.NewLazySeq(thunkReturning(value.NewCons(value.Int(1), tail)))

	f, err := First(c, seq)
	if err != nil || f.AsInt() != 1 {
		t.Fatalf("expected first 1, got %v err %v", f, err)
	}
	r, err := Rest(c, seq)
	if err != nil {
		t.Fatal(err)
	}
	f2, err := First(c, r)
	if err != nil || f2.AsInt() != 2 {
		t.Fatalf("expected second element 2, got %v err %v", f2, err)
	}
}

func TestEqualSeqComparesLazyAndRealizedSeqs(t *testing.T) {
	c := stubCaller{}
	lazy := value.NewLazySeq(thunkReturning(value.NewCons(value.Int(1), value.NewCons(value.Int(2), value.Nil))))
	realized := value.NewCons(value.Int(1), value.NewCons(value.Int(2), value.Nil))

	eq, err := EqualSeq(c, lazy, realized)
	if err != nil {
		t.Fatal(err)
	}
	if !eq {
		t.Error("expected lazy and realized seqs with equal elements to compare equal")
	}
}

func TestCollapseFusesAdjacentFilterPredicates(t *testing.T) {
	c := stubCaller{}
	base := value.NewCons(value.Int(1), value.Nil)
	baseThunk := thunkReturning(base)

	evenPred := value.NewBuiltinFn(&value.BuiltinFn{
		Name: "even?",
		Fn: func(_ value.Caller, args []value.Value) (value.Value, error) {
			return value.Bool(args[0].AsInt()%2 == 0), nil
		},
	})
	positivePred := value.NewBuiltinFn(&value.BuiltinFn{
		Name: "pos?",
		Fn: func(_ value.Caller, args []value.Value) (value.Value, error) {
			return value.Bool(args[0].AsInt() > 0), nil
		},
	})

	inner := value.NewLazySeq(baseThunk)
	ls1 := inner.AsLazySeq()
	ls1.FilterPred = evenPred

	outer := value.NewLazySeq(inner)
	ls2 := outer.AsLazySeq()
	ls2.FilterPred = positivePred

	underlyingThunk, fused, ok := Collapse(c, outer)
	if !ok {
		t.Fatal("expected Collapse to detect a filter chain")
	}
	if underlyingThunk != baseThunk {
		t.Error("expected Collapse to unwrap down to the innermost un-filtered thunk")
	}
	res, err := c.Call(fused, []value.Value{value.Int(2)})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Truthy() {
		t.Error("expected fused predicate to accept an even positive number")
	}
	res, err = c.Call(fused, []value.Value{value.Int(-2)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Truthy() {
		t.Error("expected fused predicate to reject a negative number")
	}
}
