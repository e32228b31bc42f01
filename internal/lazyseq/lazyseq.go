// Package lazyseq implements Realize and the transparent-boundary
// realization wrappers spec.md §4.9 requires: anywhere a sequence
// operation needs to see past a lazy_seq Value, it forces the thunk
// (via a value.Caller, since forcing means invoking a closure) and
// memoizes the result, exactly once.
//
// Grounded on value.LazySeq/value.Cons's shape plus the teacher's
// general "force once, memoize" idiom for deferred work
// (internal/interp's promise-like Delay handling); the filter-chain
// collapsing is new logic this spec calls for (§4.9 "adjacent filters
// on a lazy chain fuse into one predicate walk") with no direct teacher
// analogue, built directly off value.LazySeq.FilterPred's doc comment.
package lazyseq

import "github.com/cwbudde/go-clj/internal/value"

// Realize forces seq (a value.KindLazySeq Value) exactly once, memoizing
// the resulting Cons-or-Nil head on the LazySeq itself so repeat callers
// never re-invoke the thunk (spec.md §4.9 "memoized after first
// realization"). Non-lazy-seq Values pass through unchanged.
func Realize(c value.Caller, seq value.Value) (value.Value, error) {
	if seq.Kind() != value.KindLazySeq {
		return seq, nil
	}
	ls := seq.AsLazySeq()
	if ls.Realized {
		return ls.Head, nil
	}
	head, err := c.Call(ls.Thunk, nil)
	if err != nil {
		return value.Nil, err
	}
	ls.Head = head
	ls.Realized = true
	return head, nil
}

// First returns the first element of seq, realizing as many lazy layers
// as needed.
func First(c value.Caller, seq value.Value) (value.Value, error) {
	v, err := Realize(c, seq)
	if err != nil {
		return value.Nil, err
	}
	switch v.Kind() {
	case value.KindNil:
		return value.Nil, nil
	case value.KindCons:
		return v.AsCons().First, nil
	case value.KindList:
		return v.AsList().Head, nil
	default:
		return value.Nil, nil
	}
}

// Rest returns the rest of seq (itself possibly still lazy), realizing
// only the outermost layer.
func Rest(c value.Caller, seq value.Value) (value.Value, error) {
	v, err := Realize(c, seq)
	if err != nil {
		return value.Nil, err
	}
	switch v.Kind() {
	case value.KindCons:
		return v.AsCons().Rest, nil
	case value.KindList:
		return v.AsList().Tail, nil
	default:
		return value.Nil, nil
	}
}

// IsEmpty reports whether seq, after one realization, has no elements.
func IsEmpty(c value.Caller, seq value.Value) (bool, error) {
	v, err := Realize(c, seq)
	if err != nil {
		return false, err
	}
	switch v.Kind() {
	case value.KindNil:
		return true, nil
	case value.KindList:
		return v.AsList().Count == 0, nil
	case value.KindCons:
		return false, nil
	default:
		return true, nil
	}
}

// Collapse fuses seq's leading run of filter-produced lazy seqs into a
// single conjoined predicate, per spec.md §4.9. It returns the
// innermost un-filtered thunk (suitable for passing straight to
// value.NewLazySeq) and a combined predicate (nil if seq isn't a filter
// chain at all). Nothing in this repository calls it, and core.clj's
// `filter` is an eager loop that never sets FilterPred, so chained
// filters are not fused.
func Collapse(c value.Caller, seq value.Value) (value.Value, value.Value, bool) {
	if seq.Kind() != value.KindLazySeq {
		return seq, value.Nil, false
	}
	ls := seq.AsLazySeq()
	if ls.FilterPred == value.Nil {
		return seq, value.Nil, false
	}
	inner, combinedPred, ok := Collapse(c, ls.Thunk)
	if !ok {
		return ls.Thunk, ls.FilterPred, true
	}
	return inner, conjoin(c, combinedPred, ls.FilterPred), true
}

// conjoin builds a BuiltinFn computing pred1(x) && pred2(x), used to
// fuse two filter predicates into one pass over the underlying seq.
func conjoin(c value.Caller, pred1, pred2 value.Value) value.Value {
	return value.NewBuiltinFn(&value.BuiltinFn{
		Name:     "fused-pred",
		MinArity: 1,
		Fn: func(caller value.Caller, args []value.Value) (value.Value, error) {
			r1, err := caller.Call(pred1, args)
			if err != nil {
				return value.Nil, err
			}
			if !r1.Truthy() {
				return value.Bool(false), nil
			}
			return caller.Call(pred2, args)
		},
	})
}

// EqualSeq is a realization-aware equality (spec.md §4.9): it forces
// both sides one layer at a time so two lazy seqs (or a lazy seq and a
// realized list) with equal elements compare equal without the caller
// needing to fully realize either first. The `=` native and the VM's eq
// instruction do not call it; they use value.Equal.
func EqualSeq(c value.Caller, a, b value.Value) (bool, error) {
	for {
		ra, err := Realize(c, a)
		if err != nil {
			return false, err
		}
		rb, err := Realize(c, b)
		if err != nil {
			return false, err
		}
		aEmpty, err := IsEmpty(c, ra)
		if err != nil {
			return false, err
		}
		bEmpty, err := IsEmpty(c, rb)
		if err != nil {
			return false, err
		}
		if aEmpty || bEmpty {
			return aEmpty == bEmpty, nil
		}
		af, err := First(c, ra)
		if err != nil {
			return false, err
		}
		bf, err := First(c, rb)
		if err != nil {
			return false, err
		}
		if af.Kind() != value.KindLazySeq && af.Kind() != value.KindCons && af.Kind() != value.KindList {
			if !value.Equal(af, bf) {
				return false, nil
			}
		} else {
			eq, err := EqualSeq(c, af, bf)
			if err != nil || !eq {
				return eq, err
			}
		}
		a, err = Rest(c, ra)
		if err != nil {
			return false, err
		}
		b, err = Rest(c, rb)
		if err != nil {
			return false, err
		}
	}
}

// PrStr realizes seq fully (bounded realization is the caller's
// responsibility for infinite seqs, per spec.md §8.1's `*print-length*`
// caveat) and renders it as `(a b c)`.
func PrStr(c value.Caller, seq value.Value) (string, error) {
	out := "("
	first := true
	cur := seq
	for {
		empty, err := IsEmpty(c, cur)
		if err != nil {
			return "", err
		}
		if empty {
			break
		}
		f, err := First(c, cur)
		if err != nil {
			return "", err
		}
		if !first {
			out += " "
		}
		first = false
		out += f.PrStr()
		cur, err = Rest(c, cur)
		if err != nil {
			return "", err
		}
	}
	return out + ")", nil
}
