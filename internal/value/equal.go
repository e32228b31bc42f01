package value

import (
	"math/big"
	"strconv"
)

// Equal implements value equality (spec.md §3.1, §8.1): numeric kinds
// compare by numeric value across types, collections compare
// element-wise in order except set (unordered), nil only equals nil.
//
// Equal does not force lazy sequences: two lazy seqs, or a lazy seq and
// a list, compare by identity. The `=` native and the VM's eq
// instruction both call Equal directly, so they share that behaviour.
// internal/lazyseq.EqualSeq is a realizing variant that nothing calls.
// Map/set keys, which this function also backs (MapValue.Get,
// SetValue.Contains), need no Caller, which keeps this package free of a
// Caller dependency.
func Equal(a, b Value) bool {
	if isNumeric(a.kind) && isNumeric(b.kind) {
		return numEqual(a, b)
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.i == b.i
	case KindChar:
		return a.i == b.i
	case KindString:
		return a.AsString() == b.AsString()
	case KindSymbol:
		as, bs := a.AsSymbol(), b.AsSymbol()
		return as.Ns == bs.Ns && as.Name == bs.Name
	case KindKeyword:
		return a.obj == b.obj // keywords are interned
	case KindList, KindCons:
		return seqEqual(a, b)
	case KindVector:
		av, bv := a.AsVector(), b.AsVector()
		if av.Len() != bv.Len() {
			return false
		}
		for i := 0; i < av.Len(); i++ {
			if !Equal(av.At(i), bv.At(i)) {
				return false
			}
		}
		return true
	case KindMap:
		am, bm := a.AsMap(), b.AsMap()
		if am.Len() != bm.Len() {
			return false
		}
		for _, e := range am.Entries() {
			bv, ok := bm.Get(e.Key)
			if !ok || !Equal(e.Val, bv) {
				return false
			}
		}
		return true
	case KindSet:
		as, bs := a.AsSet(), b.AsSet()
		if as.Len() != bs.Len() {
			return false
		}
		for _, it := range as.Items() {
			if !bs.Contains(it) {
				return false
			}
		}
		return true
	case KindRecord:
		ar, br := a.AsRecord(), b.AsRecord()
		return ar.TypeName == br.TypeName && Equal(NewMap(ar.Fields.Entries()), NewMap(br.Fields.Entries()))
	default:
		return a.obj == b.obj
	}
}

func isNumeric(k Kind) bool {
	switch k {
	case KindInt, KindFloat, KindBigInt, KindBigDecimal, KindRatio:
		return true
	}
	return false
}

// numEqual compares across numeric kinds by mathematical value.
func numEqual(a, b Value) bool {
	ar := toRat(a)
	br := toRat(b)
	if ar != nil && br != nil {
		return ar.Cmp(br) == 0
	}
	return toFloat(a) == toFloat(b)
}

func toFloat(v Value) float64 {
	switch v.kind {
	case KindInt:
		return float64(v.AsInt())
	case KindFloat:
		return v.AsFloat()
	case KindBigInt:
		f := new(big.Float).SetInt(v.AsBigInt())
		out, _ := f.Float64()
		return out
	case KindBigDecimal:
		out, _ := v.AsBigDecimal().Float64()
		return out
	case KindRatio:
		out, _ := v.AsRatio().Float64()
		return out
	}
	return 0
}

// toRat returns an exact rational for int/bigint/ratio kinds, or nil for
// float/big_decimal (where we fall back to float comparison since those
// kinds are inherently inexact here).
func toRat(v Value) *big.Rat {
	switch v.kind {
	case KindInt:
		return new(big.Rat).SetInt64(v.AsInt())
	case KindBigInt:
		return new(big.Rat).SetInt(v.AsBigInt())
	case KindRatio:
		return v.AsRatio()
	}
	return nil
}

// seqEqual walks two already-realized sequences (list or cons chains)
// element by element.
func seqEqual(a, b Value) bool {
	for {
		aNil := isEmptySeq(a)
		bNil := isEmptySeq(b)
		if aNil || bNil {
			return aNil == bNil
		}
		af, ar := seqFirstRest(a)
		bf, br := seqFirstRest(b)
		if !Equal(af, bf) {
			return false
		}
		a, b = ar, br
	}
}

func isEmptySeq(v Value) bool {
	switch v.kind {
	case KindNil:
		return true
	case KindList:
		return v.AsList().Count == 0
	case KindCons:
		return false
	}
	return true
}

func seqFirstRest(v Value) (Value, Value) {
	switch v.kind {
	case KindList:
		l := v.AsList()
		return l.Head, l.Tail
	case KindCons:
		c := v.AsCons()
		return c.First, c.Rest
	}
	return Nil, Nil
}

// HashKey produces a string key stable under Equal, used by MapValue's
// hash index once it grows past the array-map threshold. Numeric values
// that compare equal (1, 1.0, 1/1) intentionally hash to the same key.
func HashKey(v Value) string {
	switch v.kind {
	case KindNil:
		return "n"
	case KindBool:
		if v.AsBool() {
			return "b:t"
		}
		return "b:f"
	case KindInt, KindFloat, KindBigInt, KindRatio, KindBigDecimal:
		f := toFloat(v)
		if f == 0 {
			f = 0 // fold -0.0 into 0
		}
		return "#f:" + strconv.FormatFloat(f, 'g', -1, 64)
	case KindChar:
		return "c:" + string(v.AsChar())
	case KindString:
		return "s:" + v.AsString()
	case KindKeyword:
		kw := v.AsKeyword()
		return "k:" + kw.Ns + "/" + kw.Name
	case KindSymbol:
		sym := v.AsSymbol()
		return "y:" + sym.Ns + "/" + sym.Name
	default:
		return "p" // collections as map keys fall back to linear scan via Equal
	}
}
