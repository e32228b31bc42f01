package bootstrap

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/cwbudde/go-clj/internal/lazyseq"
	"github.com/cwbudde/go-clj/internal/ns"
	"github.com/cwbudde/go-clj/internal/value"
)

// registerNatives interns every primitive core.clj's Clojure source
// cannot bottom out in itself: numeric/comparison operators, the seq
// primitives (cons/first/rest/seq/empty?), collection constructors
// (conj/assoc/get), printing, and the handful of Unicode-aware string
// operations described below. Grounded on the teacher's pattern of a
// single registration pass populating a builtin table before any user
// source runs (`internal/bytecode.(*VM).registerStringBuiltins` and its
// sibling registerXBuiltins methods, called once from New).
//
// The x/text-backed entries are grounded directly on the teacher's
// internal/bytecode/vm_builtins_string.go and
// internal/interp/builtins/strings_compare.go, which reach for the same
// two x/text subpackages (Unicode-aware case conversion, locale-aware
// ordering) rather than byte-wise strings.ToUpper/strings.Compare, since
// naive ASCII case-folding mishandles the full Unicode case-mapping
// table (e.g. İ/ı, ß) and byte ordering mishandles collation (e.g. ä
// sorting after z in German).
func registerNatives(core *ns.Namespace) {
	intern(core, "%upper-case", 1, nativeUpperCase)
	intern(core, "%lower-case", 1, nativeLowerCase)
	intern(core, "%compare-text", 2, nativeCompareText)

	intern(core, "+", 0, nativeAdd)
	intern(core, "-", 1, nativeSub)
	intern(core, "*", 0, nativeMul)
	intern(core, "/", 1, nativeDiv)
	intern(core, "<", 1, nativeLt)
	intern(core, "<=", 1, nativeLe)
	intern(core, ">", 1, nativeGt)
	intern(core, ">=", 1, nativeGe)
	intern(core, "=", 1, nativeEq)
	intern(core, "not=", 1, nativeNeq)
	intern(core, "not", 1, nativeNot)

	intern(core, "cons", 2, nativeCons)
	intern(core, "first", 1, nativeFirst)
	intern(core, "rest", 1, nativeRest)
	intern(core, "seq", 1, nativeSeq)
	intern(core, "empty?", 1, nativeEmpty)
	intern(core, "conj", 1, nativeConj)
	intern(core, "get", 2, nativeGet)
	intern(core, "assoc", 3, nativeAssoc)
	intern(core, "count", 1, nativeCount)
	intern(core, "vector", 0, nativeVector)
	intern(core, "list", 0, nativeList)

	intern(core, "str", 0, nativeStr)
	intern(core, "pr-str", 0, nativePrStr)
	intern(core, "print", 0, nativePrint)
	intern(core, "println", 0, nativePrintln)
}

func intern(core *ns.Namespace, name string, arity int, fn func(c value.Caller, args []value.Value) (value.Value, error)) {
	v := core.Intern(name)
	ns.BindRoot(v, value.NewBuiltinFn(&value.BuiltinFn{Name: name, MinArity: arity, Variadic: true, Fn: fn}))
}

var titleCaser = cases.Upper(language.Und)
var lowerCaser = cases.Lower(language.Und)

func nativeUpperCase(_ value.Caller, args []value.Value) (value.Value, error) {
	return value.String(titleCaser.String(args[0].AsString())), nil
}

func nativeLowerCase(_ value.Caller, args []value.Value) (value.Value, error) {
	return value.String(lowerCaser.String(args[0].AsString())), nil
}

// textCollator performs locale-independent, case-insensitive ordering —
// the same collate.Collator(language, IgnoreCase) shape the teacher's
// CompareText builtin uses, parameterized on language.Und (root locale)
// since this core library has no notion of a configured host locale yet.
var textCollator = collate.New(language.Und, collate.IgnoreCase)

func nativeCompareText(_ value.Caller, args []value.Value) (value.Value, error) {
	return value.Int(int64(textCollator.CompareString(args[0].AsString(), args[1].AsString()))), nil
}

func isFloatVal(v value.Value) bool { return v.Kind() == value.KindFloat }

func numAdd(a, b value.Value) value.Value {
	if isFloatVal(a) || isFloatVal(b) {
		return value.Float(numAsFloat(a) + numAsFloat(b))
	}
	return value.Int(a.AsInt() + b.AsInt())
}
func numSub(a, b value.Value) value.Value {
	if isFloatVal(a) || isFloatVal(b) {
		return value.Float(numAsFloat(a) - numAsFloat(b))
	}
	return value.Int(a.AsInt() - b.AsInt())
}
func numMul(a, b value.Value) value.Value {
	if isFloatVal(a) || isFloatVal(b) {
		return value.Float(numAsFloat(a) * numAsFloat(b))
	}
	return value.Int(a.AsInt() * b.AsInt())
}
func numAsFloat(v value.Value) float64 {
	if isFloatVal(v) {
		return v.AsFloat()
	}
	return float64(v.AsInt())
}
func numLess(a, b value.Value) bool {
	if isFloatVal(a) || isFloatVal(b) {
		return numAsFloat(a) < numAsFloat(b)
	}
	return a.AsInt() < b.AsInt()
}

func nativeAdd(_ value.Caller, args []value.Value) (value.Value, error) {
	acc := value.Int(0)
	for _, a := range args {
		acc = numAdd(acc, a)
	}
	return acc, nil
}

func nativeMul(_ value.Caller, args []value.Value) (value.Value, error) {
	acc := value.Int(1)
	for _, a := range args {
		acc = numMul(acc, a)
	}
	return acc, nil
}

func nativeSub(_ value.Caller, args []value.Value) (value.Value, error) {
	if len(args) == 1 {
		return numSub(value.Int(0), args[0]), nil
	}
	acc := args[0]
	for _, a := range args[1:] {
		acc = numSub(acc, a)
	}
	return acc, nil
}

func nativeDiv(_ value.Caller, args []value.Value) (value.Value, error) {
	if len(args) == 1 {
		return value.Float(1 / numAsFloat(args[0])), nil
	}
	acc := numAsFloat(args[0])
	for _, a := range args[1:] {
		acc /= numAsFloat(a)
	}
	return value.Float(acc), nil
}

func chainCompare(args []value.Value, ok func(a, b value.Value) bool) (value.Value, error) {
	for i := 1; i < len(args); i++ {
		if !ok(args[i-1], args[i]) {
			return value.Bool(false), nil
		}
	}
	return value.Bool(true), nil
}

func nativeLt(_ value.Caller, args []value.Value) (value.Value, error) {
	return chainCompare(args, func(a, b value.Value) bool { return numLess(a, b) })
}
func nativeLe(_ value.Caller, args []value.Value) (value.Value, error) {
	return chainCompare(args, func(a, b value.Value) bool { return !numLess(b, a) })
}
func nativeGt(_ value.Caller, args []value.Value) (value.Value, error) {
	return chainCompare(args, func(a, b value.Value) bool { return numLess(b, a) })
}
func nativeGe(_ value.Caller, args []value.Value) (value.Value, error) {
	return chainCompare(args, func(a, b value.Value) bool { return !numLess(a, b) })
}

func nativeEq(_ value.Caller, args []value.Value) (value.Value, error) {
	return chainCompare(args, func(a, b value.Value) bool { return value.Equal(a, b) })
}
func nativeNeq(_ value.Caller, args []value.Value) (value.Value, error) {
	v, err := nativeEq(nil, args)
	if err != nil {
		return value.Nil, err
	}
	return value.Bool(!v.AsBool()), nil
}
func nativeNot(_ value.Caller, args []value.Value) (value.Value, error) {
	return value.Bool(!args[0].Truthy()), nil
}

// nativeCons/First/Rest/Seq/Empty delegate to internal/lazyseq's
// transparent-boundary helpers so a lazy_seq argument realizes
// correctly rather than this package re-deriving that logic.
func nativeCons(c value.Caller, args []value.Value) (value.Value, error) {
	rest := args[1]
	if rest.Kind() != value.KindList {
		r, err := lazyseq.Realize(c, rest)
		if err != nil {
			return value.Nil, err
		}
		rest = r
	}
	if rest.Kind() == value.KindList {
		return value.ConsList(args[0], rest.AsList()), nil
	}
	return value.NewCons(args[0], rest), nil
}

func nativeFirst(c value.Caller, args []value.Value) (value.Value, error) {
	return lazyseq.First(c, args[0])
}

func nativeRest(c value.Caller, args []value.Value) (value.Value, error) {
	return lazyseq.Rest(c, args[0])
}

// nativeSeq normalizes any collection to a list/cons chain (nil if
// empty), the entry point map/filter/reduce all call through first.
func nativeSeq(c value.Caller, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindNil:
		return value.Nil, nil
	case value.KindList, value.KindCons, value.KindLazySeq:
		empty, err := lazyseq.IsEmpty(c, v)
		if err != nil {
			return value.Nil, err
		}
		if empty {
			return value.Nil, nil
		}
		return v, nil
	case value.KindVector:
		items := v.AsVector().Items()
		out := value.EmptyList()
		for i := len(items) - 1; i >= 0; i-- {
			out = value.ConsList(items[i], out.AsList())
		}
		if out.AsList().Count == 0 {
			return value.Nil, nil
		}
		return out, nil
	case value.KindSet:
		items := v.AsSet().Items()
		out := value.EmptyList()
		for i := len(items) - 1; i >= 0; i-- {
			out = value.ConsList(items[i], out.AsList())
		}
		if out.AsList().Count == 0 {
			return value.Nil, nil
		}
		return out, nil
	default:
		return value.Nil, fmt.Errorf("seq: %s is not seqable", v.Kind())
	}
}

func nativeEmpty(c value.Caller, args []value.Value) (value.Value, error) {
	empty, err := lazyseq.IsEmpty(c, args[0])
	if err != nil {
		return value.Nil, err
	}
	return value.Bool(empty), nil
}

func nativeConj(_ value.Caller, args []value.Value) (value.Value, error) {
	coll := args[0]
	switch coll.Kind() {
	case value.KindVector:
		vec := coll.AsVector()
		for _, a := range args[1:] {
			vec = vec.Conj(a)
		}
		return value.NewVector(vec.Items()), nil
	case value.KindSet:
		items := append([]value.Value{}, coll.AsSet().Items()...)
		items = append(items, args[1:]...)
		return value.NewSet(items), nil
	case value.KindNil, value.KindList:
		lst := coll
		if lst.Kind() == value.KindNil {
			lst = value.EmptyList()
		}
		for _, a := range args[1:] {
			lst = value.ConsList(a, lst.AsList())
		}
		return lst, nil
	default:
		return value.Nil, fmt.Errorf("conj: unsupported collection %s", coll.Kind())
	}
}

func nativeGet(_ value.Caller, args []value.Value) (value.Value, error) {
	def := value.Nil
	if len(args) > 2 {
		def = args[2]
	}
	coll := args[0]
	switch coll.Kind() {
	case value.KindMap:
		if v, ok := coll.AsMap().Get(args[1]); ok {
			return v, nil
		}
		return def, nil
	case value.KindVector:
		i := int(args[1].AsInt())
		if i >= 0 && i < coll.AsVector().Len() {
			return coll.AsVector().At(i), nil
		}
		return def, nil
	case value.KindSet:
		if coll.AsSet().Contains(args[1]) {
			return args[1], nil
		}
		return def, nil
	case value.KindNil:
		return def, nil
	default:
		return def, nil
	}
}

func nativeAssoc(_ value.Caller, args []value.Value) (value.Value, error) {
	coll := args[0]
	switch coll.Kind() {
	case value.KindMap:
		m := coll.AsMap()
		for i := 1; i+1 < len(args); i += 2 {
			m = m.Assoc(args[i], args[i+1])
		}
		return value.NewMap(m.Entries()), nil
	case value.KindNil:
		entries := make([]value.MapEntry, 0, len(args)/2)
		for i := 1; i+1 < len(args); i += 2 {
			entries = append(entries, value.MapEntry{Key: args[i], Val: args[i+1]})
		}
		return value.NewMap(entries), nil
	case value.KindVector:
		vec := coll.AsVector()
		for i := 1; i+1 < len(args); i += 2 {
			vec = vec.Assoc(int(args[i].AsInt()), args[i+1])
		}
		return value.NewVector(vec.Items()), nil
	default:
		return value.Nil, fmt.Errorf("assoc: unsupported collection %s", coll.Kind())
	}
}

func nativeCount(c value.Caller, args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindNil:
		return value.Int(0), nil
	case value.KindList:
		return value.Int(int64(v.AsList().Count)), nil
	case value.KindVector:
		return value.Int(int64(v.AsVector().Len())), nil
	case value.KindMap:
		return value.Int(int64(v.AsMap().Len())), nil
	case value.KindSet:
		return value.Int(int64(len(v.AsSet().Items()))), nil
	case value.KindString:
		return value.Int(int64(len([]rune(v.AsString())))), nil
	default:
		n := int64(0)
		cur := v
		for {
			empty, err := lazyseq.IsEmpty(c, cur)
			if err != nil {
				return value.Nil, err
			}
			if empty {
				return value.Int(n), nil
			}
			n++
			cur, err = lazyseq.Rest(c, cur)
			if err != nil {
				return value.Nil, err
			}
		}
	}
}

func nativeVector(_ value.Caller, args []value.Value) (value.Value, error) {
	return value.NewVector(args), nil
}

func nativeList(_ value.Caller, args []value.Value) (value.Value, error) {
	out := value.EmptyList()
	for i := len(args) - 1; i >= 0; i-- {
		out = value.ConsList(args[i], out.AsList())
	}
	return out, nil
}

func nativeStr(_ value.Caller, args []value.Value) (value.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		if a.Kind() == value.KindString {
			sb.WriteString(a.AsString())
		} else if !a.IsNil() {
			sb.WriteString(a.PrStr())
		}
	}
	return value.String(sb.String()), nil
}

func nativePrStr(_ value.Caller, args []value.Value) (value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.PrStr()
	}
	return value.String(strings.Join(parts, " ")), nil
}

func nativePrint(_ value.Caller, args []value.Value) (value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		if a.Kind() == value.KindString {
			parts[i] = a.AsString()
		} else {
			parts[i] = a.PrStr()
		}
	}
	fmt.Print(strings.Join(parts, " "))
	return value.Nil, nil
}

func nativePrintln(c value.Caller, args []value.Value) (value.Value, error) {
	if _, err := nativePrint(c, args); err != nil {
		return value.Nil, err
	}
	fmt.Println()
	return value.Nil, nil
}
