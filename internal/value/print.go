package value

import (
	"strconv"
	"strings"
)

// Display returns the "display" string form (`str` builtin): strings print
// without quotes, everything else matches PrStr.
func (v Value) Display() string {
	if v.kind == KindString {
		return v.AsString()
	}
	return v.PrStr()
}

// PrStr returns the "readable" string form (`pr-str` builtin): strings
// and chars are quoted/escaped so the result round-trips through the
// reader (spec.md §8.2).
//
// PrStr does not force lazy sequences: an unrealized lazy seq prints as
// an opaque placeholder. The pr-str, str and print natives call this
// method directly, so they do not realize lazy seqs either;
// internal/lazyseq.PrStr is a realizing variant that nothing calls.
func (v Value) PrStr() string {
	var sb strings.Builder
	v.writeTo(&sb)
	return sb.String()
}

func (v Value) writeTo(sb *strings.Builder) {
	switch v.kind {
	case KindNil:
		sb.WriteString("nil")
	case KindBool:
		if v.AsBool() {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindChar:
		sb.WriteString("\\")
		sb.WriteRune(v.AsChar())
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.AsInt(), 10))
	case KindFloat:
		sb.WriteString(strconv.FormatFloat(v.AsFloat(), 'g', -1, 64))
	case KindBigInt:
		sb.WriteString(v.AsBigInt().String())
		sb.WriteByte('N')
	case KindBigDecimal:
		sb.WriteString(v.AsBigDecimal().Text('g', -1))
		sb.WriteByte('M')
	case KindRatio:
		sb.WriteString(v.AsRatio().RatString())
	case KindString:
		sb.WriteByte('"')
		for _, r := range v.AsString() {
			switch r {
			case '"':
				sb.WriteString("\\\"")
			case '\\':
				sb.WriteString("\\\\")
			case '\n':
				sb.WriteString("\\n")
			case '\t':
				sb.WriteString("\\t")
			default:
				sb.WriteRune(r)
			}
		}
		sb.WriteByte('"')
	case KindSymbol:
		sym := v.AsSymbol()
		if sym.Ns != "" {
			sb.WriteString(sym.Ns)
			sb.WriteByte('/')
		}
		sb.WriteString(sym.Name)
	case KindKeyword:
		kw := v.AsKeyword()
		sb.WriteByte(':')
		if kw.Ns != "" {
			sb.WriteString(kw.Ns)
			sb.WriteByte('/')
		}
		sb.WriteString(kw.Name)
	case KindList, KindCons:
		sb.WriteByte('(')
		writeSeq(v, sb)
		sb.WriteByte(')')
	case KindVector:
		sb.WriteByte('[')
		vec := v.AsVector()
		for i, it := range vec.Items() {
			if i > 0 {
				sb.WriteByte(' ')
			}
			it.writeTo(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		m := v.AsMap()
		for i, e := range m.Entries() {
			if i > 0 {
				sb.WriteByte(' ')
			}
			e.Key.writeTo(sb)
			sb.WriteByte(' ')
			e.Val.writeTo(sb)
		}
		sb.WriteByte('}')
	case KindSet:
		sb.WriteString("#{")
		s := v.AsSet()
		for i, it := range s.Items() {
			if i > 0 {
				sb.WriteByte(' ')
			}
			it.writeTo(sb)
		}
		sb.WriteByte('}')
	case KindRecord:
		r := v.AsRecord()
		sb.WriteString("#")
		sb.WriteString(r.TypeName)
		NewMap(r.Fields.Entries()).writeTo(sb)
	case KindLazySeq:
		sb.WriteString("#<LazySeq>")
	case KindFn:
		sb.WriteString("#<Fn>")
	case KindBuiltinFn:
		sb.WriteString("#<builtin:" + v.AsBuiltinFn().Name + ">")
	case KindMultiFn:
		sb.WriteString("#<MultiFn:" + v.AsMultiFn().Name + ">")
	case KindProtocol:
		sb.WriteString("#<Protocol:" + v.AsProtocol().Name + ">")
	case KindAtom:
		sb.WriteString("#<Atom " + v.AsAtom().Load().PrStr() + ">")
	case KindDelay:
		sb.WriteString("#<Delay>")
	case KindRegex:
		sb.WriteString("#\"" + v.AsRegex().Source + "\"")
	case KindVarRef:
		sb.WriteString("#'<var>")
	case KindReduced:
		sb.WriteString(v.AsReduced().Val.PrStr())
	default:
		sb.WriteString("#<" + v.kind.String() + ">")
	}
}

func writeSeq(v Value, sb *strings.Builder) {
	first := true
	for !isEmptySeq(v) {
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		f, r := seqFirstRest(v)
		f.writeTo(sb)
		v = r
	}
}
