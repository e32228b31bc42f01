package value

// Meta returns a Value's metadata map, or Nil if it carries none or
// can't carry any (spec.md §3.1). Lists, vectors, maps, sets, cons
// cells, lazy seqs, records, atoms and symbols carry meta; every other
// kind, fns included, returns Nil.
func Meta(v Value) Value {
	switch v.kind {
	case KindList:
		return v.AsList().Meta
	case KindVector:
		return v.AsVector().Meta
	case KindMap:
		return v.AsMap().Meta
	case KindSet:
		return v.AsSet().Meta
	case KindCons:
		return v.AsCons().Meta
	case KindLazySeq:
		return v.AsLazySeq().Meta
	case KindRecord:
		return v.AsRecord().Meta
	case KindAtom:
		return v.AsAtom().Meta
	case KindSymbol:
		// Symbols with metadata (used for type hints, §4.3.1) carry it via
		// a side table rather than a field, since interning would
		// otherwise leak metadata across unrelated uses of the same name.
		return symMeta[v.obj.(*Symbol)]
	}
	return Nil
}

var symMeta = map[*Symbol]Value{}

// WithMeta returns a copy of v carrying the given metadata map. For
// mutable kinds (Atom) it mutates in place, matching `alter-meta!`
// semantics; for persistent kinds it returns a new heap object sharing
// the underlying data, matching `with-meta`.
func WithMeta(v Value, meta Value) Value {
	switch v.kind {
	case KindList:
		l := *v.AsList()
		l.Meta = meta
		return newHeap(KindList, &l)
	case KindVector:
		vec := *v.AsVector()
		vec.Meta = meta
		return newHeap(KindVector, &vec)
	case KindMap:
		m := *v.AsMap()
		m.Meta = meta
		return newHeap(KindMap, &m)
	case KindSet:
		s := *v.AsSet()
		s.Meta = meta
		return newHeap(KindSet, &s)
	case KindCons:
		c := *v.AsCons()
		c.Meta = meta
		return newHeap(KindCons, &c)
	case KindLazySeq:
		l := *v.AsLazySeq()
		l.Meta = meta
		return newHeap(KindLazySeq, &l)
	case KindRecord:
		r := *v.AsRecord()
		r.Meta = meta
		return newHeap(KindRecord, &r)
	case KindAtom:
		v.AsAtom().Meta = meta
		return v
	case KindSymbol:
		symMeta[v.obj.(*Symbol)] = meta
		return v
	}
	return v
}
