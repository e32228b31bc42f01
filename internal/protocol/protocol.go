// Package protocol implements protocol method resolution and
// multimethod dispatch (spec.md §4.7, §4.8): computing a type key for a
// Value, looking it up (or a parent, for multimethods' isa?-aware
// resolution) in the relevant table, and maintaining the two caches the
// spec calls for (protocol: none needed, dispatch is an O(1) map
// lookup; multimethod: a dispatch-val -> resolved-fn cache that the
// defmethod path must invalidate).
//
// Grounded on the teacher's special-form dispatch table in the analyzer
// (a symbol-keyed map routing to handler functions) generalized from a
// fixed compile-time symbol set to a runtime, extensible type-key set;
// no teacher package does multi-level inheritance-aware dispatch, so the
// isa? hierarchy walk is new and kept deliberately small (a parent map
// plus BFS, not a full derive/underive lattice).
package protocol

import (
	"fmt"

	"github.com/cwbudde/go-clj/internal/value"
)

// TypeKey computes the dispatch key for v: its Kind name, except
// records and reify instances which dispatch on their own type name
// (spec.md §4.7 "type key: the Value's concrete Kind, or for records
// and reify, the record/reify type name").
func TypeKey(v value.Value) string {
	switch v.Kind() {
	case value.KindRecord:
		return v.AsRecord().TypeName
	case value.KindNil:
		return "nil"
	default:
		return v.Kind().String()
	}
}

// Resolve looks up method on the protocol's impl table for v's type key
// (spec.md §4.7). Returns false if no type extends the protocol with
// that method.
func Resolve(p *value.Protocol, v value.Value, method string) (value.Value, bool) {
	key := TypeKey(v)
	methods, ok := p.Impls[key]
	if !ok {
		return value.Nil, false
	}
	fn, ok := methods[method]
	return fn, ok
}

// Extend registers fn as the implementation of method for typeKey on p
// (`extend-type`/`extend-protocol`/`reify`, spec.md §4.3.2).
func Extend(p *value.Protocol, typeKey, method string, fn value.Value) {
	methods, ok := p.Impls[typeKey]
	if !ok {
		methods = map[string]value.Value{}
		p.Impls[typeKey] = methods
	}
	methods[method] = fn
}

// Hierarchy is the `derive`/`isa?` parent graph multimethod dispatch
// consults when no method is registered for a dispatch value's own key
// (spec.md §4.8 "falls back to isa? over the global or a custom
// hierarchy"). The zero value is a valid, empty hierarchy.
type Hierarchy struct {
	parents map[string]map[string]bool
}

// NewHierarchy creates an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{parents: map[string]map[string]bool{}}
}

// Derive establishes child -> parent, so Isa(child, parent) and anything
// Isa to child, is also Isa to parent.
func (h *Hierarchy) Derive(child, parent string) {
	if h.parents == nil {
		h.parents = map[string]map[string]bool{}
	}
	set, ok := h.parents[child]
	if !ok {
		set = map[string]bool{}
		h.parents[child] = set
	}
	set[parent] = true
}

// Underive removes a previously established child -> parent relation.
func (h *Hierarchy) Underive(child, parent string) {
	if set, ok := h.parents[child]; ok {
		delete(set, parent)
	}
}

// Isa reports whether child equals ancestor or reaches it by following
// zero or more Derive edges (BFS, since diamond inheritance from
// multiple derive calls is legal).
func (h *Hierarchy) Isa(child, ancestor string) bool {
	if child == ancestor {
		return true
	}
	seen := map[string]bool{child: true}
	queue := []string{child}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for parent := range h.parents[cur] {
			if parent == ancestor {
				return true
			}
			if !seen[parent] {
				seen[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return false
}

// Ancestors returns every parent reachable from key, nearest first, used
// to rank candidate multimethod matches when more than one dispatch
// value Isa the computed key (spec.md §4.8 "prefer_method`/ambiguity
// still resolved by explicit `prefer-method` registration; absent that,
// the most specific, i.e. nearest, match wins").
func (h *Hierarchy) Ancestors(key string) []string {
	var out []string
	seen := map[string]bool{key: true}
	queue := []string{key}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for parent := range h.parents[cur] {
			if !seen[parent] {
				seen[parent] = true
				out = append(out, parent)
				queue = append(queue, parent)
			}
		}
	}
	return out
}

// keyOf stringifies a dispatch Value for use as a multimethod cache/
// method-table key: keywords and strings use their literal text,
// everything else falls back to PrStr so compound dispatch values
// (e.g. a vector dispatch key) still hash consistently.
func keyOf(v value.Value) string {
	switch v.Kind() {
	case value.KindKeyword:
		kw := v.AsKeyword()
		if kw.Ns != "" {
			return kw.Ns + "/" + kw.Name
		}
		return kw.Name
	case value.KindString:
		return v.AsString()
	case value.KindSymbol:
		return v.AsSymbol().Name
	default:
		return v.PrStr()
	}
}

// DispatchKey exposes keyOf to other packages that need to register a
// multimethod method under the exact same stringification Dispatch uses
// to look it up (e.g. treewalk/bytecode's `defmethod` evaluation).
func DispatchKey(v value.Value) string { return keyOf(v) }

// DispatchResult is the outcome of resolving a multimethod call.
type DispatchResult struct {
	Fn    value.Value
	Found bool
}

// Dispatch resolves m's method for a computed dispatch value, consulting
// the cache first, then an exact method-table match, then (if h is
// non-nil) the hierarchy's ancestors nearest-first, then m.Default
// (spec.md §4.8). A resolved non-default, non-cached match is written
// back into the cache.
func Dispatch(m *value.MultiFn, dispatchVal value.Value, h *Hierarchy) DispatchResult {
	key := keyOf(dispatchVal)
	if fn, ok := m.CacheGet(key); ok {
		return DispatchResult{Fn: fn, Found: true}
	}
	if fn, ok := m.Methods[key]; ok {
		m.CachePut(key, fn)
		return DispatchResult{Fn: fn, Found: true}
	}
	if h != nil {
		for _, ancestor := range h.Ancestors(key) {
			if fn, ok := m.Methods[ancestor]; ok {
				m.CachePut(key, fn)
				return DispatchResult{Fn: fn, Found: true}
			}
		}
	}
	if m.Default != value.Nil {
		return DispatchResult{Fn: m.Default, Found: true}
	}
	return DispatchResult{}
}

// ErrNoMethod formats the "no method for dispatch value" error
// (spec.md §4.8 edge case), left to the caller to wrap with errs.Report
// context since protocol has no dependency on internal/errs.
func ErrNoMethod(multiName string, dispatchVal value.Value) error {
	return fmt.Errorf("no method in multimethod '%s' for dispatch value: %s", multiName, dispatchVal.PrStr())
}
