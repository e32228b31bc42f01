// Package ns implements Namespace, Var, and the dynamic binding frame
// stack of spec.md §3.2–§3.4 and the operations of §4.2.
//
// Grounded on internal/interp/runtime.Environment's lexical-scope chain
// (store map + outer, Get walking outward on miss) from the teacher
// repo, generalized from a single outward-walking chain to the
// mappings → refers → (dynamic-frame | root) resolution order this spec
// requires.
package ns

import (
	"fmt"

	"github.com/cwbudde/go-clj/internal/value"
)

// Var is a named, mutable binding cell (spec.md §3.2). Identity is
// stable across re-def: only Root changes.
type Var struct {
	Sym       string
	NsName    string
	Root      value.Value
	Meta      value.Value
	IsMacro   bool
	IsDynamic bool
	IsPrivate bool
	IsConst   bool
	Doc       string
	ArgLists  string
}

// TraceChildren lets value.TraceChildren walk into a Var's current root
// without the value package needing to know about ns.Var.
func (v *Var) TraceChildren(yield func(value.Value)) {
	yield(v.Root)
	yield(v.Meta)
}

// Deref returns the Var's value ignoring dynamic frames; callers that
// need dynamic-frame-aware lookup use Frames.Deref instead.
func (v *Var) Deref() value.Value { return v.Root }

// Namespace maps symbol -> Var (spec.md §3.3).
type Namespace struct {
	Name     string
	mappings map[string]*Var
	refers   map[string]*Var
	aliases  map[string]*Namespace
}

func newNamespace(name string) *Namespace {
	return &Namespace{
		Name:     name,
		mappings: map[string]*Var{},
		refers:   map[string]*Var{},
		aliases:  map[string]*Namespace{},
	}
}

// Registry owns every Namespace in an Env (spec.md §3.7: "Env owns: all
// Namespaces"). Not safe for concurrent use: the whole runtime is
// single-threaded per spec.md §5.
type Registry struct {
	namespaces map[string]*Namespace
	current    *Namespace
}

func NewRegistry() *Registry {
	r := &Registry{namespaces: map[string]*Namespace{}}
	r.current = r.FindOrCreate("user")
	return r
}

// Current returns the currently active namespace.
func (r *Registry) Current() *Namespace { return r.current }

// SetCurrent switches the active namespace (used by `ns`/`in-ns`).
func (r *Registry) SetCurrent(n *Namespace) { r.current = n }

// FindOrCreate is idempotent; a freshly created namespace inherits the
// current namespace's refers (spec.md §3.3: "so `are`-style macros work
// across ns boundaries").
func (r *Registry) FindOrCreate(name string) *Namespace {
	if n, ok := r.namespaces[name]; ok {
		return n
	}
	n := newNamespace(name)
	if r.current != nil {
		for k, v := range r.current.refers {
			n.refers[k] = v
		}
	}
	r.namespaces[name] = n
	return n
}

// Find looks up an existing namespace by name without creating it.
func (r *Registry) Find(name string) (*Namespace, bool) {
	n, ok := r.namespaces[name]
	return n, ok
}

// All returns every live namespace, for GC root enumeration.
func (r *Registry) All() []*Namespace {
	out := make([]*Namespace, 0, len(r.namespaces))
	for _, n := range r.namespaces {
		out = append(out, n)
	}
	return out
}

// Intern returns the existing Var for sym in ns, or creates and
// interns a fresh one (spec.md §4.2 "Returns existing or fresh Var;
// preserves identity across re-def").
func (ns *Namespace) Intern(sym string) *Var {
	if v, ok := ns.mappings[sym]; ok {
		return v
	}
	v := &Var{Sym: sym, NsName: ns.Name, Root: value.Nil}
	ns.mappings[sym] = v
	return v
}

// Refer imports an external Var into this namespace's unqualified lookup
// table (used by `refer`/bootstrap core auto-refer).
func (ns *Namespace) Refer(sym string, v *Var) { ns.refers[sym] = v }

// AddAlias registers ns as reachable through alias (used by `require ... :as`).
func (ns *Namespace) AddAlias(alias string, target *Namespace) { ns.aliases[alias] = target }

// Resolve looks up an unqualified symbol: mappings then refers (spec.md
// §4.2).
func (ns *Namespace) Resolve(sym string) (*Var, bool) {
	if v, ok := ns.mappings[sym]; ok {
		return v, true
	}
	if v, ok := ns.refers[sym]; ok {
		return v, true
	}
	return nil, false
}

// ResolveQualified resolves `alias_or_name/sym`: alias, then direct
// namespace name in the registry, then that namespace's mappings/refers
// (spec.md §4.2 "Follows alias, then namespace directly, then refers").
func (r *Registry) ResolveQualified(from *Namespace, aliasOrName, sym string) (*Var, bool) {
	if target, ok := from.aliases[aliasOrName]; ok {
		return target.Resolve(sym)
	}
	if target, ok := r.namespaces[aliasOrName]; ok {
		return target.Resolve(sym)
	}
	return nil, false
}

// BindRoot atomically replaces a Var's root; does not affect any
// currently pushed dynamic frame (spec.md §4.2).
func BindRoot(v *Var, val value.Value) { v.Root = val }

// Mappings exposes a namespace's owned vars, for GC roots and `ns-map`.
func (ns *Namespace) Mappings() map[string]*Var { return ns.mappings }

// String satisfies fmt.Stringer for diagnostics.
func (ns *Namespace) String() string { return fmt.Sprintf("#<Namespace %s>", ns.Name) }
