package treewalk

import (
	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/value"
)

// Closure is the tree-walk half of the `fn` Value variant (spec.md
// §3.1's doc comment on value.NewFn): it captures its defining Env by
// reference so free variables resolve through the normal frame chain,
// the way the teacher's closures keep a pointer to their defining
// Environment rather than copying captured values out.
type Closure struct {
	Name       string
	Arities    []*ast.FnArity
	Env        *Env
	DefiningNS string
}

// TraceChildren lets the GC mark every value reachable through this
// closure's captured environment chain (spec.md §4.1 step 4 "trace
// reachable Values").
func (c *Closure) TraceChildren(yield func(value.Value)) {
	if c.Env != nil {
		c.Env.TraceChildren(yield)
	}
}

// selectArity picks the FnArity matching argc (spec.md §4.5 "dispatch at
// call time selects the matching arity, falling back to variadic"):
// exact arity match wins; otherwise the first variadic arity whose
// fixed-param count is <= argc.
func selectArity(arities []*ast.FnArity, argc int) (*ast.FnArity, bool) {
	for _, a := range arities {
		if !a.Variadic && len(a.Params) == argc {
			return a, true
		}
	}
	for _, a := range arities {
		if a.Variadic && argc >= len(a.Params)-1 {
			return a, true
		}
	}
	return nil, false
}
