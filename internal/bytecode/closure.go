package bytecode

import "github.com/cwbudde/go-clj/internal/value"

// Closure is the runtime value an `OpClosure` produces: a compiled
// FnProto (the primary arity; siblings reachable through its Arities
// field) plus the upvalues captured from its defining frame at closure
// creation time. Mirrors internal/treewalk.Closure's role but captures
// by value-copy into a flat array instead of by environment chain,
// since bytecode locals are already flat-slotted.
type Closure struct {
	Proto      *FnProto
	Upvalues   []value.Value
	DefiningNS string
}

// TraceChildren lets the GC walk every captured upvalue.
func (c *Closure) TraceChildren(yield func(value.Value)) {
	for _, v := range c.Upvalues {
		yield(v)
	}
}

func closureLabel(cl *Closure) string {
	if cl.Proto.Name == "" {
		return "fn"
	}
	return cl.Proto.Name
}
