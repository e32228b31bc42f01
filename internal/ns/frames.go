package ns

import (
	"fmt"

	"github.com/cwbudde/go-clj/internal/value"
)

// Frames is the stack of `Var -> Value` override maps pushed by
// `binding` (spec.md §3.4). Strictly LIFO: PushFrame/PopFrame pair
// around every exit path of the wrapping form, including exception
// unwind and `recur` (spec.md §5 "Ordering guarantees").
type Frames struct {
	stack []map[*Var]value.Value
}

func NewFrames() *Frames { return &Frames{} }

// PushFrame pushes a new override frame.
func (f *Frames) PushFrame(bindings map[*Var]value.Value) {
	f.stack = append(f.stack, bindings)
}

// PopFrame pops the most recently pushed frame. Panics if the stack is
// empty, since an unbalanced pop is a bug in the evaluator's scoped
// push/pop discipline, not a recoverable runtime condition.
func (f *Frames) PopFrame() {
	if len(f.stack) == 0 {
		panic("ns: PopFrame on empty dynamic frame stack")
	}
	f.stack = f.stack[:len(f.stack)-1]
}

// Depth reports the current frame-stack depth, for unwind bookkeeping
// (e.g. restoring to a known depth after an exception crosses several
// `binding` forms at once).
func (f *Frames) Depth() int { return len(f.stack) }

// UnwindTo pops frames down to the given depth, used when an exception
// or non-local exit (`recur` out of nested bindings) skips the normal
// single-frame pop path.
func (f *Frames) UnwindTo(depth int) {
	if depth > len(f.stack) {
		panic(fmt.Sprintf("ns: UnwindTo(%d) beyond current depth %d", depth, len(f.stack)))
	}
	f.stack = f.stack[:depth]
}

// Deref walks frames top-down for a dynamic Var, falling back to its
// root (spec.md §3.4, §4.2 `deref`). Non-dynamic Vars always read root
// directly regardless of any frame override.
func (f *Frames) Deref(v *Var) value.Value {
	if v.IsDynamic {
		for i := len(f.stack) - 1; i >= 0; i-- {
			if val, ok := f.stack[i][v]; ok {
				return val
			}
		}
	}
	return v.Root
}

// Set mutates the top-of-stack binding for a dynamic Var (`set!`);
// returns false if v has no active dynamic binding (spec.md §4.3.2
// `set!`: "error if not dynamic").
func (f *Frames) Set(v *Var, val value.Value) bool {
	if !v.IsDynamic {
		return false
	}
	for i := len(f.stack) - 1; i >= 0; i-- {
		if _, ok := f.stack[i][v]; ok {
			f.stack[i][v] = val
			return true
		}
	}
	return false
}

// TraceChildren lets the GC walk every value currently held in every
// dynamic frame (spec.md §4.1 "Mark roots: ... every dynamic frame
// entry").
func (f *Frames) TraceChildren(yield func(value.Value)) {
	for _, frame := range f.stack {
		for _, v := range frame {
			yield(v)
		}
	}
}
