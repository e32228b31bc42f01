package ast

// Arena bump-allocates Node storage for one analysis session. Nodes
// never outlive their Env, and the analyzer never frees an individual
// Node (macro-expanded code can alias earlier Nodes), so a monotonic
// slab beats per-node heap churn and keeps the GC's mark phase from
// ever needing to walk Node storage itself (spec.md §3.7: "the Node
// arena ... is never touched by mark-sweep").
//
// Grounded on the slab/slot handed out by a monotonic counter idiom in
// gopher-os's boot memory allocator, adapted here to a slice-of-slices
// growable arena since a Go Node tree has no fixed page size to target.
type Arena struct {
	slabs   [][]any
	slabCap int
}

const defaultSlabCap = 256

// NewArena creates an empty arena with the default slab size.
func NewArena() *Arena {
	return &Arena{slabCap: defaultSlabCap}
}

func (a *Arena) currentSlab() []any {
	if len(a.slabs) == 0 {
		return nil
	}
	return a.slabs[len(a.slabs)-1]
}

func (a *Arena) push(n any) {
	slab := a.currentSlab()
	if slab == nil || len(slab) == cap(slab) {
		slab = make([]any, 0, a.slabCap)
		a.slabs = append(a.slabs, slab)
	}
	idx := len(a.slabs) - 1
	a.slabs[idx] = append(a.slabs[idx], n)
}

// NewConstant allocates a ConstantNode in the arena and returns it.
func (a *Arena) NewConstant(n ConstantNode) *ConstantNode {
	p := new(ConstantNode)
	*p = n
	a.push(p)
	return p
}

// NewVarRef allocates a VarRefNode in the arena.
func (a *Arena) NewVarRef(n VarRefNode) *VarRefNode {
	p := new(VarRefNode)
	*p = n
	a.push(p)
	return p
}

// NewLocalRef allocates a LocalRefNode in the arena.
func (a *Arena) NewLocalRef(n LocalRefNode) *LocalRefNode {
	p := new(LocalRefNode)
	*p = n
	a.push(p)
	return p
}

// NewIf allocates an IfNode in the arena.
func (a *Arena) NewIf(n IfNode) *IfNode {
	p := new(IfNode)
	*p = n
	a.push(p)
	return p
}

// NewDo allocates a DoNode in the arena.
func (a *Arena) NewDo(n DoNode) *DoNode {
	p := new(DoNode)
	*p = n
	a.push(p)
	return p
}

// NewLet allocates a LetNode in the arena.
func (a *Arena) NewLet(n LetNode) *LetNode {
	p := new(LetNode)
	*p = n
	a.push(p)
	return p
}

// NewLetFn allocates a LetFnNode in the arena.
func (a *Arena) NewLetFn(n LetFnNode) *LetFnNode {
	p := new(LetFnNode)
	*p = n
	a.push(p)
	return p
}

// NewLoop allocates a LoopNode in the arena.
func (a *Arena) NewLoop(n LoopNode) *LoopNode {
	p := new(LoopNode)
	*p = n
	a.push(p)
	return p
}

// NewRecur allocates a RecurNode in the arena.
func (a *Arena) NewRecur(n RecurNode) *RecurNode {
	p := new(RecurNode)
	*p = n
	a.push(p)
	return p
}

// NewFn allocates a FnNode in the arena.
func (a *Arena) NewFn(n FnNode) *FnNode {
	p := new(FnNode)
	*p = n
	a.push(p)
	return p
}

// NewCall allocates a CallNode in the arena.
func (a *Arena) NewCall(n CallNode) *CallNode {
	p := new(CallNode)
	*p = n
	a.push(p)
	return p
}

// NewDef allocates a DefNode in the arena.
func (a *Arena) NewDef(n DefNode) *DefNode {
	p := new(DefNode)
	*p = n
	a.push(p)
	return p
}

// NewSetBang allocates a SetBangNode in the arena.
func (a *Arena) NewSetBang(n SetBangNode) *SetBangNode {
	p := new(SetBangNode)
	*p = n
	a.push(p)
	return p
}

// NewQuote allocates a QuoteNode in the arena.
func (a *Arena) NewQuote(n QuoteNode) *QuoteNode {
	p := new(QuoteNode)
	*p = n
	a.push(p)
	return p
}

// NewThrow allocates a ThrowNode in the arena.
func (a *Arena) NewThrow(n ThrowNode) *ThrowNode {
	p := new(ThrowNode)
	*p = n
	a.push(p)
	return p
}

// NewTry allocates a TryNode in the arena.
func (a *Arena) NewTry(n TryNode) *TryNode {
	p := new(TryNode)
	*p = n
	a.push(p)
	return p
}

// NewDefProtocol allocates a DefProtocolNode in the arena.
func (a *Arena) NewDefProtocol(n DefProtocolNode) *DefProtocolNode {
	p := new(DefProtocolNode)
	*p = n
	a.push(p)
	return p
}

// NewExtendType allocates an ExtendTypeNode in the arena.
func (a *Arena) NewExtendType(n ExtendTypeNode) *ExtendTypeNode {
	p := new(ExtendTypeNode)
	*p = n
	a.push(p)
	return p
}

// NewReify allocates a ReifyNode in the arena.
func (a *Arena) NewReify(n ReifyNode) *ReifyNode {
	p := new(ReifyNode)
	*p = n
	a.push(p)
	return p
}

// NewDefMulti allocates a DefMultiNode in the arena.
func (a *Arena) NewDefMulti(n DefMultiNode) *DefMultiNode {
	p := new(DefMultiNode)
	*p = n
	a.push(p)
	return p
}

// NewDefMethod allocates a DefMethodNode in the arena.
func (a *Arena) NewDefMethod(n DefMethodNode) *DefMethodNode {
	p := new(DefMethodNode)
	*p = n
	a.push(p)
	return p
}

// NewLazySeq allocates a LazySeqNode in the arena.
func (a *Arena) NewLazySeq(n LazySeqNode) *LazySeqNode {
	p := new(LazySeqNode)
	*p = n
	a.push(p)
	return p
}

// NewCaseStar allocates a CaseStarNode in the arena.
func (a *Arena) NewCaseStar(n CaseStarNode) *CaseStarNode {
	p := new(CaseStarNode)
	*p = n
	a.push(p)
	return p
}

// NewVarForm allocates a VarFormNode in the arena.
func (a *Arena) NewVarForm(n VarFormNode) *VarFormNode {
	p := new(VarFormNode)
	*p = n
	a.push(p)
	return p
}

// Count reports how many nodes the arena currently holds, for
// diagnostics and tests.
func (a *Arena) Count() int {
	n := 0
	for _, s := range a.slabs {
		n += len(s)
	}
	return n
}
