package analyzer

import (
	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/reader"
	"github.com/cwbudde/go-clj/internal/value"
)

// forMod is one `:let`/`:when`/`:while` modifier attached to a `for`
// binding pair, in declaration order (spec.md §4.3.5).
type forMod struct {
	kind string
	form reader.Form
}

// forBinding is one `pattern coll mod*` group inside a `for` binding
// vector.
type forBinding struct {
	pattern reader.Form
	coll    reader.Form
	mods    []forMod
}

func parseForBindings(vec reader.Form) ([]forBinding, error) {
	items := vec.Items
	var out []forBinding
	i := 0
	for i < len(items) {
		if i+1 >= len(items) {
			return nil, &Error{Line: vec.Line, Column: vec.Column, Msg: "for binding vector requires pattern/collection pairs"}
		}
		b := forBinding{pattern: items[i], coll: items[i+1]}
		i += 2
		for i+1 < len(items) && items[i].Kind == reader.KindKeyword &&
			(items[i].KwName == "let" || items[i].KwName == "when" || items[i].KwName == "while") {
			b.mods = append(b.mods, forMod{kind: items[i].KwName, form: items[i+1]})
			i += 2
		}
		out = append(out, b)
	}
	return out, nil
}

func hasMod(mods []forMod, kind string) bool {
	for _, m := range mods {
		if m.kind == kind {
			return true
		}
	}
	return false
}

// wrapForMods applies a binding pair's `:let`/`:when` modifiers around
// buildValue, in declaration order, so each modifier's bindings are
// visible to everything written after it (spec.md §4.3.5). `:while`
// doesn't wrap the per-element value; it wraps the source collection
// instead (buildForCollExpr), so it is a no-op here.
func (a *Analyzer) wrapForMods(mods []forMod, idx int, line, col int, buildValue func() (ast.Node, error)) (ast.Node, error) {
	if idx == len(mods) {
		return buildValue()
	}
	m := mods[idx]
	switch m.kind {
	case "let":
		patterns, inits, err := bindingPairs(m.form, line, col)
		if err != nil {
			return nil, err
		}
		a.pushScope()
		defer a.popScope()
		var bindings []ast.Binding
		for i, pat := range patterns {
			initNode, err := a.Analyze(inits[i])
			if err != nil {
				return nil, err
			}
			sub, err := a.expandBindingPattern(pat, initNode, pat.Line, pat.Column)
			if err != nil {
				return nil, err
			}
			bindings = append(bindings, sub...)
		}
		inner, err := a.wrapForMods(mods, idx+1, line, col, buildValue)
		if err != nil {
			return nil, err
		}
		return withSrc(a.arena.NewLet(ast.LetNode{Bindings: bindings, Body: []ast.Node{inner}}), a, line, col), nil
	case "when":
		testNode, err := a.Analyze(m.form)
		if err != nil {
			return nil, err
		}
		inner, err := a.wrapForMods(mods, idx+1, line, col, buildValue)
		if err != nil {
			return nil, err
		}
		return withSrc(a.arena.NewIf(ast.IfNode{Test: testNode, Then: inner, Else: a.constNode(value.Nil, line, col)}), a, line, col), nil
	default: // "while", handled by buildForCollExpr
		return a.wrapForMods(mods, idx+1, line, col, buildValue)
	}
}

// buildForCollExpr wraps coll with `(take-while pred coll)` when b has
// a `:while` modifier; when a `:when` modifier precedes it on the same
// pair, the predicate is guarded to `(if when-test while-test true)` so
// when-false elements still pass through and are filtered later by the
// `:when` wrap in the per-element fn (spec.md §4.3.5).
func (a *Analyzer) buildForCollExpr(b forBinding, coll ast.Node, line, col int) (ast.Node, error) {
	var whenForm, whileForm *reader.Form
	for _, m := range b.mods {
		switch m.kind {
		case "when":
			f := m.form
			whenForm = &f
		case "while":
			f := m.form
			whileForm = &f
		}
	}
	if whileForm == nil {
		return coll, nil
	}
	a.pushScope()
	tmp := a.gensym("for")
	tmpSlot := a.bindLocal(tmp)
	destr, err := a.expandBindingPattern(b.pattern, a.localRefNode(tmp, tmpSlot, line, col), line, col)
	if err != nil {
		a.popScope()
		return nil, err
	}
	whileNode, err := a.Analyze(*whileForm)
	if err != nil {
		a.popScope()
		return nil, err
	}
	pred := whileNode
	if whenForm != nil {
		whenNode, err := a.Analyze(*whenForm)
		if err != nil {
			a.popScope()
			return nil, err
		}
		pred = withSrc(a.arena.NewIf(ast.IfNode{Test: whenNode, Then: whileNode, Else: a.constNode(value.Bool(true), line, col)}), a, line, col)
	}
	predBody := withSrc(a.arena.NewLet(ast.LetNode{Bindings: destr, Body: []ast.Node{pred}}), a, line, col)
	arity := &ast.FnArity{Params: []string{tmp}, Slots: []int{tmpSlot}, Body: []ast.Node{predBody}, LocalCount: a.locals.next}
	a.popScope()
	predFn := withSrc(a.arena.NewFn(ast.FnNode{Arities: []*ast.FnArity{arity}, DefiningNS: a.reg.Current().Name}), a, line, col)
	callee, err := a.resolveBuiltinRef("take-while", line, col)
	if err != nil {
		return nil, err
	}
	return withSrc(a.arena.NewCall(ast.CallNode{Fn: callee, Args: []ast.Node{predFn, coll}}), a, line, col), nil
}

// buildForElementFn builds the `(fn [tmp] let-destructure mods* value)`
// a binding pair's map/mapcat call applies to each source element.
func (a *Analyzer) buildForElementFn(b forBinding, line, col int, buildValue func() (ast.Node, error)) (*ast.FnNode, error) {
	a.pushScope()
	tmp := a.gensym("for")
	tmpSlot := a.bindLocal(tmp)
	destr, err := a.expandBindingPattern(b.pattern, a.localRefNode(tmp, tmpSlot, line, col), line, col)
	if err != nil {
		a.popScope()
		return nil, err
	}
	body, err := a.wrapForMods(b.mods, 0, line, col, buildValue)
	if err != nil {
		a.popScope()
		return nil, err
	}
	fullBody := withSrc(a.arena.NewLet(ast.LetNode{Bindings: destr, Body: []ast.Node{body}}), a, line, col)
	arity := &ast.FnArity{Params: []string{tmp}, Slots: []int{tmpSlot}, Body: []ast.Node{fullBody}, LocalCount: a.locals.next}
	a.popScope()
	return withSrc(a.arena.NewFn(ast.FnNode{Arities: []*ast.FnArity{arity}, DefiningNS: a.reg.Current().Name}), a, line, col), nil
}

// buildForLevel recursively desugars one binding pair and everything
// nested inside it: the innermost pair maps to `body` (or `(list
// body)` under a `:when`), every other pair mapcats into the next
// level's result (spec.md §4.3.5).
func (a *Analyzer) buildForLevel(bindings []forBinding, idx int, bodyForms []reader.Form, line, col int) (ast.Node, error) {
	b := bindings[idx]
	isInnermost := idx == len(bindings)-1
	useMapcat := !isInnermost || hasMod(b.mods, "when")

	collNode, err := a.Analyze(b.coll)
	if err != nil {
		return nil, err
	}
	collNode, err = a.buildForCollExpr(b, collNode, line, col)
	if err != nil {
		return nil, err
	}

	var buildValue func() (ast.Node, error)
	if isInnermost {
		buildValue = func() (ast.Node, error) {
			bodyNodes, err := a.analyzeBody(bodyForms)
			if err != nil {
				return nil, err
			}
			var bodyExpr ast.Node
			if len(bodyNodes) == 1 {
				bodyExpr = bodyNodes[0]
			} else {
				bodyExpr = withSrc(a.arena.NewDo(ast.DoNode{Body: bodyNodes}), a, line, col)
			}
			if !useMapcat {
				return bodyExpr, nil
			}
			listCallee, err := a.resolveBuiltinRef("list", line, col)
			if err != nil {
				return nil, err
			}
			return withSrc(a.arena.NewCall(ast.CallNode{Fn: listCallee, Args: []ast.Node{bodyExpr}}), a, line, col), nil
		}
	} else {
		buildValue = func() (ast.Node, error) {
			return a.buildForLevel(bindings, idx+1, bodyForms, line, col)
		}
	}

	fn, err := a.buildForElementFn(b, line, col, buildValue)
	if err != nil {
		return nil, err
	}
	combinator := "map"
	if useMapcat {
		combinator = "mapcat"
	}
	callee, err := a.resolveBuiltinRef(combinator, line, col)
	if err != nil {
		return nil, err
	}
	return withSrc(a.arena.NewCall(ast.CallNode{Fn: callee, Args: []ast.Node{fn, collNode}}), a, line, col), nil
}

// analyzeFor desugars `(for [x coll …mods… y coll2 …mods…] body)` to
// nested `map`/`mapcat` calls (spec.md §4.3.5).
func analyzeFor(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) < 2 || args[0].Kind != reader.KindVector {
		return nil, &Error{Line: line, Column: col, Msg: "for requires a binding vector and a body"}
	}
	bindings, err := parseForBindings(args[0])
	if err != nil {
		return nil, err
	}
	if len(bindings) == 0 {
		return nil, &Error{Line: line, Column: col, Msg: "for requires at least one binding pair"}
	}
	return a.buildForLevel(bindings, 0, args[1:], line, col)
}

// analyzeCaseStar parses the pre-computed hash dispatch table a `case`
// macro expansion hands the analyzer (spec.md §4.3.2): `(case* expr
// shift mask default {hash [test then test then…]…} test-type
// skip-check-set?)`.
func analyzeCaseStar(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) < 6 {
		return nil, &Error{Line: line, Column: col, Msg: "case* requires expr, shift, mask, default, clauses, and test-type"}
	}
	exprNode, err := a.Analyze(args[0])
	if err != nil {
		return nil, err
	}
	shiftForm, maskForm := args[1], args[2]
	if shiftForm.Kind != reader.KindInt || maskForm.Kind != reader.KindInt {
		return nil, &Error{Line: line, Column: col, Msg: "case* shift/mask must be integer literals"}
	}
	defaultNode, err := a.Analyze(args[3])
	if err != nil {
		return nil, err
	}
	clausesForm := args[4]
	if clausesForm.Kind != reader.KindMap {
		return nil, &Error{Line: clausesForm.Line, Column: clausesForm.Column, Msg: "case* clauses must be a map literal"}
	}
	clauses := map[int64][]ast.CaseClause{}
	for i := 0; i+1 < len(clausesForm.Items); i += 2 {
		keyForm := clausesForm.Items[i]
		if keyForm.Kind != reader.KindInt {
			return nil, &Error{Line: keyForm.Line, Column: keyForm.Column, Msg: "case* clause key must be an integer hash"}
		}
		valForm := clausesForm.Items[i+1]
		if valForm.Kind != reader.KindVector || len(valForm.Items)%2 != 0 {
			return nil, &Error{Line: valForm.Line, Column: valForm.Column, Msg: "case* clause value must be a [test then …] vector"}
		}
		var entries []ast.CaseClause
		for j := 0; j+1 < len(valForm.Items); j += 2 {
			testNode, err := a.Analyze(valForm.Items[j])
			if err != nil {
				return nil, err
			}
			thenNode, err := a.Analyze(valForm.Items[j+1])
			if err != nil {
				return nil, err
			}
			entries = append(entries, ast.CaseClause{Test: testNode, Then: thenNode})
		}
		clauses[keyForm.Int] = entries
	}
	testTypeForm := args[5]
	if testTypeForm.Kind != reader.KindKeyword {
		return nil, &Error{Line: testTypeForm.Line, Column: testTypeForm.Column, Msg: "case* test-type must be a keyword"}
	}
	testType := ast.CaseTestHashEquiv
	switch testTypeForm.KwName {
	case "int":
		testType = ast.CaseTestInt
	case "hash-identity":
		testType = ast.CaseTestHashIdentity
	}
	var skipCheck map[int64]bool
	if len(args) > 6 && args[6].Kind == reader.KindSet {
		skipCheck = map[int64]bool{}
		for _, it := range args[6].Items {
			if it.Kind == reader.KindInt {
				skipCheck[it.Int] = true
			}
		}
	}
	return withSrc(a.arena.NewCaseStar(ast.CaseStarNode{
		Expr:      exprNode,
		Shift:     uint(shiftForm.Int),
		Mask:      uint(maskForm.Int),
		TestType:  testType,
		Clauses:   clauses,
		Default:   defaultNode,
		SkipCheck: skipCheck,
	}), a, line, col), nil
}
