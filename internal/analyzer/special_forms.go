package analyzer

import (
	"fmt"

	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/reader"
	"github.com/cwbudde/go-clj/internal/value"
)

// analyzeBody analyzes a sequence of body Forms in the current scope.
func (a *Analyzer) analyzeBody(forms []reader.Form) ([]ast.Node, error) {
	out := make([]ast.Node, len(forms))
	for i, f := range forms {
		n, err := a.Analyze(f)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// analyzeIf is `if`: 2 or 3 args, an absent else implies nil (spec.md
// §4.3.2).
func analyzeIf(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, &Error{Line: line, Column: col, Msg: "if requires 2 or 3 forms"}
	}
	test, err := a.Analyze(args[0])
	if err != nil {
		return nil, err
	}
	then, err := a.Analyze(args[1])
	if err != nil {
		return nil, err
	}
	var els ast.Node
	if len(args) == 3 {
		els, err = a.Analyze(args[2])
		if err != nil {
			return nil, err
		}
	}
	return withSrc(a.arena.NewIf(ast.IfNode{Test: test, Then: then, Else: els}), a, line, col), nil
}

// analyzeDo is `do`: n>=0 body forms, an empty do evaluates to nil.
func analyzeDo(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	body, err := a.analyzeBody(args)
	if err != nil {
		return nil, err
	}
	return withSrc(a.arena.NewDo(ast.DoNode{Body: body}), a, line, col), nil
}

// bindingPairs splits a `[a 1 b 2]` binding vector Form into its pattern
// and init Forms, erroring on an odd-length vector.
func bindingPairs(f reader.Form, line, col int) ([]reader.Form, []reader.Form, error) {
	if f.Kind != reader.KindVector {
		return nil, nil, &Error{Line: line, Column: col, Msg: "expected a binding vector"}
	}
	if len(f.Items)%2 != 0 {
		return nil, nil, &Error{Line: f.Line, Column: f.Column, Msg: "binding vector must have an even number of forms"}
	}
	patterns := make([]reader.Form, 0, len(f.Items)/2)
	inits := make([]reader.Form, 0, len(f.Items)/2)
	for i := 0; i+1 < len(f.Items); i += 2 {
		patterns = append(patterns, f.Items[i])
		inits = append(inits, f.Items[i+1])
	}
	return patterns, inits, nil
}

// analyzeLet is `let`/`let*`: pairs are analyzed left to right, each
// init seeing only the previously bound names, with destructuring
// patterns expanded per spec.md §4.3.3.
func analyzeLet(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) < 1 {
		return nil, &Error{Line: line, Column: col, Msg: "let requires a binding vector"}
	}
	patterns, inits, err := bindingPairs(args[0], line, col)
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
	body, err := a.analyzeBody(args[1:])
	if err != nil {
		return nil, err
	}
	return withSrc(a.arena.NewLet(ast.LetNode{Bindings: bindings, Body: body}), a, line, col), nil
}

// analyzeLetFn is `letfn*`: every name is pre-registered before any
// init is analyzed, so mutually recursive fns resolve each other.
func analyzeLetFn(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) < 1 {
		return nil, &Error{Line: line, Column: col, Msg: "letfn* requires a binding vector"}
	}
	patterns, inits, err := bindingPairs(args[0], line, col)
	if err != nil {
		return nil, err
	}
	a.pushScope()
	defer a.popScope()

	slots := make([]int, len(patterns))
	names := make([]string, len(patterns))
	for i, pat := range patterns {
		if pat.Kind != reader.KindSymbol {
			return nil, &Error{Line: pat.Line, Column: pat.Column, Msg: "letfn* bindings must be simple symbols"}
		}
		names[i] = pat.SymName
		slots[i] = a.bindLocal(pat.SymName)
	}
	bindings := make([]ast.Binding, len(patterns))
	for i, initForm := range inits {
		initNode, err := a.Analyze(initForm)
		if err != nil {
			return nil, err
		}
		bindings[i] = ast.Binding{Name: names[i], Slot: slots[i], Init: initNode}
	}
	body, err := a.analyzeBody(args[1:])
	if err != nil {
		return nil, err
	}
	return withSrc(a.arena.NewLetFn(ast.LetFnNode{Bindings: bindings, Body: body}), a, line, col), nil
}

// analyzeLoop is `loop`/`loop*`: like let, but the body is a recur
// point. Destructuring patterns bind a synthetic `__loop_{n}__` target
// that recur actually rebinds, with an inner let re-expanding it on
// every iteration (spec.md §4.3.2, §4.3.3).
func analyzeLoop(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) < 1 {
		return nil, &Error{Line: line, Column: col, Msg: "loop requires a binding vector"}
	}
	patterns, inits, err := bindingPairs(args[0], line, col)
	if err != nil {
		return nil, err
	}
	a.pushScope()
	defer a.popScope()

	var targets []ast.Binding
	var innerBindings []ast.Binding

	for i, pat := range patterns {
		initNode, err := a.Analyze(inits[i])
		if err != nil {
			return nil, err
		}
		if pat.Kind == reader.KindSymbol {
			slot := a.bindLocal(pat.SymName)
			targets = append(targets, ast.Binding{Name: pat.SymName, Slot: slot, Init: initNode})
			continue
		}
		synthetic := a.gensym("loop")
		slot := a.bindLocal(synthetic)
		targets = append(targets, ast.Binding{Name: synthetic, Slot: slot, Init: initNode})
		// Expand now, not after the body analyzes: the destructured names
		// must already be in scope for recur/body references to resolve
		// (mirrors parseFnArity's param-then-body order).
		sub, err := a.expandBindingPattern(pat, a.localRefNode(synthetic, slot, line, col), pat.Line, pat.Column)
		if err != nil {
			return nil, err
		}
		innerBindings = append(innerBindings, sub...)
	}

	a.loopStack = append(a.loopStack, &loopCtx{arity: len(targets)})
	defer func() { a.loopStack = a.loopStack[:len(a.loopStack)-1] }()

	body, err := a.analyzeBody(args[1:])
	if err != nil {
		return nil, err
	}
	if len(innerBindings) > 0 {
		inner := withSrc(a.arena.NewLet(ast.LetNode{Bindings: innerBindings, Body: body}), a, line, col)
		body = []ast.Node{inner}
	}
	return withSrc(a.arena.NewLoop(ast.LoopNode{Bindings: targets, Body: body}), a, line, col), nil
}

// analyzeRecur jumps to the nearest enclosing recur point; its arity
// must match that point's binding/parameter count (spec.md §8.1).
func analyzeRecur(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(a.loopStack) == 0 {
		return nil, &Error{Line: line, Column: col, Msg: "recur used outside of a loop or fn"}
	}
	top := a.loopStack[len(a.loopStack)-1]
	if len(args) != top.arity {
		return nil, &Error{Line: line, Column: col, Msg: fmt.Sprintf("recur expected %d arguments, got %d", top.arity, len(args))}
	}
	nodes, err := a.analyzeBody(args)
	if err != nil {
		return nil, err
	}
	return withSrc(a.arena.NewRecur(ast.RecurNode{Args: nodes}), a, line, col), nil
}

// stripMeta unwraps `(with-meta target meta)`, returning target and the
// meta Form when present; otherwise f is returned unchanged.
func stripMeta(f reader.Form) (reader.Form, *reader.Form) {
	if f.Kind == reader.KindList && len(f.Items) == 3 && f.Items[0].Kind == reader.KindSymbol && f.Items[0].SymName == "with-meta" {
		meta := f.Items[2]
		return f.Items[1], &meta
	}
	return f, nil
}

// parseFnArity analyzes one `([params] body*)` arity. name, if
// non-empty, is already bound as a self-reference local in the
// enclosing scope.
func (a *Analyzer) parseFnArity(paramsForm reader.Form, body []reader.Form) (*ast.FnArity, error) {
	if paramsForm.Kind != reader.KindVector {
		return nil, &Error{Line: paramsForm.Line, Column: paramsForm.Column, Msg: "fn arity requires a parameter vector"}
	}
	a.pushScope()
	defer a.popScope()

	var params []string
	var slots []int
	variadic := false
	var pendingDestructures []ast.Binding

	items := paramsForm.Items
	for i := 0; i < len(items); i++ {
		item := items[i]
		if item.Kind == reader.KindSymbol && item.SymName == "&" {
			variadic = true
			continue
		}
		target, _ := stripMeta(item)
		if target.Kind == reader.KindSymbol {
			slot := a.bindLocal(target.SymName)
			params = append(params, target.SymName)
			slots = append(slots, slot)
			continue
		}
		synthetic := a.gensym("p")
		slot := a.bindLocal(synthetic)
		params = append(params, synthetic)
		slots = append(slots, slot)
		sub, err := a.expandBindingPattern(target, a.localRefNode(synthetic, slot, target.Line, target.Column), target.Line, target.Column)
		if err != nil {
			return nil, err
		}
		pendingDestructures = append(pendingDestructures, sub...)
	}

	a.loopStack = append(a.loopStack, &loopCtx{arity: len(params)})
	defer func() { a.loopStack = a.loopStack[:len(a.loopStack)-1] }()

	bodyNodes, err := a.analyzeBody(body)
	if err != nil {
		return nil, err
	}
	if len(pendingDestructures) > 0 {
		inner := withSrc(a.arena.NewLet(ast.LetNode{Bindings: pendingDestructures, Body: bodyNodes}), a, paramsForm.Line, paramsForm.Column)
		bodyNodes = []ast.Node{inner}
	}
	return &ast.FnArity{
		Params:     params,
		Slots:      slots,
		Variadic:   variadic,
		Body:       bodyNodes,
		LocalCount: a.locals.next,
	}, nil
}

// analyzeFn is `fn`/`fn*`: optional name, optional docstring only when
// named, one or more arities (spec.md §4.3.2).
func analyzeFn(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	name := ""
	if len(args) > 0 && args[0].Kind == reader.KindSymbol {
		name = args[0].SymName
		args = args[1:]
	}
	if name != "" && len(args) > 0 && args[0].Kind == reader.KindString {
		args = args[1:] // docstring, informational only
	}
	if len(args) == 0 {
		return nil, &Error{Line: line, Column: col, Msg: "fn requires at least one arity"}
	}

	a.pushScope()
	defer a.popScope()
	if name != "" {
		a.bindLocal(name)
	}

	var arityForms []reader.Form
	if args[0].Kind == reader.KindVector {
		arityForms = []reader.Form{{Kind: reader.KindList, Line: args[0].Line, Column: args[0].Column, Items: args}}
	} else {
		arityForms = args
	}

	arities := make([]*ast.FnArity, len(arityForms))
	for i, af := range arityForms {
		if af.Kind != reader.KindList || len(af.Items) == 0 {
			return nil, &Error{Line: af.Line, Column: af.Column, Msg: "fn arity must be a (params body*) list"}
		}
		arity, err := a.parseFnArity(af.Items[0], af.Items[1:])
		if err != nil {
			return nil, err
		}
		arities[i] = arity
	}
	return withSrc(a.arena.NewFn(ast.FnNode{Name: name, Arities: arities, DefiningNS: a.reg.Current().Name}), a, line, col), nil
}

// extractNameMeta unwraps a def target that the reader produced as
// `(with-meta sym meta-map)` for `^:flag sym` syntax, returning the
// plain symbol name and any flags found in the metadata map.
func extractNameMeta(f reader.Form) (name string, isDynamic, isPrivate, isConst bool, doc string, meta reader.Form, hasMeta bool) {
	target, metaForm := stripMeta(f)
	name = target.SymName
	if metaForm == nil || metaForm.Kind != reader.KindMap {
		return name, false, false, false, "", reader.Form{}, false
	}
	meta = *metaForm
	hasMeta = true
	for i := 0; i+1 < len(meta.Items); i += 2 {
		k := meta.Items[i]
		v := meta.Items[i+1]
		if k.Kind != reader.KindKeyword {
			continue
		}
		switch k.KwName {
		case "dynamic":
			isDynamic = v.Kind == reader.KindBool && v.Bool
		case "private":
			isPrivate = v.Kind == reader.KindBool && v.Bool
		case "const":
			isConst = v.Kind == reader.KindBool && v.Bool
		case "doc":
			if v.Kind == reader.KindString {
				doc = v.Str
			}
		}
	}
	return name, isDynamic, isPrivate, isConst, doc, meta, hasMeta
}

// analyzeDefCommon backs both `def` and `defmacro`: `(def name init?)`
// or `(def name doc init)`, with metadata flags parsed off the name
// (spec.md §4.3.2).
func analyzeDefCommon(a *Analyzer, line, col int, args []reader.Form, isMacro bool) (ast.Node, error) {
	if len(args) < 1 {
		return nil, &Error{Line: line, Column: col, Msg: "def requires a name"}
	}
	name, isDynamic, isPrivate, isConst, metaDoc, metaForm, hasMeta := extractNameMeta(args[0])
	if name == "" {
		return nil, &Error{Line: args[0].Line, Column: args[0].Column, Msg: "def name must be a symbol"}
	}

	rest := args[1:]
	doc := metaDoc
	var initForm *reader.Form
	switch {
	case len(rest) == 2 && rest[0].Kind == reader.KindString:
		doc = rest[0].Str
		initForm = &rest[1]
	case len(rest) == 1:
		initForm = &rest[0]
	case len(rest) == 0:
		// no initializer
	default:
		return nil, &Error{Line: line, Column: col, Msg: "def accepts (def name), (def name init), or (def name doc init)"}
	}

	v := a.reg.Current().Intern(name)
	v.IsDynamic = isDynamic
	v.IsPrivate = isPrivate
	v.IsConst = isConst
	v.Doc = doc
	v.IsMacro = isMacro

	var metaVal value.Value
	if hasMeta {
		mv, err := formToValue(metaForm)
		if err != nil {
			return nil, err
		}
		metaVal = mv
		v.Meta = mv
	}

	var initNode ast.Node
	if initForm != nil {
		n, err := a.Analyze(*initForm)
		if err != nil {
			return nil, err
		}
		initNode = n
		if fn, ok := n.(*ast.FnNode); ok {
			v.ArgLists = fnArgLists(fn)
		}
	}
	return withSrc(a.arena.NewDef(ast.DefNode{Name: name, Init: initNode, IsMacro: isMacro, Doc: doc, Meta: metaVal}), a, line, col), nil
}

func fnArgLists(fn *ast.FnNode) string {
	s := "("
	for i, ar := range fn.Arities {
		if i > 0 {
			s += " "
		}
		s += "["
		for j, p := range ar.Params {
			if j > 0 {
				s += " "
			}
			if ar.Variadic && j == len(ar.Params)-1 {
				s += "& "
			}
			s += p
		}
		s += "]"
	}
	s += ")"
	return s
}

func analyzeDef(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	return analyzeDefCommon(a, line, col, args, false)
}

func analyzeDefMacro(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	return analyzeDefCommon(a, line, col, args, true)
}

// analyzeSetBang is `set!`: mutates the top dynamic binding for a Var;
// the runtime evaluator errors if the target isn't dynamic (spec.md
// §4.3.2, §4.2 Frames.Set).
func analyzeSetBang(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) != 2 || args[0].Kind != reader.KindSymbol {
		return nil, &Error{Line: line, Column: col, Msg: "set! requires a var symbol and a value"}
	}
	val, err := a.Analyze(args[1])
	if err != nil {
		return nil, err
	}
	return withSrc(a.arena.NewSetBang(ast.SetBangNode{Name: args[0].SymName, Val: val}), a, line, col), nil
}

// analyzeQuote captures its single argument Form verbatim as a Value.
func analyzeQuote(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) != 1 {
		return nil, &Error{Line: line, Column: col, Msg: "quote requires exactly one form"}
	}
	v, err := formToValue(args[0])
	if err != nil {
		return nil, err
	}
	return withSrc(a.arena.NewQuote(ast.QuoteNode{Value: v}), a, line, col), nil
}

// analyzeVarForm is `(var sym)`/`#'sym`: resolves (auto-interning an
// unqualified target in the current ns if absent, JVM-Clojure
// semantics) a symbol to its Var at analysis time.
func analyzeVarForm(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) != 1 || args[0].Kind != reader.KindSymbol {
		return nil, &Error{Line: line, Column: col, Msg: "var requires a single symbol"}
	}
	sym := args[0]
	if sym.SymNs == "" {
		v := a.reg.Current().Intern(sym.SymName)
		return withSrc(a.arena.NewVarForm(ast.VarFormNode{Ns: v.NsName, Name: v.Sym}), a, line, col), nil
	}
	v, ok := a.reg.ResolveQualified(a.reg.Current(), sym.SymNs, sym.SymName)
	if !ok {
		return nil, &Error{Line: sym.Line, Column: sym.Column, Msg: fmt.Sprintf("Unable to resolve var: %s", qualifiedName(sym))}
	}
	return withSrc(a.arena.NewVarForm(ast.VarFormNode{Ns: v.NsName, Name: v.Sym}), a, line, col), nil
}

// analyzeThrow analyzes `throw`'s single argument.
func analyzeThrow(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) != 1 {
		return nil, &Error{Line: line, Column: col, Msg: "throw requires exactly one form"}
	}
	expr, err := a.Analyze(args[0])
	if err != nil {
		return nil, err
	}
	return withSrc(a.arena.NewThrow(ast.ThrowNode{Expr: expr}), a, line, col), nil
}

// analyzeTry nests multi-catch into a chain of single-catch TryNodes
// (spec.md §4.3.2): every node in the chain carries its own Catch
// clause and an Inner pointer to the next catch to try on a type
// mismatch; only the outermost (first-written) node carries Body and
// Finally.
func analyzeTry(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	var bodyForms []reader.Form
	var catchForms []reader.Form
	var finallyForms []reader.Form
	i := 0
	for ; i < len(args); i++ {
		if isHeadSymbol(args[i], "catch") || isHeadSymbol(args[i], "finally") {
			break
		}
		bodyForms = append(bodyForms, args[i])
	}
	for ; i < len(args); i++ {
		if isHeadSymbol(args[i], "catch") {
			catchForms = append(catchForms, args[i])
			continue
		}
		if isHeadSymbol(args[i], "finally") {
			finallyForms = args[i].Items[1:]
			continue
		}
		return nil, &Error{Line: args[i].Line, Column: args[i].Column, Msg: "try body must precede catch/finally clauses"}
	}

	clauses := make([]ast.CatchClause, len(catchForms))
	for idx, cf := range catchForms {
		if len(cf.Items) < 3 || cf.Items[1].Kind != reader.KindSymbol || cf.Items[2].Kind != reader.KindSymbol {
			return nil, &Error{Line: cf.Line, Column: cf.Column, Msg: "catch requires (catch ClassName name body*)"}
		}
		className := qualifiedName(cf.Items[1])
		bindName := cf.Items[2].SymName
		a.pushScope()
		bindSlot := a.bindLocal(bindName)
		catchBody, err := a.analyzeBody(cf.Items[3:])
		a.popScope()
		if err != nil {
			return nil, err
		}
		clauses[idx] = ast.CatchClause{ClassName: className, BindName: bindName, BindSlot: bindSlot, Body: catchBody}
	}

	body, err := a.analyzeBody(bodyForms)
	if err != nil {
		return nil, err
	}
	finally, err := a.analyzeBody(finallyForms)
	if err != nil {
		return nil, err
	}

	var chain *ast.TryNode
	for idx := len(clauses) - 1; idx >= 0; idx-- {
		clause := clauses[idx]
		chain = withSrc(a.arena.NewTry(ast.TryNode{Catch: &clause, Inner: chain}), a, line, col)
	}
	if chain == nil {
		chain = withSrc(a.arena.NewTry(ast.TryNode{}), a, line, col)
	}
	chain.Body = body
	chain.Finally = finally
	return chain, nil
}

func isHeadSymbol(f reader.Form, name string) bool {
	return f.Kind == reader.KindList && len(f.Items) > 0 && f.Items[0].Kind == reader.KindSymbol && f.Items[0].SymName == name
}

// analyzeLazySeq wraps its body as a deferred zero-arg thunk (spec.md
// §4.3.2); the body closes over the current lexical scope exactly like
// a fn with no parameters, so no new scope frame is required.
func analyzeLazySeq(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	body, err := a.analyzeBody(args)
	if err != nil {
		return nil, err
	}
	return withSrc(a.arena.NewLazySeq(ast.LazySeqNode{Body: body}), a, line, col), nil
}
