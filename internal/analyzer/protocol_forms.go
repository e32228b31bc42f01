package analyzer

import (
	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/reader"
	"github.com/cwbudde/go-clj/internal/value"
)

// analyzeDefProtocol parses `(defprotocol Name (method [this args…])
// (method [this a b]) …)`: duplicate method names are rejected and
// every arity needs at least one arg for `this` (spec.md §4.3.2).
func analyzeDefProtocol(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) < 1 || args[0].Kind != reader.KindSymbol {
		return nil, &Error{Line: line, Column: col, Msg: "defprotocol requires a name"}
	}
	name := args[0].SymName
	seen := map[string]bool{}
	var methods []ast.ProtocolMethodSig
	for _, mform := range args[1:] {
		if mform.Kind == reader.KindString {
			continue // protocol docstring
		}
		if mform.Kind != reader.KindList || len(mform.Items) < 2 || mform.Items[0].Kind != reader.KindSymbol {
			return nil, &Error{Line: mform.Line, Column: mform.Column, Msg: "defprotocol method must be (name [args…] …)"}
		}
		mname := mform.Items[0].SymName
		if seen[mname] {
			return nil, &Error{Line: mform.Line, Column: mform.Column, Msg: "duplicate protocol method name: " + mname}
		}
		seen[mname] = true
		var arities [][]string
		for _, arityForm := range mform.Items[1:] {
			if arityForm.Kind == reader.KindString {
				continue // method docstring
			}
			if arityForm.Kind != reader.KindVector || len(arityForm.Items) == 0 {
				return nil, &Error{Line: arityForm.Line, Column: arityForm.Column, Msg: "protocol method arity requires at least a `this` arg"}
			}
			params := make([]string, len(arityForm.Items))
			for i, p := range arityForm.Items {
				if p.Kind != reader.KindSymbol {
					return nil, &Error{Line: p.Line, Column: p.Column, Msg: "protocol method params must be symbols"}
				}
				params[i] = p.SymName
			}
			arities = append(arities, params)
		}
		if len(arities) == 0 {
			return nil, &Error{Line: mform.Line, Column: mform.Column, Msg: "protocol method requires at least one arity"}
		}
		methods = append(methods, ast.ProtocolMethodSig{Name: mname, Arities: arities})
	}
	return withSrc(a.arena.NewDefProtocol(ast.DefProtocolNode{Name: name, Methods: methods}), a, line, col), nil
}

// builtinTypeAliases maps the Java-class-style names `extend-type`/
// `reify` accept for host types to the Kind.String() key protocol.TypeKey
// actually computes (spec.md §4.7 "fallback to the user-name alias of
// built-in types (String, Integer)").
var builtinTypeAliases = map[string]string{
	"String": "string", "Integer": "integer", "Long": "integer",
	"Double": "float", "Float": "float", "Boolean": "boolean",
	"Character": "char", "Keyword": "keyword", "Symbol": "symbol",
	"List": "list", "Vector": "vector", "Map": "map", "Set": "set",
}

// typeKeyForExtend resolves an `extend-type`/`reify` type-position Form
// to the type key string `protocol.TypeKey` would compute at dispatch.
func typeKeyForExtend(f reader.Form) string {
	if f.Kind == reader.KindNil {
		return "nil"
	}
	if f.Kind == reader.KindSymbol {
		if alias, ok := builtinTypeAliases[f.SymName]; ok {
			return alias
		}
		return f.SymName
	}
	return ""
}

// methodFnNode parses `(name [params] body*)` into an anonymous
// single-arity FnNode.
func (a *Analyzer) methodFnNode(mform reader.Form) (string, *ast.FnNode, error) {
	if mform.Kind != reader.KindList || len(mform.Items) < 2 || mform.Items[0].Kind != reader.KindSymbol {
		return "", nil, &Error{Line: mform.Line, Column: mform.Column, Msg: "method implementation must be (name [params] body*)"}
	}
	name := mform.Items[0].SymName
	paramsForm := mform.Items[1]
	arity, err := a.parseFnArity(paramsForm, mform.Items[2:])
	if err != nil {
		return "", nil, err
	}
	fn := withSrc(a.arena.NewFn(ast.FnNode{Arities: []*ast.FnArity{arity}, DefiningNS: a.reg.Current().Name}), a, mform.Line, mform.Column)
	return name, fn, nil
}

// extendGroup is one `ProtocolName (method …) (method …)` run inside
// extend-type/reify.
type extendGroup struct {
	protocol string
	methods  []ast.ExtendTypeMethod
}

func (a *Analyzer) parseExtendGroups(forms []reader.Form) ([]extendGroup, error) {
	var groups []extendGroup
	for _, f := range forms {
		if f.Kind == reader.KindSymbol {
			groups = append(groups, extendGroup{protocol: qualifiedName(f)})
			continue
		}
		if len(groups) == 0 {
			return nil, &Error{Line: f.Line, Column: f.Column, Msg: "expected a protocol name before method implementations"}
		}
		mname, fn, err := a.methodFnNode(f)
		if err != nil {
			return nil, err
		}
		cur := &groups[len(groups)-1]
		cur.methods = append(cur.methods, ast.ExtendTypeMethod{Name: mname, Fn: fn})
	}
	return groups, nil
}

// analyzeExtendType registers method fns on a type key for one or more
// protocols (spec.md §4.3.2); more than one protocol group desugars to
// a `do` of one ExtendTypeNode per protocol.
func analyzeExtendType(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) < 1 {
		return nil, &Error{Line: line, Column: col, Msg: "extend-type requires a type"}
	}
	typeKey := typeKeyForExtend(args[0])
	groups, err := a.parseExtendGroups(args[1:])
	if err != nil {
		return nil, err
	}
	nodes := make([]ast.Node, len(groups))
	for i, g := range groups {
		nodes[i] = withSrc(a.arena.NewExtendType(ast.ExtendTypeNode{TypeKey: typeKey, ProtocolName: g.protocol, Methods: g.methods}), a, line, col)
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return withSrc(a.arena.NewDo(ast.DoNode{Body: nodes}), a, line, col), nil
}

// analyzeReify is an anonymous implementation of one or more protocols
// (spec.md §4.3.2); unlike extend-type its protocols and methods are
// recorded flatly on a single Value.
func analyzeReify(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	groups, err := a.parseExtendGroups(args)
	if err != nil {
		return nil, err
	}
	var protocols []string
	var methods []ast.ExtendTypeMethod
	for _, g := range groups {
		protocols = append(protocols, g.protocol)
		methods = append(methods, g.methods...)
	}
	return withSrc(a.arena.NewReify(ast.ReifyNode{Protocols: protocols, Methods: methods}), a, line, col), nil
}

// analyzeDefRecord desugars `(defrecord Name [fields…])` into a `do` of
// two defs (spec.md §4.3.2): `->Name` is a positional constructor
// building a map tagged `:__reify_type "Name"`, and `map->Name` is
// identity on an already-shaped map.
func analyzeDefRecord(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) < 2 || args[0].Kind != reader.KindSymbol || args[1].Kind != reader.KindVector {
		return nil, &Error{Line: line, Column: col, Msg: "defrecord requires a name and a field vector"}
	}
	name := args[0].SymName
	fields := args[1].Items

	a.pushScope()
	fieldSlots := make([]int, len(fields))
	fieldNames := make([]string, len(fields))
	for i, f := range fields {
		if f.Kind != reader.KindSymbol {
			return nil, &Error{Line: f.Line, Column: f.Column, Msg: "defrecord fields must be symbols"}
		}
		fieldNames[i] = f.SymName
		fieldSlots[i] = a.bindLocal(f.SymName)
	}
	hashMapCallee, err := a.resolveBuiltinRef("hash-map", line, col)
	if err != nil {
		a.popScope()
		return nil, err
	}
	mapArgs := make([]ast.Node, 0, 2+2*len(fields))
	mapArgs = append(mapArgs, a.constNode(value.Kw("", "__reify_type"), line, col), a.constNode(value.String(name), line, col))
	for i, fn := range fieldNames {
		mapArgs = append(mapArgs, a.constNode(value.Kw("", fn), line, col), a.localRefNode(fn, fieldSlots[i], line, col))
	}
	ctorBody := []ast.Node{withSrc(a.arena.NewCall(ast.CallNode{Fn: hashMapCallee, Args: mapArgs}), a, line, col)}
	ctorArity := &ast.FnArity{Params: fieldNames, Slots: fieldSlots, Body: ctorBody, LocalCount: a.locals.next}
	a.popScope()
	ctorFn := withSrc(a.arena.NewFn(ast.FnNode{Name: "->" + name, Arities: []*ast.FnArity{ctorArity}, DefiningNS: a.reg.Current().Name}), a, line, col)
	ctorVar := a.reg.Current().Intern("->" + name)
	ctorDef := withSrc(a.arena.NewDef(ast.DefNode{Name: "->" + name, Init: ctorFn}), a, line, col)
	ctorVar.ArgLists = fnArgLists(ctorFn)

	a.pushScope()
	mSlot := a.bindLocal("m")
	identityArity := &ast.FnArity{Params: []string{"m"}, Slots: []int{mSlot}, Body: []ast.Node{a.localRefNode("m", mSlot, line, col)}, LocalCount: a.locals.next}
	a.popScope()
	identityFn := withSrc(a.arena.NewFn(ast.FnNode{Name: "map->" + name, Arities: []*ast.FnArity{identityArity}, DefiningNS: a.reg.Current().Name}), a, line, col)
	a.reg.Current().Intern("map->" + name)
	identityDef := withSrc(a.arena.NewDef(ast.DefNode{Name: "map->" + name, Init: identityFn}), a, line, col)

	return withSrc(a.arena.NewDo(ast.DoNode{Body: []ast.Node{ctorDef, identityDef}}), a, line, col), nil
}

// analyzeDefMulti is `(defmulti name dispatch-fn-expr)` (spec.md
// §4.3.2): interns name's Var now so later code in the same file
// resolves it even before the first evaluation pass constructs its
// multi_fn Value.
func analyzeDefMulti(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) < 2 || args[0].Kind != reader.KindSymbol {
		return nil, &Error{Line: line, Column: col, Msg: "defmulti requires a name and a dispatch expression"}
	}
	name := args[0].SymName
	a.reg.Current().Intern(name)
	dispatchExpr := args[len(args)-1] // skip any metadata map preceding it
	dispatchNode, err := a.Analyze(dispatchExpr)
	if err != nil {
		return nil, err
	}
	return withSrc(a.arena.NewDefMulti(ast.DefMultiNode{Name: name, DispatchFn: dispatchNode}), a, line, col), nil
}

// analyzeDefMethod is `(defmethod name dispatch-val [params] body*)`
// (spec.md §4.3.2).
func analyzeDefMethod(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) < 3 || args[0].Kind != reader.KindSymbol || args[2].Kind != reader.KindVector {
		return nil, &Error{Line: line, Column: col, Msg: "defmethod requires (defmethod name dispatch-val [params] body*)"}
	}
	name := args[0].SymName
	dispatchNode, err := a.Analyze(args[1])
	if err != nil {
		return nil, err
	}
	arity, err := a.parseFnArity(args[2], args[3:])
	if err != nil {
		return nil, err
	}
	fn := withSrc(a.arena.NewFn(ast.FnNode{Arities: []*ast.FnArity{arity}, DefiningNS: a.reg.Current().Name}), a, line, col)
	return withSrc(a.arena.NewDefMethod(ast.DefMethodNode{MultiName: name, DispatchVal: dispatchNode, Fn: fn}), a, line, col), nil
}
