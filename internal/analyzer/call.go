package analyzer

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/ns"
	"github.com/cwbudde/go-clj/internal/reader"
	"github.com/cwbudde/go-clj/internal/value"
)

// analyzeList implements the list dispatch order of spec.md §4.3.1.
func (a *Analyzer) analyzeList(f reader.Form) (ast.Node, error) {
	if len(f.Items) == 0 {
		return withSrc(a.arena.NewConstant(ast.ConstantNode{Value: value.EmptyList()}), a, f.Line, f.Column), nil
	}
	head := f.Items[0]
	args := f.Items[1:]

	if node, ok, err := a.tryTypeHintStrip(head, args); ok || err != nil {
		return node, err
	}

	if head.Kind == reader.KindSymbol {
		if handler, ok := a.specialFormHandlerFor(head); ok {
			return handler(a, f.Line, f.Column, args)
		}
		if v, ok := a.resolveVarForSymbol(head); ok && v.IsMacro {
			return a.expandMacro(v, f)
		}
		if node, ok, err := a.tryJavaInterop(head, args, f.Line, f.Column); ok || err != nil {
			return node, err
		}
	}

	calleeNode, err := a.Analyze(head)
	if err != nil {
		return nil, err
	}
	argNodes := make([]ast.Node, len(args))
	for i, arg := range args {
		n, err := a.Analyze(arg)
		if err != nil {
			return nil, err
		}
		argNodes[i] = n
	}
	return withSrc(a.arena.NewCall(ast.CallNode{Fn: calleeNode, Args: argNodes}), a, f.Line, f.Column), nil
}

// specialFormHandlerFor implements "locals shadow special forms" and
// the qualified-symbol-resolves-to-core carve-out (spec.md §4.3.1
// steps 3-4).
func (a *Analyzer) specialFormHandlerFor(head reader.Form) (specialFormFn, bool) {
	if head.SymNs == "" {
		if _, isLocal := a.resolveLocal(head.SymName); isLocal {
			return nil, false
		}
		h, ok := a.specialForms[head.SymName]
		return h, ok
	}
	if target, ok := a.reg.Find(head.SymNs); ok && isCoreNamespace(target) {
		h, ok := a.specialForms[head.SymName]
		return h, ok
	}
	return nil, false
}

func isCoreNamespace(n *ns.Namespace) bool {
	return n.Name == "clojure.core" || n.Name == "core"
}

func (a *Analyzer) resolveVarForSymbol(f reader.Form) (*ns.Var, bool) {
	cur := a.reg.Current()
	if f.SymNs != "" {
		return a.reg.ResolveQualified(cur, f.SymNs, f.SymName)
	}
	return cur.Resolve(f.SymName)
}

// tryTypeHintStrip implements spec.md §4.3.1 step 2: `(with-meta sym
// {:tag T})` reader type hints strip to the inner form; other
// with-meta shapes fall through to ordinary call analysis.
func (a *Analyzer) tryTypeHintStrip(head reader.Form, args []reader.Form) (ast.Node, bool, error) {
	if head.Kind != reader.KindSymbol || head.SymNs != "" || head.SymName != "with-meta" || len(args) != 2 {
		return nil, false, nil
	}
	meta := args[1]
	if meta.Kind != reader.KindMap || len(meta.Items) != 2 {
		return nil, false, nil
	}
	k := meta.Items[0]
	if k.Kind != reader.KindKeyword || k.KwName != "tag" || meta.Items[1].Kind != reader.KindSymbol {
		return nil, false, nil
	}
	n, err := a.Analyze(args[0])
	return n, true, err
}

// tryJavaInterop rewrites the JVM-interop syntactic sugar named in
// spec.md §4.3.1 step 6 into calls on host builtins. This Go runtime
// has no JVM classes to interoperate with; the rewrite is kept so
// macro-expanded core library code using these forms (ported from
// Clojure source) still analyzes instead of failing to resolve.
func (a *Analyzer) tryJavaInterop(head reader.Form, args []reader.Form, line, col int) (ast.Node, bool, error) {
	if head.Kind != reader.KindSymbol {
		return nil, false, nil
	}
	if head.SymNs == "" && strings.HasPrefix(head.SymName, ".") && len(head.SymName) > 1 && len(args) >= 1 {
		method := head.SymName[1:]
		return a.buildInteropCall("__java-method", append([]reader.Form{stringForm(method, line, col)}, args...), line, col)
	}
	if head.SymNs == "" && strings.HasSuffix(head.SymName, ".") && len(head.SymName) > 1 {
		class := head.SymName[:len(head.SymName)-1]
		return a.buildInteropCall("__interop-new", append([]reader.Form{stringForm(class, line, col)}, args...), line, col)
	}
	if head.SymNs == "" && head.SymName == "new" && len(args) >= 1 && args[0].Kind == reader.KindSymbol {
		class := qualifiedName(args[0])
		return a.buildInteropCall("__interop-new", append([]reader.Form{stringForm(class, line, col)}, args[1:]...), line, col)
	}
	return nil, false, nil
}

func stringForm(s string, line, col int) reader.Form {
	return reader.Form{Kind: reader.KindString, Str: s, Line: line, Column: col}
}

func (a *Analyzer) buildInteropCall(builtin string, formArgs []reader.Form, line, col int) (ast.Node, bool, error) {
	callee, err := a.resolveBuiltinRef(builtin, line, col)
	if err != nil {
		return nil, true, err
	}
	argNodes := make([]ast.Node, len(formArgs))
	for i, arg := range formArgs {
		n, err := a.Analyze(arg)
		if err != nil {
			return nil, true, err
		}
		argNodes[i] = n
	}
	return withSrc(a.arena.NewCall(ast.CallNode{Fn: callee, Args: argNodes}), a, line, col), true, nil
}

// analyzeInstanceOf rewrites `(instance? ClassName x)` to
// `(__instance? "ClassName" x)` (spec.md §4.3.2).
func analyzeInstanceOf(a *Analyzer, line, col int, args []reader.Form) (ast.Node, error) {
	if len(args) != 2 || args[0].Kind != reader.KindSymbol {
		return nil, &Error{Line: line, Column: col, Msg: "instance? requires a class symbol and a value"}
	}
	class := qualifiedName(args[0])
	node, _, err := a.buildInteropCall("__instance?", []reader.Form{stringForm(class, line, col), args[1]}, line, col)
	return node, err
}

// expandMacro implements spec.md §4.3.4.
func (a *Analyzer) expandMacro(v *ns.Var, f reader.Form) (ast.Node, error) {
	macroArgs := make([]value.Value, len(f.Items)-1)
	for i, arg := range f.Items[1:] {
		val, err := formToValue(arg)
		if err != nil {
			return nil, err
		}
		macroArgs[i] = val
	}
	a.alloc.Suppress()
	defer a.alloc.Unsuppress()

	result, err := a.caller.Call(v.Root, macroArgs)
	if err != nil {
		return nil, err
	}
	expanded := valueToForm(result, f.Line, f.Column)
	return a.Analyze(expanded)
}

// formToValue converts a reader Form into the equivalent runtime Value,
// used for `quote` and for converting macro call arguments to Values
// (spec.md §4.3.4 step 2).
func formToValue(f reader.Form) (value.Value, error) {
	switch f.Kind {
	case reader.KindNil:
		return value.Nil, nil
	case reader.KindBool:
		return value.Bool(f.Bool), nil
	case reader.KindInt:
		return value.Int(f.Int), nil
	case reader.KindFloat:
		return value.Float(f.Float), nil
	case reader.KindBigInt:
		n, ok := new(big.Int).SetString(f.BigStr, 10)
		if !ok {
			return value.Nil, &Error{Line: f.Line, Column: f.Column, Msg: fmt.Sprintf("invalid integer literal: %s", f.BigStr)}
		}
		return value.BigInt(n), nil
	case reader.KindBigDecimal:
		n, ok := new(big.Float).SetString(f.BigStr)
		if !ok {
			return value.Nil, &Error{Line: f.Line, Column: f.Column, Msg: fmt.Sprintf("invalid decimal literal: %s", f.BigStr)}
		}
		return value.BigDecimal(n), nil
	case reader.KindRatio:
		r, ok := new(big.Rat).SetString(f.RatioNum + "/" + f.RatioDen)
		if !ok {
			return value.Nil, &Error{Line: f.Line, Column: f.Column, Msg: fmt.Sprintf("invalid ratio literal: %s/%s", f.RatioNum, f.RatioDen)}
		}
		return value.Ratio(r), nil
	case reader.KindChar:
		return value.Char(f.Char), nil
	case reader.KindString:
		return value.String(f.Str), nil
	case reader.KindSymbol:
		return value.Sym(f.SymNs, f.SymName), nil
	case reader.KindKeyword:
		return value.Kw(f.KwNs, f.KwName), nil
	case reader.KindRegex:
		compiled, err := regexp.Compile(f.Str)
		if err != nil {
			return value.Nil, &Error{Line: f.Line, Column: f.Column, Msg: fmt.Sprintf("invalid regex literal: %v", err)}
		}
		return value.NewRegex(f.Str, compiled), nil
	case reader.KindList:
		items, err := formsToValues(f.Items)
		if err != nil {
			return value.Nil, err
		}
		lst := value.EmptyList().AsList()
		result := value.EmptyList()
		for i := len(items) - 1; i >= 0; i-- {
			result = value.ConsList(items[i], lst)
			lst = result.AsList()
		}
		return result, nil
	case reader.KindVector:
		items, err := formsToValues(f.Items)
		if err != nil {
			return value.Nil, err
		}
		return value.NewVector(items), nil
	case reader.KindSet:
		items, err := formsToValues(f.Items)
		if err != nil {
			return value.Nil, err
		}
		return value.NewSet(items), nil
	case reader.KindMap:
		items, err := formsToValues(f.Items)
		if err != nil {
			return value.Nil, err
		}
		entries := make([]value.MapEntry, 0, len(items)/2)
		for i := 0; i+1 < len(items); i += 2 {
			entries = append(entries, value.MapEntry{Key: items[i], Val: items[i+1]})
		}
		return value.NewMap(entries), nil
	case reader.KindTag:
		inner, err := formToValue(*f.TagInner)
		if err != nil {
			return value.Nil, err
		}
		return inner, nil
	default:
		return value.Nil, &Error{Line: f.Line, Column: f.Column, Msg: "unsupported literal form"}
	}
}

func formsToValues(forms []reader.Form) ([]value.Value, error) {
	out := make([]value.Value, len(forms))
	for i, f := range forms {
		v, err := formToValue(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// valueToForm converts a macro's returned Value back into a Form
// (spec.md §4.3.4 step 5); line inherits the original call site when
// the source Value carries no position (every non-reader-sourced Value
// reports line 0).
func valueToForm(v value.Value, line, col int) reader.Form {
	switch v.Kind() {
	case value.KindNil:
		return reader.Form{Kind: reader.KindNil, Line: line, Column: col}
	case value.KindBool:
		return reader.Form{Kind: reader.KindBool, Bool: v.AsBool(), Line: line, Column: col}
	case value.KindInt:
		return reader.Form{Kind: reader.KindInt, Int: v.AsInt(), Line: line, Column: col}
	case value.KindFloat:
		return reader.Form{Kind: reader.KindFloat, Float: v.AsFloat(), Line: line, Column: col}
	case value.KindBigInt:
		return reader.Form{Kind: reader.KindBigInt, BigStr: v.AsBigInt().String(), Line: line, Column: col}
	case value.KindBigDecimal:
		return reader.Form{Kind: reader.KindBigDecimal, BigStr: v.AsBigDecimal().String(), Line: line, Column: col}
	case value.KindRatio:
		r := v.AsRatio()
		return reader.Form{Kind: reader.KindRatio, RatioNum: r.Num().String(), RatioDen: r.Denom().String(), Line: line, Column: col}
	case value.KindChar:
		return reader.Form{Kind: reader.KindChar, Char: v.AsChar(), Line: line, Column: col}
	case value.KindString:
		return reader.Form{Kind: reader.KindString, Str: v.AsString(), Line: line, Column: col}
	case value.KindSymbol:
		sym := v.AsSymbol()
		return reader.Form{Kind: reader.KindSymbol, SymNs: sym.Ns, SymName: sym.Name, Line: line, Column: col}
	case value.KindKeyword:
		kw := v.AsKeyword()
		return reader.Form{Kind: reader.KindKeyword, KwNs: kw.Ns, KwName: kw.Name, Line: line, Column: col}
	case value.KindList:
		lst := v.AsList()
		items := make([]reader.Form, 0, lst.Count)
		cur := v
		for cur.Kind() == value.KindList && cur.AsList().Count > 0 {
			l := cur.AsList()
			items = append(items, valueToForm(l.Head, line, col))
			cur = l.Tail
		}
		return reader.Form{Kind: reader.KindList, Items: items, Line: line, Column: col}
	case value.KindVector:
		vec := v.AsVector()
		items := make([]reader.Form, vec.Len())
		for i := 0; i < vec.Len(); i++ {
			items[i] = valueToForm(vec.At(i), line, col)
		}
		return reader.Form{Kind: reader.KindVector, Items: items, Line: line, Column: col}
	case value.KindSet:
		set := v.AsSet()
		items := make([]reader.Form, set.Len())
		for i, it := range set.Items() {
			items[i] = valueToForm(it, line, col)
		}
		return reader.Form{Kind: reader.KindSet, Items: items, Line: line, Column: col}
	case value.KindMap:
		m := v.AsMap()
		items := make([]reader.Form, 0, m.Len()*2)
		for _, e := range m.Entries() {
			items = append(items, valueToForm(e.Key, line, col), valueToForm(e.Val, line, col))
		}
		return reader.Form{Kind: reader.KindMap, Items: items, Line: line, Column: col}
	default:
		return reader.Form{Kind: reader.KindNil, Line: line, Column: col}
	}
}
