package analyzer

import (
	"fmt"

	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/reader"
	"github.com/cwbudde/go-clj/internal/value"
)

// gensym produces a unique synthetic local name of the form
// `__{prefix}_{n}__` (e.g. `__p_1__` for a synthetic param,
// `__loop_2__` for a loop target).
func (a *Analyzer) gensym(prefix string) string {
	a.tempCounter++
	return fmt.Sprintf("__%s_%d__", prefix, a.tempCounter)
}

func (a *Analyzer) constNode(v value.Value, line, col int) ast.Node {
	return withSrc(a.arena.NewConstant(ast.ConstantNode{Value: v}), a, line, col)
}

func (a *Analyzer) localRefNode(name string, slot, line, col int) ast.Node {
	return withSrc(a.arena.NewLocalRef(ast.LocalRefNode{Name: name, Slot: slot}), a, line, col)
}

// callBuiltin builds a call_node to a named core builtin with the given
// already-analyzed argument Nodes, used throughout destructuring
// expansion (`nth`, `first`, `next`, `seq`, `get`, `__seq-to-map`).
func (a *Analyzer) callBuiltin(name string, line, col int, args ...ast.Node) (ast.Node, error) {
	callee, err := a.resolveBuiltinRef(name, line, col)
	if err != nil {
		return nil, err
	}
	return withSrc(a.arena.NewCall(ast.CallNode{Fn: callee, Args: args}), a, line, col), nil
}

// expandBindingPattern expands one binding pattern (spec.md §4.3.3),
// binding fresh locals as it goes and returning the flat list of simple
// `name = init` Bindings the caller (let/loop/fn) appends in order.
func (a *Analyzer) expandBindingPattern(pattern reader.Form, init ast.Node, line, col int) ([]ast.Binding, error) {
	switch pattern.Kind {
	case reader.KindSymbol:
		name := pattern.SymName
		slot := a.bindLocal(name)
		return []ast.Binding{{Name: name, Slot: slot, Init: init}}, nil
	case reader.KindVector:
		return a.expandVectorPattern(pattern, init, line, col)
	case reader.KindMap:
		return a.expandMapPattern(pattern, init, line, col)
	default:
		return nil, &Error{Line: pattern.Line, Column: pattern.Column, Msg: "unsupported destructuring pattern"}
	}
}

func (a *Analyzer) expandVectorPattern(pattern reader.Form, init ast.Node, line, col int) ([]ast.Binding, error) {
	tName := a.gensym("vec")
	tSlot := a.bindLocal(tName)
	out := []ast.Binding{{Name: tName, Slot: tSlot, Init: init}}

	items := pattern.Items
	ampIdx := -1
	asIdx := -1
	for i, it := range items {
		if it.Kind == reader.KindSymbol && it.SymName == "&" {
			ampIdx = i
		}
		if it.Kind == reader.KindKeyword && it.KwName == "as" {
			asIdx = i
		}
	}
	positional := items
	if ampIdx >= 0 {
		positional = items[:ampIdx]
	} else if asIdx >= 0 {
		positional = items[:asIdx]
	}

	if ampIdx < 0 {
		for i, elem := range positional {
			if elem.Kind == reader.KindKeyword {
				continue
			}
			idxConst := a.constNode(value.Int(int64(i)), line, col)
			nilConst := a.constNode(value.Nil, line, col)
			nthCall, err := a.callBuiltin("nth", line, col, a.localRefNode(tName, tSlot, line, col), idxConst, nilConst)
			if err != nil {
				return nil, err
			}
			sub, err := a.expandBindingPattern(elem, nthCall, line, col)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	} else {
		sName := a.gensym("seq")
		sSlot := a.bindLocal(sName)
		seqCall, err := a.callBuiltin("seq", line, col, a.localRefNode(tName, tSlot, line, col))
		if err != nil {
			return nil, err
		}
		out = append(out, ast.Binding{Name: sName, Slot: sSlot, Init: seqCall})

		for _, elem := range positional {
			firstCall, err := a.callBuiltin("first", line, col, a.localRefNode(sName, sSlot, line, col))
			if err != nil {
				return nil, err
			}
			sub, err := a.expandBindingPattern(elem, firstCall, line, col)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)

			nextCall, err := a.callBuiltin("next", line, col, a.localRefNode(sName, sSlot, line, col))
			if err != nil {
				return nil, err
			}
			sSlot = a.bindLocal(sName)
			out = append(out, ast.Binding{Name: sName, Slot: sSlot, Init: nextCall})
		}

		restPattern := items[ampIdx+1]
		sub, err := a.expandBindingPattern(restPattern, a.localRefNode(sName, sSlot, line, col), line, col)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}

	if asIdx >= 0 && asIdx+1 < len(items) {
		asName := items[asIdx+1].SymName
		asSlot := a.bindLocal(asName)
		out = append(out, ast.Binding{Name: asName, Slot: asSlot, Init: a.localRefNode(tName, tSlot, line, col)})
	}
	return out, nil
}

func (a *Analyzer) expandMapPattern(pattern reader.Form, init ast.Node, line, col int) ([]ast.Binding, error) {
	mName := a.gensym("map")
	mSlot := a.bindLocal(mName)
	seqToMapCall, err := a.callBuiltin("__seq-to-map", line, col, init)
	if err != nil {
		return nil, err
	}
	out := []ast.Binding{{Name: mName, Slot: mSlot, Init: seqToMapCall}}

	var orDefaults map[string]reader.Form
	var asName string
	entries := make([]struct {
		bindName string
		keyForm  reader.Form
		nested   *reader.Form
	}, 0, len(pattern.Items)/2)

	for i := 0; i+1 < len(pattern.Items); i += 2 {
		k := pattern.Items[i]
		v := pattern.Items[i+1]
		switch {
		case k.Kind == reader.KindKeyword && k.KwName == "as":
			asName = v.SymName
		case k.Kind == reader.KindKeyword && k.KwName == "or":
			orDefaults = map[string]reader.Form{}
			for j := 0; j+1 < len(v.Items); j += 2 {
				orDefaults[v.Items[j].SymName] = v.Items[j+1]
			}
		case k.Kind == reader.KindKeyword && k.KwName == "keys":
			for _, sym := range v.Items {
				entries = append(entries, struct {
					bindName string
					keyForm  reader.Form
					nested   *reader.Form
				}{sym.SymName, reader.Form{Kind: reader.KindKeyword, KwName: sym.SymName}, nil})
			}
		case k.Kind == reader.KindKeyword && k.KwName == "strs":
			for _, sym := range v.Items {
				entries = append(entries, struct {
					bindName string
					keyForm  reader.Form
					nested   *reader.Form
				}{sym.SymName, reader.Form{Kind: reader.KindString, Str: sym.SymName}, nil})
			}
		case k.Kind == reader.KindKeyword && k.KwName == "syms":
			for _, sym := range v.Items {
				entries = append(entries, struct {
					bindName string
					keyForm  reader.Form
					nested   *reader.Form
				}{sym.SymName, reader.Form{Kind: reader.KindSymbol, SymName: sym.SymName}, nil})
			}
		case k.Kind == reader.KindSymbol:
			// {sym :k} or nested {sym pattern-key}
			vv := v
			entries = append(entries, struct {
				bindName string
				keyForm  reader.Form
				nested   *reader.Form
			}{k.SymName, vv, nil})
		default:
			// {pattern :k} nested destructuring target
			kk := k
			entries = append(entries, struct {
				bindName string
				keyForm  reader.Form
				nested   *reader.Form
			}{"", v, &kk})
		}
	}

	for _, e := range entries {
		keyVal, err := formToValue(e.keyForm)
		if err != nil {
			return nil, err
		}
		var getArgs []ast.Node
		keyConst := a.constNode(keyVal, line, col)
		if def, ok := orDefaults[e.bindName]; ok {
			defVal, err := formToValue(def)
			if err != nil {
				return nil, err
			}
			getArgs = []ast.Node{a.localRefNode(mName, mSlot, line, col), keyConst, a.constNode(defVal, line, col)}
		} else {
			getArgs = []ast.Node{a.localRefNode(mName, mSlot, line, col), keyConst}
		}
		getCall, err := a.callBuiltin("get", line, col, getArgs...)
		if err != nil {
			return nil, err
		}
		if e.nested != nil {
			sub, err := a.expandBindingPattern(*e.nested, getCall, line, col)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		} else {
			slot := a.bindLocal(e.bindName)
			out = append(out, ast.Binding{Name: e.bindName, Slot: slot, Init: getCall})
		}
	}

	if asName != "" {
		asSlot := a.bindLocal(asName)
		out = append(out, ast.Binding{Name: asName, Slot: asSlot, Init: a.localRefNode(mName, mSlot, line, col)})
	}
	return out, nil
}
