// Package clj is the public embedding surface for this core: construct
// an Env, evaluate Clojure source against it incrementally, and read
// results back as value.Value.
//
// Grounded on the teacher's pkg/dwscript/dwscript.go embedding API
// (Program/Run), adapted one level down: this package has no FFI/JSON
// host-value bridge (nothing in this spec's scope needs host value
// marshaling), just Eval-and-get-a-Value.
package clj

import (
	"fmt"
	"strings"

	"github.com/cwbudde/go-clj/internal/analyzer"
	"github.com/cwbudde/go-clj/internal/bootstrap"
	"github.com/cwbudde/go-clj/internal/bytecode"
	"github.com/cwbudde/go-clj/internal/env"
	"github.com/cwbudde/go-clj/internal/reader"
	"github.com/cwbudde/go-clj/internal/treewalk"
	"github.com/cwbudde/go-clj/internal/value"
)

// Env is one embedded evaluation session: a bootstrapped core library,
// a persistent analyzer/namespace state, and a choice of evaluator for
// subsequently submitted source.
type Env struct {
	inner    *env.Env
	analyzer *analyzer.Analyzer
	useVM    bool
	compiler *bytecode.Compiler
}

// Option configures a new Env.
type Option func(*Env)

// WithVM selects the bytecode VM as EvalString's evaluator instead of
// the tree-walk interpreter (the default). Both share the same
// namespaces and dynamic frames regardless of which is selected.
func WithVM() Option {
	return func(e *Env) { e.useVM = true }
}

// NewEnv constructs a ready-to-use Env: a fresh env.Env plus the
// two-phase core-library bootstrap (spec.md §4.11) already run.
func NewEnv(opts ...Option) (*Env, error) {
	inner := env.New()
	if err := bootstrap.Load(inner); err != nil {
		return nil, fmt.Errorf("clj: bootstrap: %w", err)
	}
	e := &Env{
		inner:    inner,
		analyzer: analyzer.New(inner.Arena, inner.Reg, inner.Alloc, inner.Hub, "<eval>"),
		compiler: bytecode.New(inner.Reg),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EvalString evaluates src one top-level form at a time against this
// Env's persistent namespace state (spec.md §7: "partial defs completed
// up to the failure point remain bound" — a form that fails to
// read/analyze/compile/run stops the loop but does not unwind defs
// from forms that already succeeded). Returns the last form's result.
func (e *Env) EvalString(src string) (value.Value, error) {
	forms, err := reader.New(src).ReadAll()
	if err != nil {
		return value.Nil, fmt.Errorf("clj: read: %w", err)
	}

	result := value.Nil
	for i, f := range forms {
		n, err := e.analyzer.Analyze(f)
		if err != nil {
			return value.Nil, fmt.Errorf("clj: analyzing form %d: %w", i, err)
		}

		if e.useVM {
			proto, err := e.compiler.CompileTopLevel(n, "<eval>")
			if err != nil {
				return value.Nil, fmt.Errorf("clj: compiling form %d: %w", i, err)
			}
			result, err = e.inner.VM.RunTopLevel(proto)
			if err != nil {
				return value.Nil, fmt.Errorf("clj: running form %d: %w", i, err)
			}
			continue
		}

		result, err = e.inner.Tree.Eval(n, treewalk.NewEnv(nil))
		if err != nil {
			return value.Nil, fmt.Errorf("clj: evaluating form %d: %w", i, err)
		}
	}
	return result, nil
}

// CollectGC forces one mark-sweep cycle now, for hosts that want to
// collect at a controlled point (e.g. between REPL prompts) rather
// than only at the VM's internal loop-back safepoints.
func (e *Env) CollectGC() { e.inner.CollectGC() }

// Disassemble compiles src one top-level form at a time and returns
// the bytecode.Disassemble text for each resulting FnProto, joined in
// source order. It does not run anything, and it does not consult
// useVM: disassembly always goes through the compiler, regardless of
// which evaluator EvalString would pick for this Env.
func (e *Env) Disassemble(src string) (string, error) {
	forms, err := reader.New(src).ReadAll()
	if err != nil {
		return "", fmt.Errorf("clj: read: %w", err)
	}

	var sb strings.Builder
	for i, f := range forms {
		n, err := e.analyzer.Analyze(f)
		if err != nil {
			return "", fmt.Errorf("clj: analyzing form %d: %w", i, err)
		}
		proto, err := e.compiler.CompileTopLevel(n, "<disasm>")
		if err != nil {
			return "", fmt.Errorf("clj: compiling form %d: %w", i, err)
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(bytecode.Disassemble(proto))
	}
	return sb.String(), nil
}
