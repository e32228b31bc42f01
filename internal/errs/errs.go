// Package errs implements the structured error report of spec.md §6.4/§6.5:
// a {phase, kind, message, location} record, rendered either for
// terminal display or forwarded to a host as structured data.
//
// Grounded on the teacher's internal/errors.CompilerError, which formats
// a position-carrying error with a source-line excerpt and a caret
// pointer (optionally ANSI-colored); Format/FormatWithContext below keep
// that rendering, generalized from DWScript's single error shape to this
// spec's Phase × Kind taxonomy.
package errs

import (
	"fmt"
	"strings"
)

// Phase identifies when a failure occurred.
type Phase string

const (
	PhaseParse       Phase = "parse"
	PhaseAnalysis    Phase = "analysis"
	PhaseMacroexpand Phase = "macroexpand"
	PhaseEval        Phase = "eval"
)

// Kind identifies the defect.
type Kind string

const (
	KindSyntax      Kind = "syntax_error"
	KindNumber      Kind = "number_error"
	KindStringErr   Kind = "string_error"
	KindName        Kind = "name_error"
	KindArity       Kind = "arity_error"
	KindValue       Kind = "value_error"
	KindType        Kind = "type_error"
	KindArithmetic  Kind = "arithmetic_error"
	KindIndex       Kind = "index_error"
	KindIO          Kind = "io_error"
	KindInternal    Kind = "internal_error"
	KindOutOfMemory Kind = "out_of_memory"
)

// Catchable reports whether a runtime error of this kind may be caught
// by `try`/`catch` (spec.md §7): out_of_memory and internal_error are
// never catchable; everything else arising at eval time is.
func (k Kind) Catchable() bool {
	return k != KindOutOfMemory && k != KindInternal
}

// Location pinpoints a position within source text.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File != "" {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Report is the structured diagnostic record of spec.md §6.4.
type Report struct {
	Phase    Phase
	Kind     Kind
	Message  string
	Location Location
	Source   string // full source text, for caret rendering; may be empty
}

// New constructs a Report.
func New(phase Phase, kind Kind, location Location, format string, args ...any) *Report {
	return &Report{Phase: phase, Kind: kind, Location: location, Message: fmt.Sprintf(format, args...)}
}

// WithSource attaches the originating source text (for caret rendering)
// and returns the report for chaining.
func (r *Report) WithSource(src string) *Report {
	r.Source = src
	return r
}

// Error implements the error interface.
func (r *Report) Error() string { return r.Format(false) }

// Format renders the reference textual form from spec.md §6.4:
//
//	----- Error -------------------------------------------
//	Phase:    analysis
//	Kind:     name_error
//	Message:  Unable to resolve symbol: foo
//	Location: repl:3:1
//
// If color is true, the caret line (when source is attached) is
// highlighted with ANSI escapes, matching the teacher's optional
// terminal coloring.
func (r *Report) Format(color bool) string {
	var sb strings.Builder
	sb.WriteString("----- Error -------------------------------------------\n")
	fmt.Fprintf(&sb, "Phase:    %s\n", r.Phase)
	fmt.Fprintf(&sb, "Kind:     %s\n", r.Kind)
	fmt.Fprintf(&sb, "Message:  %s\n", r.Message)
	fmt.Fprintf(&sb, "Location: %s\n", r.Location)
	if line := r.sourceLine(r.Location.Line); line != "" {
		lineNumStr := fmt.Sprintf("%4d | ", r.Location.Line)
		sb.WriteString(lineNumStr)
		sb.WriteString(line)
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat(" ", len(lineNumStr)+max(0, r.Location.Column-1)))
		if color {
			sb.WriteString("\033[1;31m")
		}
		sb.WriteString("^")
		if color {
			sb.WriteString("\033[0m")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatWithContext is Format plus contextLines of surrounding source on
// each side, for richer REPL diagnostics.
func (r *Report) FormatWithContext(contextLines int, color bool) string {
	if r.Source == "" {
		return r.Format(color)
	}
	lines := strings.Split(r.Source, "\n")
	start := max(1, r.Location.Line-contextLines)
	end := min(len(lines), r.Location.Line+contextLines)

	var sb strings.Builder
	sb.WriteString("----- Error -------------------------------------------\n")
	fmt.Fprintf(&sb, "Phase:    %s\n", r.Phase)
	fmt.Fprintf(&sb, "Kind:     %s\n", r.Kind)
	fmt.Fprintf(&sb, "Location: %s\n", r.Location)
	for ln := start; ln <= end; ln++ {
		lineNumStr := fmt.Sprintf("%4d | ", ln)
		sb.WriteString(lineNumStr)
		sb.WriteString(lines[ln-1])
		sb.WriteString("\n")
		if ln == r.Location.Line {
			sb.WriteString(strings.Repeat(" ", len(lineNumStr)+max(0, r.Location.Column-1)))
			sb.WriteString("^\n")
		}
	}
	fmt.Fprintf(&sb, "Message:  %s\n", r.Message)
	return sb.String()
}

func (r *Report) sourceLine(lineNum int) string {
	if r.Source == "" || lineNum < 1 {
		return ""
	}
	lines := strings.Split(r.Source, "\n")
	if lineNum > len(lines) {
		return ""
	}
	return lines[lineNum-1]
}
