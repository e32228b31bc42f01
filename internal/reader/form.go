// Package reader implements the minimal textual reader spec.md §6.1
// names as a consumed interface: it turns source text into Forms, the
// source-addressed surface values the analyzer consumes. spec.md treats
// tokenization/reader-macros/syntax-quote as an external collaborator
// specified only by the Form shape it must produce; this package is
// that collaborator, built in the teacher's own rune-scanner idiom so
// the whole repository is runnable end to end rather than stopping at
// the analyzer's doorstep.
//
// Grounded on internal/lexer.Lexer's rune-at-a-time scanner: readChar/
// peekChar over position/readPosition/line/column and BOM stripping in
// New.
package reader

// Kind discriminates the FormData variants of spec.md §6.1.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindBigInt
	KindBigDecimal
	KindRatio
	KindChar
	KindString
	KindSymbol
	KindKeyword
	KindList
	KindVector
	KindMap
	KindSet
	KindRegex
	KindTag
)

// Form is the reader's source-addressed surface value (spec.md §6.1,
// GLOSSARY "Form").
type Form struct {
	Kind   Kind
	Line   int
	Column int

	Bool  bool
	Int   int64
	Float float64

	// BigStr carries the literal digit text for big_int/big_decimal,
	// parsed lazily by the analyzer (matches spec.md's `big_int (string)`
	// FormData shape).
	BigStr string

	// RatioNum/RatioDen carry a ratio literal's numerator/denominator
	// text (spec.md `ratio (numerator_str, denominator_str)`).
	RatioNum string
	RatioDen string

	Char rune
	Str  string

	// SymNs/SymName and KwNs/KwName hold symbol/keyword namespace and
	// name parts; Ns is empty for unqualified forms.
	SymNs   string
	SymName string

	KwNs          string
	KwName        string
	KwAutoResolve bool // true for `::name` (resolves against *ns*)

	// Items backs list/vector/set (each element) and map (flat
	// key/value pairs, always even length per spec.md §6.1).
	Items []Form

	// TagName/TagInner back the `tag {tag_name, inner_form}` variant
	// produced by `#name form` dispatch macros other than the built-in
	// ones this reader already understands (e.g. `#inst`, `#uuid`, or a
	// user data-reader tag).
	TagName  string
	TagInner *Form
}
