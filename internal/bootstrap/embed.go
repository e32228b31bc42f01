package bootstrap

import _ "embed"

// coreSource is the embedded core library text (spec.md §6.2: "a
// textual Clojure source file embedded as a binary blob; loaded by the
// bootstrap loader once per Env"). The teacher has no prelude asset to
// embed (DWScript ships no bundled standard-library source); this uses
// stdlib `embed` directly, the standard idiomatic choice for bundling a
// text asset into the binary, rather than reaching for a dependency
// that does the same thing.
//
//go:embed core.clj
var coreSource string
