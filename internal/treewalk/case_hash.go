package treewalk

import (
	"hash/fnv"

	"github.com/cwbudde/go-clj/internal/ast"
	"github.com/cwbudde/go-clj/internal/value"
)

// caseHash reproduces the bucket hash a `case` macro-expansion computed
// when it built a CaseStarNode's literal Clauses keys, so Shift/Mask
// pick out the same bucket at runtime. CaseTestInt clauses dispatch on
// the raw integer value directly (no hashing); CaseTestHashEquiv and
// CaseTestHashIdentity hash the stable textual key value.HashKey
// already uses for map/set membership, since this core makes no
// distinction between a value's equality hash and its identity hash
// for non-reference types.
func caseHash(v value.Value, testType ast.CaseTestType) int64 {
	if testType == ast.CaseTestInt {
		return v.AsInt()
	}
	h := fnv.New32a()
	h.Write([]byte(value.HashKey(v)))
	return int64(h.Sum32())
}
