package errs

import (
	"strings"
	"testing"
)

func TestCatchable(t *testing.T) {
	if KindOutOfMemory.Catchable() {
		t.Error("out_of_memory must not be catchable")
	}
	if KindInternal.Catchable() {
		t.Error("internal_error must not be catchable")
	}
	if !KindNameErrorCatchable() {
		t.Error("name_error must be catchable")
	}
}

func KindNameErrorCatchable() bool { return KindName.Catchable() }

func TestFormatContainsFields(t *testing.T) {
	r := New(PhaseAnalysis, KindName, Location{File: "repl", Line: 3, Column: 1}, "Unable to resolve symbol: %s", "foo")
	out := r.Format(false)
	want := []string{"analysis", "name_error", "Unable to resolve symbol: foo", "repl:3:1"}
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("Format() missing %q in:\n%s", w, out)
		}
	}
}
