package reader

import "testing"

func TestReadAtomsAndDelimiters(t *testing.T) {
	forms, err := New("nil true false 42 3.14 1/3").ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(forms) != 6 {
		t.Fatalf("expected 6 forms, got %d", len(forms))
	}
	if forms[0].Kind != KindNil {
		t.Error("expected nil")
	}
	if forms[1].Kind != KindBool || !forms[1].Bool {
		t.Error("expected true")
	}
	if forms[3].Kind != KindInt || forms[3].Int != 42 {
		t.Error("expected int 42")
	}
	if forms[4].Kind != KindFloat || forms[4].Float != 3.14 {
		t.Error("expected float 3.14")
	}
	if forms[5].Kind != KindRatio || forms[5].RatioNum != "1" || forms[5].RatioDen != "3" {
		t.Errorf("expected ratio 1/3, got %+v", forms[5])
	}
}

func TestReadListVectorMapSet(t *testing.T) {
	forms, err := New(`(+ 1 2) [1 2 3] {:a 1 :b 2} #{1 2}`).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if forms[0].Kind != KindList || len(forms[0].Items) != 3 {
		t.Fatalf("expected list of 3, got %+v", forms[0])
	}
	if forms[1].Kind != KindVector || len(forms[1].Items) != 3 {
		t.Fatal("expected vector of 3")
	}
	if forms[2].Kind != KindMap || len(forms[2].Items) != 4 {
		t.Fatal("expected map with 4 flat entries")
	}
	if forms[3].Kind != KindSet || len(forms[3].Items) != 2 {
		t.Fatal("expected set of 2")
	}
}

func TestMapWithOddFormsIsReaderError(t *testing.T) {
	_, err := New(`{:a 1 :b}`).ReadAll()
	if err == nil {
		t.Fatal("expected an error for an odd-length map literal")
	}
}

func TestDuplicateMapKeyIsReaderError(t *testing.T) {
	_, err := New(`{:a 1 :a 2}`).ReadAll()
	if err == nil {
		t.Fatal("expected an error for a duplicate map key")
	}
}

func TestQuoteAndSyntaxQuoteExpandToLists(t *testing.T) {
	forms, err := New("'x `y ~z ~@w").ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if forms[0].Kind != KindList || forms[0].Items[0].SymName != "quote" {
		t.Errorf("expected (quote x), got %+v", forms[0])
	}
	if forms[1].Items[0].SymName != "syntax-quote" {
		t.Error("expected syntax-quote wrapper")
	}
	if forms[2].Items[0].SymName != "unquote" {
		t.Error("expected unquote wrapper")
	}
	if forms[3].Items[0].SymName != "unquote-splicing" {
		t.Error("expected unquote-splicing wrapper")
	}
}

func TestKeywordsQualifiedAndAutoResolve(t *testing.T) {
	forms, err := New(`:foo :ns/bar ::baz`).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if forms[0].KwName != "foo" || forms[0].KwNs != "" {
		t.Error("expected unqualified foo")
	}
	if forms[1].KwNs != "ns" || forms[1].KwName != "bar" {
		t.Error("expected qualified ns/bar")
	}
	if !forms[2].KwAutoResolve || forms[2].KwName != "baz" {
		t.Error("expected auto-resolve ::baz")
	}
}

func TestStringEscapesAndCharLiterals(t *testing.T) {
	forms, err := New(`"a\nb" \a \newline \space`).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if forms[0].Str != "a\nb" {
		t.Errorf("expected a\\nb, got %q", forms[0].Str)
	}
	if forms[1].Char != 'a' {
		t.Error("expected char a")
	}
	if forms[2].Char != '\n' {
		t.Error("expected \\newline to be '\\n'")
	}
	if forms[3].Char != ' ' {
		t.Error("expected \\space to be ' '")
	}
}

func TestCommentsAndDiscardAreSkipped(t *testing.T) {
	forms, err := New("1 ; a comment\n#_2 3").ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(forms) != 2 {
		t.Fatalf("expected comment and #_2 skipped, leaving 2 forms, got %d", len(forms))
	}
	if forms[0].Int != 1 || forms[1].Int != 3 {
		t.Errorf("expected [1 3], got %+v", forms)
	}
}

func TestAnonFnLiteralDesugarsToFnStar(t *testing.T) {
	forms, err := New(`#(+ % %2 %&)`).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	f := forms[0]
	if f.Kind != KindList || f.Items[0].SymName != "fn*" {
		t.Fatalf("expected (fn* ...), got %+v", f)
	}
	params := f.Items[1]
	if params.Kind != KindVector {
		t.Fatal("expected a param vector")
	}
	var names []string
	for _, p := range params.Items {
		names = append(names, p.SymName)
	}
	want := []string{"%1", "%2", "&", "%&"}
	if len(names) != len(want) {
		t.Fatalf("expected params %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected params %v, got %v", want, names)
		}
	}
}

func TestBigIntAndBigDecimalSuffixes(t *testing.T) {
	forms, err := New("10000000000000000000N 1.5M").ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if forms[0].Kind != KindBigInt || forms[0].BigStr != "10000000000000000000" {
		t.Errorf("expected bigint literal, got %+v", forms[0])
	}
	if forms[1].Kind != KindBigDecimal || forms[1].BigStr != "1.5" {
		t.Errorf("expected bigdecimal literal, got %+v", forms[1])
	}
}
