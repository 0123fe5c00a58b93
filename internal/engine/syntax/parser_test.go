package syntax

import (
	"awkref/internal/core/errors"
	"testing"
)

func identNames(f *File) []string {
	var names []string
	for _, id := range f.Identifiers() {
		names = append(names, id.Name)
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParse_FunctionAndBegin(t *testing.T) {
	src := `function f(x) { return x } BEGIN { x = 1; print x }`
	f := Parse("a.awk", src)
	if len(f.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", f.Errors)
	}
	if len(f.Root.Children) != 2 {
		t.Fatalf("expected 2 items, got %d", len(f.Root.Children))
	}

	fn := f.Root.Children[0]
	if !fn.IsFunctionDefinition() {
		t.Fatal("expected first item to be a function definition")
	}
	if got := fn.FunctionName().Name; got != "f" {
		t.Errorf("expected function name f, got %s", got)
	}
	params := fn.Params()
	if len(params) != 1 || params[0].Name != "x" {
		t.Fatalf("expected params [x], got %v", params)
	}

	begin := f.Root.Children[1]
	if begin.IsFunctionDefinition() {
		t.Error("BEGIN item must not be a function definition")
	}
	pattern := begin.ChildOfKind(KindPattern)
	if pattern == nil || pattern.FirstChild().Kind != KindBeginEnd || pattern.FirstChild().Name != "BEGIN" {
		t.Fatalf("expected BEGIN pattern, got %v", pattern)
	}

	if names := identNames(f); !equalStrings(names, []string{"x", "x", "x", "x"}) {
		t.Errorf("unexpected identifiers %v", names)
	}
	ids := f.Identifiers()
	for i := 1; i < len(ids); i++ {
		if ids[i-1].Span.Start >= ids[i].Span.Start {
			t.Fatalf("identifiers not in offset order at %d", i)
		}
	}
	if ids[0].Parent.Kind != KindParamList {
		t.Errorf("expected first x under param list, got %s", ids[0].Parent.Kind)
	}
	assign := ids[2].Parent
	if assign.Kind != KindAssignment || assign.Op != "=" || assign.Parent.Kind != KindSimpleStatement {
		t.Errorf("expected x = 1 as simple assignment, got %s under %s", assign, assign.Parent)
	}
}

func TestParse_SplitIdiomShape(t *testing.T) {
	src := `BEGIN { split("", seen); seen["k"]=1 }`
	f := Parse("b.awk", src)
	if len(f.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", f.Errors)
	}
	ids := f.Identifiers()
	if len(ids) != 2 {
		t.Fatalf("expected 2 identifiers, got %d", len(ids))
	}

	args := ids[0].Parent
	if args.Kind != KindArgList || args.Parent.Kind != KindCall {
		t.Fatalf("expected split argument, got %s under %s", args, args.Parent)
	}
	call := args.Parent
	if call.ChildOfKind(KindBuiltinName).Name != "split" {
		t.Errorf("expected builtin split, got %s", call.ChildOfKind(KindBuiltinName).Name)
	}
	if got := call.Text(); got != `split("", seen)` {
		t.Errorf("unexpected call text %q", got)
	}

	idx := ids[1].Parent
	if idx.Kind != KindIndex || idx.FirstChild() != ids[1] {
		t.Fatalf("expected index base, got %s", idx)
	}
	if idx.Parent.Kind != KindAssignment || idx.Parent.Parent.Kind != KindSimpleStatement {
		t.Errorf("expected indexed assignment statement, got %s", idx.Parent)
	}
	if got := idx.Text(); got != `seen["k"]` {
		t.Errorf("unexpected index text %q", got)
	}
}

func TestParse_RegexAndDivision(t *testing.T) {
	src := `{ a = b / c / d; if ($0 ~ /x\/y/) n++ }`
	f := Parse("c.awk", src)
	if len(f.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", f.Errors)
	}
	if names := identNames(f); !equalStrings(names, []string{"a", "b", "c", "d", "n"}) {
		t.Errorf("unexpected identifiers %v", names)
	}
	re := Find(f.Root, func(n *Node) bool { return n.Kind == KindLiteral && n.Op == "regex" })
	if re == nil || re.Name != `/x\/y/` {
		t.Errorf("expected regex literal, got %v", re)
	}
	inc := Find(f.Root, func(n *Node) bool { return n.Kind == KindIncDec })
	if inc == nil || inc.Name != "post" || inc.Op != "++" {
		t.Errorf("expected post increment, got %v", inc)
	}
}

func TestParse_GetlineAndRedirects(t *testing.T) {
	src := `{ while (("cmd" | getline line) > 0) print line > "out"; close("cmd") }`
	f := Parse("d.awk", src)
	if len(f.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", f.Errors)
	}
	if names := identNames(f); !equalStrings(names, []string{"line", "line"}) {
		t.Errorf("unexpected identifiers %v", names)
	}
	g := Find(f.Root, func(n *Node) bool { return n.Kind == KindGetline })
	if g == nil || g.Op != "|" {
		t.Fatalf("expected piped getline, got %v", g)
	}
	if g.Children[1].Kind != KindIdentifier || g.Children[1].Name != "line" {
		t.Errorf("expected getline target line, got %v", g.Children[1])
	}
}

func TestParse_ForInAndDelete(t *testing.T) {
	src := "END {\n\tfor (k in seen)\n\t\tdelete seen[k]\n}\n"
	f := Parse("e.awk", src)
	if len(f.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", f.Errors)
	}
	if names := identNames(f); !equalStrings(names, []string{"k", "seen", "seen", "k"}) {
		t.Errorf("unexpected identifiers %v", names)
	}
	loop := Find(f.Root, func(n *Node) bool { return n.Kind == KindStatement && n.Name == "for_in" })
	if loop == nil {
		t.Fatal("expected for-in statement")
	}
}

func TestParse_IfElseAcrossNewlines(t *testing.T) {
	src := `function max(a, b) {
	if (a > b)
		return a
	else
		return b
}
`
	f := Parse("f.awk", src)
	if len(f.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", f.Errors)
	}
	fn := f.Root.FirstChild()
	if fn.FunctionName().Name != "max" {
		t.Fatalf("expected function max, got %v", fn.FunctionName())
	}
	if params := fn.Params(); len(params) != 2 || params[1].Name != "b" {
		t.Fatalf("unexpected params %v", params)
	}
	ifStmt := Find(fn, func(n *Node) bool { return n.Kind == KindStatement && n.Name == "if" })
	if ifStmt == nil || len(ifStmt.Children) != 3 {
		t.Fatalf("expected if with condition and two branches, got %v", ifStmt)
	}
}

func TestParse_ErrorRecovery(t *testing.T) {
	src := "BEGIN { x = ; y = 2 }\nfunction (a) { }\n{ print z"
	f := Parse("g.awk", src)
	if len(f.Errors) == 0 {
		t.Fatal("expected syntax errors")
	}
	names := identNames(f)
	want := map[string]bool{"x": false, "y": false, "z": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("expected identifier %s to survive recovery, got %v", name, names)
		}
	}
}

func TestParse_MalformedInputsDoNotPanic(t *testing.T) {
	inputs := []string{
		"", "{", "}", "function", "function f(", "x[", "print >", "a ? b",
		"getline <", "$", "((((", "BEGIN { if ( }", "/unterminated", "\"open",
		"{ ) }", "{ else }", "{ in }", "{ x = y z = 1 }", "do", "for (", "& &",
		"BEGIN { for (k in) }", "func f(a,,b) {}", "\\\n", "{ a[1,2 }",
	}
	for _, in := range inputs {
		f := Parse("bad.awk", in)
		if f.Root == nil {
			t.Errorf("nil root for %q", in)
		}
		Walk(f.Root, func(n *Node) bool {
			if n != f.Root && n.Parent == nil {
				t.Errorf("detached node %s in %q", n, in)
			}
			return true
		})
	}
}

func TestFile_NodeAt(t *testing.T) {
	src := "BEGIN {\n  total = 1\n}\n"
	f := Parse("h.awk", src)

	tests := []struct {
		line, col int
		want      string
	}{
		{2, 3, "total"},
		{2, 5, "total"},
		{2, 8, "total"},
		{2, 1, ""},
		{1, 1, ""},
		{9, 1, ""},
	}
	for _, tt := range tests {
		n := f.NodeAt(tt.line, tt.col)
		got := ""
		if n != nil {
			got = n.Name
		}
		if got != tt.want {
			t.Errorf("NodeAt(%d,%d) = %q, want %q", tt.line, tt.col, got, tt.want)
		}
	}

	id := f.NodeAt(2, 3)
	if id.Pos != (Position{Line: 2, Column: 3}) {
		t.Errorf("unexpected position %+v", id.Pos)
	}
	if f.IdentifierAt(id.Span.Start) != id {
		t.Error("IdentifierAt did not return the identifier starting at its offset")
	}
	if id.File() != f {
		t.Error("identifier not attached to its file")
	}
}

func TestNode_AncestorsStopsEarly(t *testing.T) {
	f := Parse("i.awk", `function g(p) { q = p }`)
	var p *Node
	for _, id := range f.Identifiers() {
		if id.Name == "p" && id.Parent.Kind == KindAssignment {
			p = id
		}
	}
	if p == nil {
		t.Fatal("use of p not found")
	}
	var kinds []Kind
	p.Ancestors(func(n *Node) bool {
		kinds = append(kinds, n.Kind)
		return !n.IsFunctionDefinition()
	})
	if kinds[len(kinds)-1] != KindItem {
		t.Errorf("expected walk to stop at the function item, got %v", kinds)
	}
	for _, k := range kinds {
		if k == KindFile {
			t.Error("walk went past the function item")
		}
	}
}

func TestRenameIdentifier(t *testing.T) {
	src := "BEGIN {\n  total = 1\n}\n"
	f := Parse("h.awk", src)
	id := f.NodeAt(2, 3)

	edit, err := RenameIdentifier(id, "sum")
	if err != nil {
		t.Fatal(err)
	}
	if edit.Path != "h.awk" || edit.OldText != "total" {
		t.Errorf("unexpected edit %+v", edit)
	}
	out, err := ApplyEdits(src, []TextEdit{edit})
	if err != nil {
		t.Fatal(err)
	}
	if out != "BEGIN {\n  sum = 1\n}\n" {
		t.Errorf("unexpected result %q", out)
	}

	for _, bad := range []string{"", "1abc", "print", "split", "a-b"} {
		_, err := RenameIdentifier(id, bad)
		if !errors.IsCode(err, errors.CodeValidationError) {
			t.Errorf("expected validation error for %q, got %v", bad, err)
		}
	}
}

func TestApplyEdits_RejectsOverlap(t *testing.T) {
	src := "abcdef"
	_, err := ApplyEdits(src, []TextEdit{
		{Start: 0, End: 3, NewText: "x"},
		{Start: 2, End: 4, NewText: "y"},
	})
	if !errors.IsCode(err, errors.CodeConflict) {
		t.Errorf("expected conflict, got %v", err)
	}

	out, err := ApplyEdits(src, []TextEdit{
		{Start: 4, End: 6, NewText: "Z"},
		{Start: 0, End: 1, NewText: "A"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != "AbcdZ" {
		t.Errorf("unexpected result %q", out)
	}
}
