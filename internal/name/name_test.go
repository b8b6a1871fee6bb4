package name

import "testing"

func TestNameClassification(t *testing.T) {
	simple := Simple("hello.c")
	if !simple.IsSimple() || simple.IsTyped() || simple.IsQualified() {
		t.Fatalf("expected simple name, got %+v", simple)
	}

	typed := Typed("obj", "hello")
	if !typed.IsTyped() || typed.IsQualified() {
		t.Fatalf("expected typed, unqualified name, got %+v", typed)
	}

	proj := ProjectName("libfoo")
	qualified := typed.Qualify(proj)
	if !qualified.IsQualified() || qualified.ProjectOrEmpty() != proj {
		t.Fatalf("expected qualified name, got %+v", qualified)
	}

	dir := Name{Dir: NewDirPath("src/foo")}
	if !dir.IsDirectory() {
		t.Fatalf("expected directory name, got %+v", dir)
	}
}

func TestNameRoundTripString(t *testing.T) {
	proj := ProjectName("libfoo")
	n := Name{Project: &proj, Type: "obj", Dir: NewDirPath("sub"), Value: "hello"}
	s := n.String()
	if s == "" {
		t.Fatal("expected non-empty rendering")
	}
}

func TestCross(t *testing.T) {
	base := Simple("a")
	got := Cross(base, [][]string{{"b", "c"}, {"d", "e"}})
	want := []string{"a/b/d", "a/b/e", "a/c/d", "a/c/e"}
	if len(got) != len(want) {
		t.Fatalf("got %d names, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Value != w {
			t.Errorf("index %d: got %q want %q", i, got[i].Value, w)
		}
	}
}

func TestPairPartner(t *testing.T) {
	names := []Name{{Value: "a", Pair: '@'}, {Value: "b"}, {Value: "c"}}
	first, second, rest, ok := PairPartner(names)
	if !ok || first.Value != "a" || second.Value != "b" || len(rest) != 1 {
		t.Fatalf("unexpected pair split: %+v %+v %+v %v", first, second, rest, ok)
	}
}

func TestWildcardMatcher(t *testing.T) {
	m := NewWildcardMatcher("*.c")
	if !m.Match("hello.c") {
		t.Error("expected match")
	}
	if m.Match("sub/hello.c") {
		t.Error("single star should not cross separators")
	}
	rec := NewWildcardMatcher("**/*.c")
	if !rec.MatchPath("sub/dir/hello.c") {
		t.Error("expected recursive match")
	}
}
