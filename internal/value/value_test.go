package value

import (
	"testing"

	"github.com/b2go/b2go/internal/name"
)

func TestUint64AssignAppend(t *testing.T) {
	r := NewRegistry()
	u64, _ := r.Lookup("uint64")

	v := NewNames([]name.Name{name.Simple("41")})
	if err := v.Typify(u64, nil); err != nil {
		t.Fatal(err)
	}
	if v.Data.(uint64) != 41 {
		t.Fatalf("got %v", v.Data)
	}
	if err := v.Append(u64, []name.Name{name.Simple("1")}, nil); err != nil {
		t.Fatal(err)
	}
	if v.Data.(uint64) != 42 {
		t.Fatalf("got %v, want 42", v.Data)
	}
}

func TestReverseRoundTrip(t *testing.T) {
	r := NewRegistry()
	str, _ := r.Lookup("string")

	v := &Value{}
	if err := v.Assign(str, []name.Name{name.Simple("hello")}, nil); err != nil {
		t.Fatal(err)
	}
	ns := v.Reverse()

	v2 := &Value{}
	if err := v2.Assign(str, ns, nil); err != nil {
		t.Fatal(err)
	}
	if Compare(v, v2) != 0 {
		t.Fatalf("round trip mismatch: %v vs %v", v.Data, v2.Data)
	}
}

func TestVectorAppendPrepend(t *testing.T) {
	r := NewRegistry()
	str, _ := r.Lookup("string")
	vec := r.Vector(str)

	v := &Value{}
	if err := v.Assign(vec, []name.Name{name.Simple("b")}, nil); err != nil {
		t.Fatal(err)
	}
	if err := v.Append(vec, []name.Name{name.Simple("c")}, nil); err != nil {
		t.Fatal(err)
	}
	if err := v.Prepend(vec, []name.Name{name.Simple("a")}, nil); err != nil {
		t.Fatal(err)
	}
	got := v.Reverse()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %d elements, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Value != w {
			t.Errorf("index %d: got %q want %q", i, got[i].Value, w)
		}
	}
}

func TestUntypedNullAppendAdoptsType(t *testing.T) {
	r := NewRegistry()
	str, _ := r.Lookup("string")

	v := NewNull()
	if !v.Null || !v.IsUntyped() {
		t.Fatal("expected untyped null value")
	}
	if err := v.Append(str, []name.Name{name.Simple("x")}, nil); err != nil {
		t.Fatal(err)
	}
	if v.Type != str || v.Null {
		t.Fatalf("expected value to adopt string type and clear null, got %+v", v)
	}
}

func TestMapPairEntries(t *testing.T) {
	r := NewRegistry()
	str, _ := r.Lookup("string")
	m := r.Map(str, str)

	k1 := name.Simple("a")
	k1.Pair = '@'
	names := []name.Name{k1, name.Simple("1")}

	v := &Value{}
	if err := v.Assign(m, names, nil); err != nil {
		t.Fatal(err)
	}
	md := v.Data.(*mapData)
	if len(md.entries) != 1 || md.entries["a"].Data.(string) != "1" {
		t.Fatalf("unexpected map contents: %+v", md.entries)
	}
}

func TestAssignTypeConflict(t *testing.T) {
	r := NewRegistry()
	str, _ := r.Lookup("string")
	u64, _ := r.Lookup("uint64")

	v := &Value{}
	if err := v.Assign(str, []name.Name{name.Simple("x")}, nil); err != nil {
		t.Fatal(err)
	}
	if err := v.Assign(u64, []name.Name{name.Simple("1")}, nil); err == nil {
		t.Fatal("expected type conflict error")
	}
}
