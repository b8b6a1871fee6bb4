package cc

import (
	"github.com/b2go/b2go/internal/core"
	"github.com/b2go/b2go/internal/value"
	"github.com/b2go/b2go/internal/variable"
)

// Types bundles the target types spec.md §4.10 needs: C/C++ source
// leaves, the obj{}/liba{}/libs{} groups and their per-flavor members,
// and the exe{} output — the canonical instance of §4.5's inheritable,
// amendable TargetType registry.
type Types struct {
	Cxx, C *core.TargetType
	Hxx    *core.TargetType // header, a dependency leaf never built itself

	Obj, ObjE, ObjA, ObjS *core.TargetType
	Lib, LibA, LibS       *core.TargetType
	Exe                   *core.TargetType
}

// Vars bundles the well-known cxx.*/cc.* variables rules consult, all
// vector<string> except config.bin.lib (spec.md §2 item 2: "homogeneous
// vector<T>").
type Vars struct {
	CxxPoptions *variable.Variable // preprocessor options (-I, -D)
	CxxCoptions *variable.Variable // compile options (-std=, -O)
	CxxLoptions *variable.Variable // link options
	CxxLibs     *variable.Variable // extra libraries to link

	ConfigBinLib *variable.Variable // "shared", "static" or "both" (spec.md config.*)
}

// Register installs the target-type chain and well-known variables into
// pool/registry/scope, returning handles the compile/link rules and a
// project's root.build bootstrap use. Call once per root scope.
func Register(scope *core.Scope, pool *variable.Pool, types *value.Registry) (*Types, *Vars) {
	reg := scope.TargetTypes

	t := &Types{}
	t.Cxx = &core.TargetType{Name: "cxx"}
	t.C = &core.TargetType{Name: "c"}
	t.Hxx = &core.TargetType{Name: "hxx"}
	reg.Register(t.Cxx)
	reg.Register(t.C)
	reg.Register(t.Hxx)

	t.ObjE = &core.TargetType{Name: "obje"}
	t.ObjA = &core.TargetType{Name: "obja"}
	t.ObjS = &core.TargetType{Name: "objs"}
	t.Obj = &core.TargetType{Name: "obj", Group: true}
	reg.Register(t.ObjE)
	reg.Register(t.ObjA)
	reg.Register(t.ObjS)
	reg.Register(t.Obj)

	t.LibA = &core.TargetType{Name: "liba"}
	t.LibS = &core.TargetType{Name: "libs"}
	t.Lib = &core.TargetType{Name: "lib", Group: true}
	reg.Register(t.LibA)
	reg.Register(t.LibS)
	reg.Register(t.Lib)

	t.Exe = &core.TargetType{Name: "exe"}
	reg.Register(t.Exe)

	strVec, _ := types.Lookup("vector<string>")
	if strVec == nil {
		st, _ := types.Lookup("string")
		strVec = types.Vector(st)
	}

	v := &Vars{}
	overridable := true
	v.CxxPoptions, _ = pool.Insert("cxx.poptions", variable.InsertOptions{Type: strVec, Overridable: &overridable})
	v.CxxCoptions, _ = pool.Insert("cxx.coptions", variable.InsertOptions{Type: strVec, Overridable: &overridable})
	v.CxxLoptions, _ = pool.Insert("cxx.loptions", variable.InsertOptions{Type: strVec, Overridable: &overridable})
	v.CxxLibs, _ = pool.Insert("cxx.libs", variable.InsertOptions{Type: strVec, Overridable: &overridable})

	str, _ := types.Lookup("string")
	v.ConfigBinLib, _ = pool.Insert("config.bin.lib", variable.InsertOptions{Type: str, Overridable: &overridable})

	return t, v
}

// VecStrings reads a vector<string> value into a plain []string,
// returning nil for a null/empty/untyped value.
func VecStrings(val *value.Value) []string {
	if val == nil || val.Null || val.Data == nil {
		return nil
	}
	elems, ok := val.Data.([]*value.Value)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		if s, ok := e.Data.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
