package variable

import (
	"fmt"

	"github.com/b2go/b2go/internal/value"
)

// ApplyOverrides folds stem (the variable's plain assigned value, which
// may be nil) through the ordered override chain, returning the effective
// value. Overrides never typify eagerly (spec.md §4.2: "their values
// remain as names until applied at lookup time"); typification happens
// lazily the first time a typed read is requested, exactly like any other
// value. A type mismatch between an override and the stem it folds onto
// (spec.md §9 Open Question #2) is returned as an error, never silently
// coerced or dropped.
func ApplyOverrides(v *Variable, stem *value.Value, overrides []*Override) (*value.Value, error) {
	if len(overrides) == 0 {
		return stem, nil
	}
	cur := stem
	for _, o := range overrides {
		var err error
		switch o.Op {
		case OpOverride:
			cur = o.Value.Clone()
		case OpSuffix:
			if cur == nil || cur.Null {
				cur = o.Value.Clone()
			} else {
				cur, err = appendValue(v, cur, o.Value)
			}
		case OpPrefix:
			if cur == nil || cur.Null {
				cur = o.Value.Clone()
			} else {
				cur, err = prependValue(v, cur, o.Value)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// appendValue/prependValue apply an override's untyped names against an
// already-typed stem, typifying the override's names through the stem's
// type first. Per spec.md §9 Open Question #2, a type mismatch between
// the two sides fails hard unless one side is untyped.
func appendValue(v *Variable, stem, add *value.Value) (*value.Value, error) {
	out := stem.Clone()
	if out.Type == nil {
		out.Names = append(out.Names, add.Reverse()...)
		return out, nil
	}
	if err := out.Append(out.Type, add.Reverse(), v); err != nil {
		return nil, fmt.Errorf("variable %q: override append: %w", v.Name(), err)
	}
	return out, nil
}

func prependValue(v *Variable, stem, add *value.Value) (*value.Value, error) {
	out := stem.Clone()
	if out.Type == nil {
		out.Names = append(add.Reverse(), out.Names...)
		return out, nil
	}
	if err := out.Prepend(out.Type, add.Reverse(), v); err != nil {
		return nil, fmt.Errorf("variable %q: override prepend: %w", v.Name(), err)
	}
	return out, nil
}
