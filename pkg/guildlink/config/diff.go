package config

import (
	"fmt"

	"github.com/tsarna/go-structdiff"
	"github.com/tsarna/go2cty2go"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// diffFunc returns the structural difference between two values, as a
// patch that patchFunc can apply:
//
//	diff({a = 1, b = 2}, {a = 1, b = 3, c = 4})  # {b = 3, c = 4}
var diffFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "from", Type: cty.DynamicPseudoType},
		{Name: "to", Type: cty.DynamicPseudoType},
	},
	Type: function.StaticReturnType(cty.DynamicPseudoType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		from, err := ctyToGo(args[0], "from")
		if err != nil {
			return cty.DynamicVal, err
		}
		to, err := ctyToGo(args[1], "to")
		if err != nil {
			return cty.DynamicVal, err
		}

		delta, err := structdiff.Diff(from, to)
		if err != nil {
			return cty.DynamicVal, fmt.Errorf("failed to diff values: %w", err)
		}
		return go2cty2go.AnyToCty(delta)
	},
})

// patchFunc applies a patch produced by diffFunc to an object or map.
var patchFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "target", Type: cty.DynamicPseudoType},
		{Name: "patch", Type: cty.DynamicPseudoType},
	},
	Type: function.StaticReturnType(cty.DynamicPseudoType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		target, err := ctyToGo(args[0], "target")
		if err != nil {
			return cty.DynamicVal, err
		}
		patch, err := ctyToGo(args[1], "patch")
		if err != nil {
			return cty.DynamicVal, err
		}

		targetMap, ok := target.(map[string]any)
		if !ok {
			return cty.DynamicVal, fmt.Errorf("target must be an object or map")
		}
		patchMap, ok := patch.(map[string]any)
		if !ok {
			return cty.DynamicVal, fmt.Errorf("patch must be an object or map")
		}

		if err := structdiff.Apply(&targetMap, patchMap); err != nil {
			return cty.DynamicVal, fmt.Errorf("failed to apply patch: %w", err)
		}
		return go2cty2go.AnyToCty(targetMap)
	},
})

func ctyToGo(v cty.Value, arg string) (any, error) {
	out, err := go2cty2go.CtyToAny(v)
	if err != nil {
		return nil, fmt.Errorf("unable to convert %s argument: %w", arg, err)
	}
	return out, nil
}
