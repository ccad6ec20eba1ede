package ir

import (
	"encoding/json"
	"fmt"
)

// MarshalModel encodes spec as canonical JSON. Parameter and initial
// values keep their int/float distinction, which plain json.Marshal loses
// for integral floats.
func MarshalModel(spec ModelSpec) ([]byte, error) {
	tree, err := modelTree(spec)
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(tree)
}

// UnmarshalModel decodes JSON produced by MarshalModel. Values are
// normalized to the persistence set.
func UnmarshalModel(data []byte) (ModelSpec, error) {
	var spec ModelSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return ModelSpec{}, fmt.Errorf("unmarshal model: %w", err)
	}
	tree, err := DecodeValue(data)
	if err != nil {
		return ModelSpec{}, fmt.Errorf("decode model: %w", err)
	}

	root, _ := tree.(map[string]any)
	comps, _ := root["components"].([]any)
	for i := range spec.Components {
		if i >= len(comps) {
			break
		}
		node, _ := comps[i].(map[string]any)
		if params, ok := node["params"].(map[string]any); ok {
			spec.Components[i].Params = params
		}
		cs, _ := node["compartments"].([]any)
		for j := range spec.Components[i].Compartments {
			if j >= len(cs) {
				break
			}
			if c, ok := cs[j].(map[string]any); ok {
				spec.Components[i].Compartments[j].Initial = c["initial"]
			}
		}
	}
	return spec, nil
}

// modelTree converts spec to the generic value tree, substituting the
// normalized originals for every parameter and initial value.
func modelTree(spec ModelSpec) (map[string]any, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal model: %w", err)
	}
	v, err := DecodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	tree := v.(map[string]any)

	comps, _ := tree["components"].([]any)
	for i, comp := range spec.Components {
		node := comps[i].(map[string]any)
		if len(comp.Params) > 0 {
			params, err := NormalizeValue(comp.Params)
			if err != nil {
				return nil, fmt.Errorf("component %q params: %w", comp.Name, err)
			}
			node["params"] = params
		}
		cs, _ := node["compartments"].([]any)
		for j, c := range comp.Compartments {
			initial, err := NormalizeValue(c.Initial)
			if err != nil {
				return nil, fmt.Errorf("component %q compartment %q: %w", comp.Name, c.Name, err)
			}
			cs[j].(map[string]any)["initial"] = initial
		}
	}
	return tree, nil
}
