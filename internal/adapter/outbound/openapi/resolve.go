package openapi

import "strings"

// maxRefDepth bounds $ref resolution so cyclic schemas terminate.
const maxRefDepth = 15

type refResolver struct {
	schemas map[string]any
}

// refName returns the final segment of a JSON pointer such as "#/components/schemas/Wallet".
func refName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// resolve returns a copy of fragment with $refs inlined. Past maxRefDepth the
// fragment is returned untouched. Unknown refs resolve to an empty schema.
func (r refResolver) resolve(fragment map[string]any, depth int) map[string]any {
	if depth > maxRefDepth {
		return fragment
	}
	if ref, ok := fragment["$ref"].(string); ok {
		target, _ := r.schemas[refName(ref)].(map[string]any)
		if target == nil {
			target = map[string]any{}
		}
		return r.resolve(target, depth+1)
	}

	out := make(map[string]any, len(fragment))
	for k, v := range fragment {
		out[k] = v
	}

	if props, ok := out["properties"].(map[string]any); ok {
		resolved := make(map[string]any, len(props))
		for name, prop := range props {
			resolved[name] = r.resolveAny(prop, depth+1)
		}
		out["properties"] = resolved
	}
	if items, ok := out["items"].(map[string]any); ok {
		out["items"] = r.resolve(items, depth+1)
	}
	for _, key := range []string{"allOf", "anyOf", "oneOf"} {
		members, ok := out[key].([]any)
		if !ok {
			continue
		}
		resolved := make([]any, len(members))
		for i, m := range members {
			resolved[i] = r.resolveAny(m, depth+1)
		}
		out[key] = resolved
	}
	return out
}

func (r refResolver) resolveAny(v any, depth int) any {
	if m, ok := v.(map[string]any); ok {
		return r.resolve(m, depth)
	}
	return v
}

// resolveObject replaces an object that is itself a $ref (parameters do this)
// with its target, keeping the original when the target is missing.
func (r refResolver) resolveObject(obj map[string]any) map[string]any {
	ref, ok := obj["$ref"].(string)
	if !ok {
		return obj
	}
	if target, ok := r.schemas[refName(ref)].(map[string]any); ok {
		return target
	}
	return obj
}
