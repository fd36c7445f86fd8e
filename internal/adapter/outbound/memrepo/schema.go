package memrepo

import (
	"math"
	"slices"

	"github.com/i2y/lnbits-mcp/internal/domain"
)

// hiddenParams are injected by the server and never exposed to callers.
var hiddenParams = map[string]struct{}{
	"usr":                 {},
	"cookie_access_token": {},
}

var allowedKeywords = map[string]struct{}{
	"type": {}, "properties": {}, "required": {}, "items": {}, "enum": {},
	"anyOf": {}, "oneOf": {}, "allOf": {},
	"minimum": {}, "maximum": {}, "exclusiveMinimum": {}, "exclusiveMaximum": {},
	"minLength": {}, "maxLength": {}, "minItems": {}, "maxItems": {},
	"pattern": {}, "format": {}, "description": {}, "default": {},
	"additionalProperties": {}, "const": {}, "prefixItems": {}, "$ref": {},
}

var numericBounds = []string{
	"minimum", "maximum", "exclusiveMinimum", "exclusiveMaximum",
	"minLength", "maxLength", "minItems", "maxItems",
}

// typeKeywords give a leaf a concrete kind. enum is deliberately absent:
// enum-only leaves still receive type "string".
var typeKeywords = []string{"type", "anyOf", "oneOf", "allOf", "$ref"}

// maxSafeInteger is the largest float64 that still represents every integer below it exactly.
const maxSafeInteger = 1 << 53

// BuildInputSchema derives the tool input schema for one operation.
func BuildInputSchema(op domain.Operation) map[string]any {
	properties := map[string]any{}
	var required []string

	addRequired := func(name string) {
		if !slices.Contains(required, name) {
			required = append(required, name)
		}
	}

	for _, param := range op.Parameters {
		if _, hidden := hiddenParams[param.Name]; hidden {
			continue
		}
		if param.In == domain.LocationCookie || param.Name == "" {
			continue
		}
		properties[param.Name] = ExtractProperty(param.Schema, param.Description)
		if param.Required {
			addRequired(param.Name)
		}
	}

	if op.RequestBodySchema != nil {
		bodyProps, _ := op.RequestBodySchema["properties"].(map[string]any)
		for name, raw := range bodyProps {
			fragment, _ := raw.(map[string]any)
			properties[name] = ExtractProperty(fragment, "")
		}
		for _, name := range toStrings(op.RequestBodySchema["required"]) {
			if _, ok := bodyProps[name]; ok {
				addRequired(name)
			}
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ExtractProperty sanitizes one parameter or body property into a leaf that always
// carries a concrete kind. fallbackDescription is used when the fragment has none.
func ExtractProperty(fragment map[string]any, fallbackDescription string) map[string]any {
	leaf := SanitizeSchema(fragment)
	if _, ok := leaf["description"]; !ok && fallbackDescription != "" {
		leaf["description"] = fallbackDescription
	}
	return withDefaultType(leaf)
}

// SanitizeSchema keeps only standard JSON Schema keywords, rewrites OpenAPI
// nullability into anyOf, promotes title to description, and turns integral
// float bounds into ints. It recurses into properties, items, prefixItems and
// the combinators. The input is not modified. Sanitizing twice is a no-op.
func SanitizeSchema(fragment map[string]any) map[string]any {
	out := make(map[string]any, len(fragment))
	for k, v := range fragment {
		if _, ok := allowedKeywords[k]; ok {
			out[k] = v
		}
	}

	if title, ok := fragment["title"].(string); ok && title != "" {
		if _, has := out["description"]; !has {
			out["description"] = title
		}
	}

	if nullable, _ := fragment["nullable"].(bool); nullable {
		applyNullable(out)
	}

	for _, key := range numericBounds {
		if v, ok := out[key]; ok {
			out[key] = coerceIntegral(v)
		}
	}

	if props, ok := out["properties"].(map[string]any); ok {
		sanitized := make(map[string]any, len(props))
		for name, child := range props {
			sanitized[name] = sanitizeChild(child)
		}
		out["properties"] = sanitized
	}
	if items, ok := out["items"].(map[string]any); ok {
		out["items"] = sanitizeChild(items)
	}
	if prefix, ok := out["prefixItems"].([]any); ok {
		sanitized := make([]any, len(prefix))
		for i, child := range prefix {
			sanitized[i] = sanitizeChild(child)
		}
		out["prefixItems"] = sanitized
	}
	for _, key := range []string{"anyOf", "oneOf", "allOf"} {
		members, ok := out[key].([]any)
		if !ok {
			continue
		}
		sanitized := make([]any, len(members))
		for i, m := range members {
			if mm, ok := m.(map[string]any); ok {
				sanitized[i] = SanitizeSchema(mm)
			} else {
				sanitized[i] = m
			}
		}
		out[key] = sanitized
	}
	if extra, ok := out["additionalProperties"].(map[string]any); ok {
		out["additionalProperties"] = SanitizeSchema(extra)
	}
	return out
}

func sanitizeChild(child any) any {
	m, ok := child.(map[string]any)
	if !ok {
		return child
	}
	return withDefaultType(SanitizeSchema(m))
}

func withDefaultType(leaf map[string]any) map[string]any {
	for _, k := range typeKeywords {
		if _, ok := leaf[k]; ok {
			return leaf
		}
	}
	leaf["type"] = "string"
	return leaf
}

func applyNullable(out map[string]any) {
	if t, ok := out["type"]; ok {
		if _, hasAnyOf := out["anyOf"]; !hasAnyOf {
			delete(out, "type")
			out["anyOf"] = []any{
				map[string]any{"type": t},
				map[string]any{"type": "null"},
			}
			return
		}
	}
	members, ok := out["anyOf"].([]any)
	if !ok {
		return
	}
	for _, m := range members {
		if mm, ok := m.(map[string]any); ok && mm["type"] == "null" {
			return
		}
	}
	out["anyOf"] = append(slices.Clone(members), map[string]any{"type": "null"})
}

func coerceIntegral(v any) any {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	if f == math.Trunc(f) && math.Abs(f) < maxSafeInteger {
		return int(f)
	}
	return f
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
