// Package unstrict removes streaming artifacts from parsed tool-call
// arguments. Models running in strict JSON-schema output mode emit explicit
// nulls for optional properties they have no value for; those nulls are
// artifacts of the output mode, not real values, and must not reach
// downstream consumers. Tool schemas are plain JSON Schema documents decoded
// into map[string]any, the same untyped representation the rest of the
// system uses for tool parameters.
package unstrict

import "strings"

// PassThroughPrefix marks property names the framework reserves for itself.
// Properties carrying the prefix survive unstrictification regardless of the
// declared schema.
const PassThroughPrefix = "_tambo_"

// Apply returns a copy of args with nulls stripped from properties that are
// both optional (absent from the schema's required list) and not nullable.
// Nested objects are unstrictified recursively against their property
// schemas. Pass-through properties are always preserved.
func Apply(args map[string]any, schema map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	properties, _ := schema["properties"].(map[string]any)
	required := requiredSet(schema)

	out := make(map[string]any, len(args))
	for key, value := range args {
		if strings.HasPrefix(key, PassThroughPrefix) {
			out[key] = value
			continue
		}
		propSchema, _ := properties[key].(map[string]any)
		if value == nil {
			if required[key] || isNullable(propSchema) {
				out[key] = nil
			}
			continue
		}
		if nested, ok := value.(map[string]any); ok && propSchema != nil {
			out[key] = Apply(nested, propSchema)
			continue
		}
		out[key] = value
	}
	return out
}

func requiredSet(schema map[string]any) map[string]bool {
	set := make(map[string]bool)
	switch req := schema["required"].(type) {
	case []any:
		for _, name := range req {
			if s, ok := name.(string); ok {
				set[s] = true
			}
		}
	case []string:
		for _, name := range req {
			set[name] = true
		}
	}
	return set
}

// isNullable reports whether the property schema admits null, either through
// a "null" entry in its type (JSON Schema) or an OpenAPI-style nullable flag.
func isNullable(propSchema map[string]any) bool {
	if propSchema == nil {
		return false
	}
	if nullable, ok := propSchema["nullable"].(bool); ok && nullable {
		return true
	}
	switch typ := propSchema["type"].(type) {
	case string:
		return typ == "null"
	case []any:
		for _, entry := range typ {
			if entry == "null" {
				return true
			}
		}
	}
	return false
}
