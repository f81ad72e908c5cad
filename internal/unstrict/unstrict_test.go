package unstrict

import (
	"reflect"
	"testing"
)

func TestApply(t *testing.T) {
	personSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": "number"},
		},
		"required": []any{"name"},
	}

	tests := []struct {
		name   string
		args   map[string]any
		schema map[string]any
		want   map[string]any
	}{
		{
			name:   "optional null stripped",
			args:   map[string]any{"name": "John", "age": nil},
			schema: personSchema,
			want:   map[string]any{"name": "John"},
		},
		{
			name:   "required null preserved",
			args:   map[string]any{"name": nil, "age": float64(30)},
			schema: personSchema,
			want:   map[string]any{"name": nil, "age": float64(30)},
		},
		{
			name: "nullable type preserved",
			args: map[string]any{"note": nil},
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"note": map[string]any{"type": []any{"string", "null"}},
				},
			},
			want: map[string]any{"note": nil},
		},
		{
			name: "openapi nullable flag preserved",
			args: map[string]any{"note": nil},
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"note": map[string]any{"type": "string", "nullable": true},
				},
			},
			want: map[string]any{"note": nil},
		},
		{
			name:   "undeclared null stripped",
			args:   map[string]any{"name": "John", "extra": nil},
			schema: personSchema,
			want:   map[string]any{"name": "John"},
		},
		{
			name:   "pass-through preserved without schema",
			args:   map[string]any{"_tambo_statusMessage": nil, "name": "John"},
			schema: personSchema,
			want:   map[string]any{"_tambo_statusMessage": nil, "name": "John"},
		},
		{
			name: "nested object recursed",
			args: map[string]any{
				"user": map[string]any{"name": "John", "email": nil},
			},
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name":  map[string]any{"type": "string"},
							"email": map[string]any{"type": "string"},
						},
						"required": []any{"name"},
					},
				},
			},
			want: map[string]any{"user": map[string]any{"name": "John"}},
		},
		{
			name:   "nil args",
			args:   nil,
			schema: personSchema,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(tt.args, tt.schema)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Apply() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	args := map[string]any{"name": "John", "age": nil}
	schema := map[string]any{
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": "number"},
		},
		"required": []any{"name"},
	}
	Apply(args, schema)
	if _, ok := args["age"]; !ok {
		t.Error("Apply() mutated its input")
	}
}
