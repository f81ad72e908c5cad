package tools

import (
	"reflect"
	"testing"

	"github.com/tambo-ai/tambo-go/internal/domain"
)

func TestIsUITool(t *testing.T) {
	tests := []struct {
		name string
		tool string
		want bool
	}{
		{name: "ui tool", tool: "show_component_WeatherCard", want: true},
		{name: "action tool", tool: "search_flights", want: false},
		{name: "prefix only", tool: "show_component_", want: true},
		{name: "similar but not prefix", tool: "show_components_list", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUITool(tt.tool); got != tt.want {
				t.Errorf("IsUITool(%q) = %v, want %v", tt.tool, got, tt.want)
			}
		})
	}
}

func TestComponentName(t *testing.T) {
	if got := ComponentName("show_component_WeatherCard"); got != "WeatherCard" {
		t.Errorf("ComponentName() = %q, want WeatherCard", got)
	}
	if got := ComponentName("search_flights"); got != "" {
		t.Errorf("ComponentName() = %q, want empty", got)
	}
}

func TestPartition(t *testing.T) {
	all := []domain.Tool{
		{Name: "show_component_Chart"},
		{Name: "lookup_orders"},
		{Name: "show_component_Table"},
	}
	ui, action := Partition(all)
	if len(ui) != 2 || len(action) != 1 {
		t.Fatalf("Partition() = %d ui, %d action; want 2, 1", len(ui), len(action))
	}
	if action[0].Name != "lookup_orders" {
		t.Errorf("action[0] = %q, want lookup_orders", action[0].Name)
	}
}

func TestInjectStandardParameters(t *testing.T) {
	tool := domain.Tool{
		Name: "show_component_Chart",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"series": map[string]any{"type": "array"},
			},
			"required": []any{"series"},
		},
	}

	injected := InjectStandardParameters(tool)
	props := injected.Parameters["properties"].(map[string]any)
	for _, name := range []string{ParamMessage, ParamStatusMessage, ParamCompleteStatusMessage} {
		if _, ok := props[name]; !ok {
			t.Errorf("injected schema missing %q", name)
		}
	}
	if _, ok := props["series"]; !ok {
		t.Error("injected schema lost the tool's own property")
	}

	// The original tool schema must be untouched.
	origProps := tool.Parameters["properties"].(map[string]any)
	if _, ok := origProps[ParamStatusMessage]; ok {
		t.Error("InjectStandardParameters mutated the input tool")
	}

	// Standard params are never required.
	req := injected.Parameters["required"].([]any)
	if len(req) != 1 || req[0] != "series" {
		t.Errorf("required = %v, want [series]", req)
	}
}

func TestInjectStandardParametersNilSchema(t *testing.T) {
	injected := InjectStandardParameters(domain.Tool{Name: "noop"})
	props, ok := injected.Parameters["properties"].(map[string]any)
	if !ok {
		t.Fatal("injected schema has no properties map")
	}
	if _, ok := props[ParamMessage]; !ok {
		t.Errorf("injected schema missing %q", ParamMessage)
	}
}

func TestExtractReserved(t *testing.T) {
	args := map[string]any{
		"city":                 "Berlin",
		ParamMessage:           "Here is the weather.",
		ParamStatusMessage:     "Fetching weather...",
		"_tambo_futureReserved": true,
	}
	reserved, cleaned := ExtractReserved(args)

	if reserved.Message != "Here is the weather." {
		t.Errorf("Message = %q", reserved.Message)
	}
	if reserved.StatusMessage != "Fetching weather..." {
		t.Errorf("StatusMessage = %q", reserved.StatusMessage)
	}
	if reserved.CompleteStatusMessage != "" {
		t.Errorf("CompleteStatusMessage = %q, want empty", reserved.CompleteStatusMessage)
	}

	want := map[string]any{"city": "Berlin"}
	if !reflect.DeepEqual(cleaned, want) {
		t.Errorf("cleaned = %#v, want %#v", cleaned, want)
	}
	if _, ok := args[ParamMessage]; !ok {
		t.Error("ExtractReserved mutated its input")
	}
}

func TestValidateToolChoice(t *testing.T) {
	available := []domain.Tool{{Name: "search_flights"}, {Name: "show_component_Chart"}}

	for _, choice := range []string{"", "auto", "required", "none", "search_flights", "show_component_Chart"} {
		if err := ValidateToolChoice(choice, available); err != nil {
			t.Errorf("ValidateToolChoice(%q) error = %v, want nil", choice, err)
		}
	}

	if err := ValidateToolChoice("book_hotel", available); err == nil {
		t.Error("ValidateToolChoice(unknown) error = nil, want error")
	}
}
