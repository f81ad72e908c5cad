// Package tools sits at the boundary between raw provider tool calls and the
// rest of the system. It classifies UI tools (render a component) versus
// action tools (perform a side effect), injects the framework's standard
// parameters into tool schemas before they reach the model, strips them back
// out of parsed arguments, and validates forced tool-choice requests.
package tools

import (
	"fmt"
	"maps"
	"strings"

	"github.com/tambo-ai/tambo-go/internal/domain"
	"github.com/tambo-ai/tambo-go/internal/unstrict"
)

// UIToolPrefix marks tool definitions whose invocation means "render this
// component". The component name is the remainder of the tool name.
const UIToolPrefix = "show_component_"

// Standard parameter names injected into every tool schema. They carry the
// reserved pass-through prefix so unstrictification preserves them and the
// strip pass can find them.
const (
	ParamMessage               = unstrict.PassThroughPrefix + "message"
	ParamStatusMessage         = unstrict.PassThroughPrefix + "statusMessage"
	ParamCompleteStatusMessage = unstrict.PassThroughPrefix + "completeStatusMessage"
)

// IsUITool reports whether a tool name identifies a UI tool.
func IsUITool(name string) bool {
	return strings.HasPrefix(name, UIToolPrefix)
}

// ComponentName returns the component a UI tool renders, or "" for
// non-UI tools.
func ComponentName(toolName string) string {
	if !IsUITool(toolName) {
		return ""
	}
	return strings.TrimPrefix(toolName, UIToolPrefix)
}

// Partition splits a tool set into UI tools and action tools.
func Partition(all []domain.Tool) (ui, action []domain.Tool) {
	for _, tool := range all {
		if IsUITool(tool.Name) {
			ui = append(ui, tool)
		} else {
			action = append(action, tool)
		}
	}
	return ui, action
}

// InjectStandardParameters returns a copy of the tool whose schema carries
// the framework's standard parameters, so the model can populate status
// hints alongside the tool's own arguments. The standard parameters are
// never required.
func InjectStandardParameters(tool domain.Tool) domain.Tool {
	schema := maps.Clone(tool.Parameters)
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	properties, _ := schema["properties"].(map[string]any)
	properties = maps.Clone(properties)
	if properties == nil {
		properties = make(map[string]any)
	}
	properties[ParamStatusMessage] = map[string]any{
		"type":        "string",
		"description": "Short progress message shown to the user while this tool call streams.",
	}
	properties[ParamCompleteStatusMessage] = map[string]any{
		"type":        "string",
		"description": "Short message shown to the user once this tool call completes.",
	}
	properties[ParamMessage] = map[string]any{
		"type":        "string",
		"description": "Display text accompanying this tool call when no other assistant text is produced.",
	}
	schema["properties"] = properties
	tool.Parameters = schema
	return tool
}

// InjectAll applies InjectStandardParameters to every tool.
func InjectAll(all []domain.Tool) []domain.Tool {
	out := make([]domain.Tool, len(all))
	for i, tool := range all {
		out[i] = InjectStandardParameters(tool)
	}
	return out
}

// ReservedArgs are the framework-reserved argument values extracted from a
// tool call before its arguments are exposed downstream.
type ReservedArgs struct {
	// Message overrides the display text when the model produced none.
	Message string
	// StatusMessage is shown while the call streams.
	StatusMessage string
	// CompleteStatusMessage is shown once the call completes.
	CompleteStatusMessage string
}

// ExtractReserved pulls the reserved argument values out of parsed args and
// returns them alongside a copy of args with every reserved parameter
// stripped. Neither the executor nor the component props ever see them.
func ExtractReserved(args map[string]any) (ReservedArgs, map[string]any) {
	var reserved ReservedArgs
	if args == nil {
		return reserved, nil
	}
	reserved.Message, _ = args[ParamMessage].(string)
	reserved.StatusMessage, _ = args[ParamStatusMessage].(string)
	reserved.CompleteStatusMessage, _ = args[ParamCompleteStatusMessage].(string)

	cleaned := make(map[string]any, len(args))
	for key, value := range args {
		if strings.HasPrefix(key, unstrict.PassThroughPrefix) {
			continue
		}
		cleaned[key] = value
	}
	return reserved, cleaned
}

// ValidateToolChoice checks a caller-supplied forced tool choice against the
// available tool set. Valid choices are the reserved keywords (auto,
// required, none), the empty string, or the name of a tool in the set. An
// unknown name is a caller configuration error; the decision loop must not
// start.
func ValidateToolChoice(choice string, available []domain.Tool) error {
	switch choice {
	case "", domain.ToolChoiceAuto, domain.ToolChoiceRequired, domain.ToolChoiceNone:
		return nil
	}
	for _, tool := range available {
		if tool.Name == choice {
			return nil
		}
	}
	return fmt.Errorf("tool choice %q does not match any available tool", choice)
}

// FindTool returns the tool with the given name, or false.
func FindTool(name string, available []domain.Tool) (domain.Tool, bool) {
	for _, tool := range available {
		if tool.Name == name {
			return tool, true
		}
	}
	return domain.Tool{}, false
}
