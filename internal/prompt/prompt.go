// Package prompt builds the system prompt for a decision-loop turn.
package prompt

import (
	"fmt"
	"strings"

	"github.com/tambo-ai/tambo-go/internal/domain"
	"github.com/tambo-ai/tambo-go/internal/tools"
)

const basePrompt = `You are an assistant embedded in a generative UI application.

You respond with natural-language text and, when appropriate, invoke tools.
Tools whose names start with "show_component_" render a UI component for the
user; populate their arguments to describe the component's props. Other tools
perform actions on the user's behalf.

When you invoke a tool you may set the "_tambo_statusMessage" argument to a
short progress message and "_tambo_completeStatusMessage" to a short
completion message. If you invoke a tool without producing any other text,
set "_tambo_message" to the text that should accompany it.

Respond with plain natural-language text. Never respond with a JSON object in
place of prose.`

// Build assembles the system prompt for one turn, substituting the
// application's custom instructions and rendering the available component
// inventory.
func Build(customInstructions string, available []domain.Tool) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)

	ui, _ := tools.Partition(available)
	if len(ui) > 0 {
		sb.WriteString("\n\nAvailable components:\n")
		for _, tool := range ui {
			fmt.Fprintf(&sb, "- %s", tools.ComponentName(tool.Name))
			if tool.Description != "" {
				fmt.Fprintf(&sb, ": %s", tool.Description)
			}
			sb.WriteString("\n")
		}
	}

	if custom := strings.TrimSpace(customInstructions); custom != "" {
		sb.WriteString("\n\nAdditional instructions:\n")
		sb.WriteString(custom)
	}
	return sb.String()
}
