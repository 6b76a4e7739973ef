package agent

import (
	"fmt"
	"strings"

	"github.com/candralab/stanza/session"
)

// ============================================================================
// PROMPT RENDERING
// ============================================================================

// buildPrompt renders the working message sequence, and the tool calling
// schema when tool use is enabled, into the flat prompt the generation
// primitive consumes.
func buildPrompt(messages []session.Message, schema []byte) string {
	var sb strings.Builder

	if len(schema) > 0 {
		sb.WriteString("Available tools:\n")
		sb.Write(schema)
		sb.WriteString("\n\n")
		sb.WriteString("Tool call format:\n")
		sb.WriteString(DirectiveMarker)
		sb.WriteString(` {"tool": "TOOL_NAME", "args": {"param": "value"}}`)
		sb.WriteString("\n\n")
		sb.WriteString("Format rules:\n")
		sb.WriteString("- NO markdown formatting around tool calls\n")
		sb.WriteString("- Write " + DirectiveMarker + " followed by a single JSON object\n")
		sb.WriteString("- All argument values are strings\n")
		sb.WriteString("- If no tool is needed, answer normally\n\n")
	}

	for _, msg := range messages {
		if msg.Role == session.RoleTool && msg.ToolName != "" {
			sb.WriteString(fmt.Sprintf("%s (%s): %s\n\n", msg.Role, msg.ToolName, msg.Content))
			continue
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n\n", msg.Role, msg.Content))
	}

	sb.WriteString("assistant: ")
	return sb.String()
}

// summaryPrompt wraps a transcript for the summarization call used by
// session compression.
func summaryPrompt(transcript string) string {
	return "Summarize the following conversation concisely. " +
		"Preserve names, decisions, numbers and open questions.\n\n" + transcript
}
