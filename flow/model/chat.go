// Package model provides LLM chat-provider adapters shared by the llm
// step kind: a single ChatModel interface behind which Anthropic, OpenAI,
// and Google clients (see the anthropic, openai, and google
// subpackages) are interchangeable.
package model

import "context"

// ChatModel is the interface every LLM provider adapter implements.
//
// Implementations should handle provider-specific authentication, convert
// Message/Part into the provider's wire format, parse the response back
// into ChatOut, and respect context cancellation.
type ChatModel interface {
	// Chat sends messages to the LLM and returns its response.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn of an LLM conversation. Content carries plain text;
// Parts carries a mixed sequence of text and media segments for
// multimodal prompts (§4.C: the llm handler partitions resolved inputs
// into multimodal parts and stringified template substitutions). When
// Parts is non-empty the provider adapters send it in place of Content,
// except for system messages (and, in the openai adapter, assistant
// messages), which are always sent as Content.
type Message struct {
	Role    string
	Content string
	Parts   []Part
}

// PartType discriminates the two kinds of prompt segment a multimodal
// message can carry.
type PartType string

const (
	PartText  PartType = "text"
	PartMedia PartType = "media"
)

// Part is one segment of a multimodal message. A handler that resolves
// an input shaped like {mime_type, data} builds a PartMedia; every other
// resolved value is stringified into a PartText segment (§4.C).
type Part struct {
	Type     PartType
	Text     string
	MimeType string
	Data     []byte
}

// Standard role constants, aligned with the conventions used by major
// LLM providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool an LLM may call, using JSON Schema for Input.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ChatOut is the parsed result of a Chat call.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
	Model     string
	Usage     Usage
}

// Usage carries a provider's reported token accounting for one call, used
// to attribute run cost (see the flow package's CostTracker). A provider
// adapter that cannot report usage leaves this zero-valued; cost
// attribution then simply records zero for that call rather than failing.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ToolCall is a request from the LLM to invoke a named tool.
type ToolCall struct {
	Name  string
	Input map[string]any
}

// IsMediaValue reports whether v has the {mime_type, data} shape the llm
// handler recognizes as a multimodal prompt part, and returns the
// extracted Part if so.
func IsMediaValue(v any) (Part, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Part{}, false
	}
	mime, hasMime := m["mime_type"].(string)
	if !hasMime {
		return Part{}, false
	}
	switch data := m["data"].(type) {
	case string:
		return Part{Type: PartMedia, MimeType: mime, Data: []byte(data)}, true
	case []byte:
		return Part{Type: PartMedia, MimeType: mime, Data: data}, true
	default:
		return Part{}, false
	}
}
