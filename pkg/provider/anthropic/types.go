package anthropic

import "encoding/json"

// Messages API request/response types (internal to the Anthropic adapter).
// These mirror the Anthropic Messages wire format.

// messagesRequest is the request body for POST /v1/messages.
type messagesRequest struct {
	Model         string           `json:"model"`
	System        string           `json:"system,omitempty"`
	Messages      []inputMessage   `json:"messages"`
	MaxTokens     int              `json:"max_tokens"`
	Temperature   *float64         `json:"temperature,omitempty"`
	TopP          *float64         `json:"top_p,omitempty"`
	StopSequences []string         `json:"stop_sequences,omitempty"`
	Tools         []toolDefinition `json:"tools,omitempty"`
	ToolChoice    *toolChoice      `json:"tool_choice,omitempty"`
	Thinking      *thinkingConfig  `json:"thinking,omitempty"`
	Stream        bool             `json:"stream,omitempty"`
}

// inputMessage is one turn of the upstream conversation. Only user and
// assistant roles exist upstream; Content is either a bare string or a
// list of inputBlock values.
type inputMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Upstream message roles.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

// Block type discriminators shared by requests, responses, and streams.
const (
	blockText       = "text"
	blockImage      = "image"
	blockThinking   = "thinking"
	blockToolUse    = "tool_use"
	blockToolResult = "tool_result"
)

// inputBlock is a typed content unit inside a request message. The Type
// field selects which of the remaining fields are meaningful.
type inputBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image
	Source *imageSource `json:"source,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   any    `json:"content,omitempty"`
}

// imageSource carries image data as inline base64 or a remote URL.
type imageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// toolDefinition describes a tool in the upstream format.
type toolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// toolChoice directs upstream tool selection.
type toolChoice struct {
	Type string `json:"type"` // "auto", "any", "none", or "tool"
	Name string `json:"name,omitempty"`
}

// thinkingConfig enables the upstream reasoning budget.
type thinkingConfig struct {
	Type         string `json:"type"` // "enabled"
	BudgetTokens int    `json:"budget_tokens"`
}

// ---------------------------------------------------------------------------
// Response types
// ---------------------------------------------------------------------------

// messagesResponse is the complete non-streaming body from /v1/messages.
type messagesResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      []contentBlock `json:"content"`
	StopReason   string         `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        usage          `json:"usage"`
}

// contentBlock is the closed text/thinking/tool_use union produced by the
// upstream. Every consumption site switches exhaustively on Type so that a
// new upstream block type surfaces as an explicit default case rather than
// vanishing silently.
type contentBlock struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Thinking string          `json:"thinking,omitempty"`
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
}

// usage holds upstream token accounting. Cache counters are zero when the
// backend does not report them.
type usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
}

// Upstream stop reasons.
const (
	stopEndTurn      = "end_turn"
	stopStopSequence = "stop_sequence"
	stopMaxTokens    = "max_tokens"
	stopToolUse      = "tool_use"
)

// ---------------------------------------------------------------------------
// Streaming event types
// ---------------------------------------------------------------------------

// Stream event type discriminators.
const (
	eventMessageStart      = "message_start"
	eventContentBlockStart = "content_block_start"
	eventContentBlockDelta = "content_block_delta"
	eventContentBlockStop  = "content_block_stop"
	eventMessageDelta      = "message_delta"
	eventMessageStop       = "message_stop"
	eventPing              = "ping"
	eventError             = "error"
)

// Delta type discriminators inside content_block_delta events.
const (
	deltaText      = "text_delta"
	deltaThinking  = "thinking_delta"
	deltaInputJSON = "input_json_delta"
)

// streamEvent is one decoded SSE event from the upstream stream. The Type
// field selects which of the optional payloads is present.
type streamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index,omitempty"`

	// message_start
	Message *messagesResponse `json:"message,omitempty"`

	// content_block_start
	ContentBlock *contentBlock `json:"content_block,omitempty"`

	// content_block_delta and message_delta
	Delta *streamDelta `json:"delta,omitempty"`

	// message_delta
	Usage *usage `json:"usage,omitempty"`

	// error
	Error *upstreamError `json:"error,omitempty"`
}

// streamDelta is the polymorphic delta payload: a content increment for
// content_block_delta events, a stop reason for message_delta events.
type streamDelta struct {
	Type         string  `json:"type,omitempty"`
	Text         string  `json:"text,omitempty"`
	Thinking     string  `json:"thinking,omitempty"`
	PartialJSON  string  `json:"partial_json,omitempty"`
	StopReason   string  `json:"stop_reason,omitempty"`
	StopSequence *string `json:"stop_sequence,omitempty"`
}

// upstreamError is the error payload used both in error-typed bodies and
// mid-stream error events: {"type":"error","error":{"type":...,"message":...}}.
type upstreamError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// errorResponse is the error envelope returned by the upstream on
// non-success statuses.
type errorResponse struct {
	Type  string        `json:"type"`
	Error upstreamError `json:"error"`
}

// modelsResponse is the body of the upstream GET /v1/models.
type modelsResponse struct {
	Data []modelInfo `json:"data"`
}

// modelInfo is one upstream model entry.
type modelInfo struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}
