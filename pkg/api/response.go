package api

import "encoding/json"

// Object tags carried on every response and chunk.
const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
	ObjectModel               = "model"
	ObjectList                = "list"
)

// Finish reasons exposed to consumers.
const (
	FinishStop      = "stop"
	FinishLength    = "length"
	FinishToolCalls = "tool_calls"
)

// ChatResponse is the complete non-streaming body for a chat completion.
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion alternative. The gateway always produces
// exactly one.
type Choice struct {
	Index        int              `json:"index"`
	Message      AssistantMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// AssistantMessage is the model's turn in a non-streaming response.
//
// Content is a pointer so that "no text at all" (tool-call-only turns)
// serializes as an explicit JSON null, distinct from an empty string.
// ReasoningContent is the side channel for provider reasoning text; it is
// never merged into Content.
type AssistantMessage struct {
	Role             string     `json:"role"`
	Content          *string    `json:"content"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	ReasoningContent *string    `json:"reasoning_content,omitempty"`
}

// Usage holds token accounting for an exchange.
type Usage struct {
	PromptTokens        int                  `json:"prompt_tokens"`
	CompletionTokens    int                  `json:"completion_tokens"`
	TotalTokens         int                  `json:"total_tokens"`
	PromptTokensDetails *PromptTokensDetails `json:"prompt_tokens_details,omitempty"`
}

// PromptTokensDetails breaks down prompt token usage. It is present only
// when the upstream reported cache activity.
type PromptTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}

// ---------------------------------------------------------------------------
// Streaming chunk types
// ---------------------------------------------------------------------------

// ChatCompletionChunk is a single frame of a streaming completion. All
// chunks of one exchange share the same ID and Created value.
type ChatCompletionChunk struct {
	ID      string        `json:"-"`
	Object  string        `json:"-"`
	Created int64         `json:"-"`
	Model   string        `json:"-"`
	Choices []ChunkChoice `json:"-"`
	Usage   *Usage        `json:"-"`
}

// MarshalJSON keeps the choices field an array even when empty: a trailing
// usage-only chunk carries "choices":[] rather than null.
func (c ChatCompletionChunk) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID      string        `json:"id"`
		Object  string        `json:"object"`
		Created int64         `json:"created"`
		Model   string        `json:"model"`
		Choices []ChunkChoice `json:"choices"`
		Usage   *Usage        `json:"usage,omitempty"`
	}
	w := wire(c)
	if w.Choices == nil {
		w.Choices = []ChunkChoice{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON deserializes a chunk from the wire format.
func (c *ChatCompletionChunk) UnmarshalJSON(data []byte) error {
	type wire struct {
		ID      string        `json:"id"`
		Object  string        `json:"object"`
		Created int64         `json:"created"`
		Model   string        `json:"model"`
		Choices []ChunkChoice `json:"choices"`
		Usage   *Usage        `json:"usage,omitempty"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = ChatCompletionChunk(w)
	return nil
}

// ChunkChoice is the delta entry of a streaming chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta holds the incremental payload of one chunk: role
// establishment, a text increment, a reasoning increment, or tool-call
// fragments.
type ChunkDelta struct {
	Role             string          `json:"role,omitempty"`
	Content          *string         `json:"content,omitempty"`
	ReasoningContent *string         `json:"reasoning_content,omitempty"`
	ToolCalls        []ChunkToolCall `json:"tool_calls,omitempty"`
}

// ChunkToolCall is an incremental tool call fragment. The first fragment
// for a call carries ID, Type, and the function name; subsequent fragments
// carry only the index and an arguments increment.
type ChunkToolCall struct {
	Index    int               `json:"index"`
	ID       string            `json:"id,omitempty"`
	Type     string            `json:"type,omitempty"`
	Function ChunkFunctionCall `json:"function"`
}

// ChunkFunctionCall holds incremental function call data.
type ChunkFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// ---------------------------------------------------------------------------
// Model listing
// ---------------------------------------------------------------------------

// Model is one entry of the models listing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ModelList is the body of GET /v1/models.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
