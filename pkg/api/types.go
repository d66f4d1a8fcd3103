package api

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Request types
// ---------------------------------------------------------------------------

// ChatRequest is the request body for POST /v1/chat/completions.
//
// Parameters the upstream protocol has no equivalent for (frequency and
// presence penalties, n, seed, logprobs, user) are accepted here so that
// standard clients keep working, but they are dropped during translation
// and never forwarded.
type ChatRequest struct {
	Model               string          `json:"model"`
	Messages            []ChatMessage   `json:"messages"`
	MaxTokens           *int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
	Temperature         *float64        `json:"temperature,omitempty"`
	TopP                *float64        `json:"top_p,omitempty"`
	Stop                *StopSequences  `json:"stop,omitempty"`
	Tools               []Tool          `json:"tools,omitempty"`
	ToolChoice          *ToolChoice     `json:"tool_choice,omitempty"`
	Stream              bool            `json:"stream,omitempty"`
	StreamOptions       *StreamOptions  `json:"stream_options,omitempty"`
	FrequencyPenalty    *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty     *float64        `json:"presence_penalty,omitempty"`
	N                   *int            `json:"n,omitempty"`
	Seed                *int            `json:"seed,omitempty"`
	Logprobs            *bool           `json:"logprobs,omitempty"`
	TopLogprobs         *int            `json:"top_logprobs,omitempty"`
	User                string          `json:"user,omitempty"`
	ResponseFormat      json.RawMessage `json:"response_format,omitempty"`
}

// StreamOptions controls streaming behavior.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// ChatMessage represents one message in the conversation.
//
// Content is either a plain string or an ordered list of typed parts;
// assistant messages may additionally carry tool calls (new-style list or
// the legacy single function_call field), and tool/function messages carry
// the correlation fields for the invocation they answer.
type ChatMessage struct {
	Role             string          `json:"role"`
	Content          *MessageContent `json:"content,omitempty"`
	ToolCalls        []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID       string          `json:"tool_call_id,omitempty"`
	Name             string          `json:"name,omitempty"`
	FunctionCall     *FunctionCall   `json:"function_call,omitempty"`
	ReasoningContent *string         `json:"reasoning_content,omitempty"`
}

// MessageContent is the string-or-parts union used by ChatMessage.Content.
// Exactly one of Text/Parts is meaningful: IsParts distinguishes an empty
// string from an empty part list.
type MessageContent struct {
	Text    string        `json:"-"`
	Parts   []ContentPart `json:"-"`
	IsParts bool          `json:"-"`
}

// Str wraps a plain string as message content.
func Str(s string) *MessageContent {
	return &MessageContent{Text: s}
}

// MarshalJSON serializes the content as either a JSON string or a part array.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsParts {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON deserializes either a JSON string or a part array.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.Parts = nil
		c.IsParts = false
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("content must be a string or an array of parts: %w", err)
	}
	c.Text = ""
	c.Parts = parts
	c.IsParts = true
	return nil
}

// PlainText flattens the content to a single string: the text itself for
// string content, or the concatenation of all text parts otherwise.
func (c *MessageContent) PlainText() string {
	if c == nil {
		return ""
	}
	if !c.IsParts {
		return c.Text
	}
	var out string
	for _, p := range c.Parts {
		if p.Type == ContentPartText {
			out += p.Text
		}
	}
	return out
}

// Content part types.
const (
	ContentPartText     = "text"
	ContentPartImageURL = "image_url"
)

// ContentPart is a single typed unit inside multi-part message content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an image reference: a remote URL or a
// data:<mime>;base64,<payload> URI.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ToolCall is a model-issued tool invocation on an assistant message.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall holds a function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool describes a tool available to the model. Both the typed shape
// ({type:"function", function:{...}}) and the legacy bare shape
// ({name, description, parameters} at the top level) are accepted.
type Tool struct {
	Type     string       `json:"type,omitempty"`
	Function *FunctionDef `json:"function,omitempty"`

	// Legacy bare-function fields.
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Def resolves the typed/legacy dual shape into a single FunctionDef.
func (t Tool) Def() FunctionDef {
	if t.Function != nil {
		return *t.Function
	}
	return FunctionDef{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}

// FunctionDef is a function definition for a tool.
type FunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolChoice represents a tool selection strategy. It can be a simple string
// value ("auto", "required", "none") or a structured function selection.
type ToolChoice struct {
	String   string              `json:"-"`
	Function *ToolChoiceFunction `json:"-"`
}

// ToolChoiceFunction selects a particular function by name.
type ToolChoiceFunction struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

// MarshalJSON serializes ToolChoice as either a JSON string or a JSON object.
func (tc ToolChoice) MarshalJSON() ([]byte, error) {
	if tc.String != "" {
		return json.Marshal(tc.String)
	}
	if tc.Function != nil {
		return json.Marshal(tc.Function)
	}
	return nil, fmt.Errorf("ToolChoice has neither string value nor function")
}

// UnmarshalJSON deserializes ToolChoice from either a JSON string or an object.
func (tc *ToolChoice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		tc.String = s
		tc.Function = nil
		return nil
	}

	var f ToolChoiceFunction
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("tool_choice must be a string or object: %w", err)
	}
	tc.String = ""
	tc.Function = &f
	return nil
}

// StopSequences is the string-or-array union used by ChatRequest.Stop.
// A single string is normalized to a one-element sequence.
type StopSequences struct {
	Sequences []string `json:"-"`
}

// MarshalJSON serializes a one-element sequence back to a bare string.
func (s StopSequences) MarshalJSON() ([]byte, error) {
	if len(s.Sequences) == 1 {
		return json.Marshal(s.Sequences[0])
	}
	return json.Marshal(s.Sequences)
}

// UnmarshalJSON deserializes either a JSON string or a string array.
func (s *StopSequences) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		s.Sequences = []string{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("stop must be a string or an array of strings: %w", err)
	}
	s.Sequences = list
	return nil
}

// Message roles accepted on the consumer side.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleFunction  = "function"
)
