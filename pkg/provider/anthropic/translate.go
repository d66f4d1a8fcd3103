package anthropic

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rhuss/umleitung/pkg/api"
)

const (
	// defaultMaxTokens is the Messages API token bound applied when the
	// consumer request carries neither max_completion_tokens nor max_tokens.
	defaultMaxTokens = 4096

	// thinkingBudgetCap limits the reasoning budget attached to
	// reasoning-capable model variants.
	thinkingBudgetCap = 16000

	// thinkingModelMarker identifies reasoning-capable model variants by
	// substring match on the model identifier.
	thinkingModelMarker = "thinking"
)

// dataURIPattern splits an inline base64 image URL into media type and payload.
var dataURIPattern = regexp.MustCompile(`^data:([^;]+);base64,(.+)$`)

// translateRequest converts a consumer ChatRequest into a messagesRequest.
//
// The translation is total over well-formed input: messages with
// unrecognized roles are skipped, unparseable tool arguments are wrapped
// rather than rejected, and unsupported sampling parameters are dropped.
// The model identifier is forwarded verbatim.
func translateRequest(req *api.ChatRequest) *messagesRequest {
	mr := &messagesRequest{
		Model:  req.Model,
		TopP:   req.TopP,
		Stream: req.Stream,
	}

	// Partition consumer messages by role. System messages accumulate into
	// the single upstream system string and never become messages.
	var systemParts []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case api.RoleSystem:
			systemParts = append(systemParts, msg.Content.PlainText())

		case api.RoleUser:
			mr.Messages = append(mr.Messages, inputMessage{
				Role:    roleUser,
				Content: translateUserContent(msg.Content),
			})

		case api.RoleAssistant:
			mr.Messages = append(mr.Messages, inputMessage{
				Role:    roleAssistant,
				Content: translateAssistantContent(&msg),
			})

		case api.RoleTool:
			appendToolResult(mr, msg.ToolCallID, msg.Content.PlainText())

		case api.RoleFunction:
			// The legacy role carries no invocation identifier; the tool
			// name is the only available correlation key.
			appendToolResult(mr, msg.Name, msg.Content.PlainText())

		default:
			// Unknown role: skip, never reject the whole request.
		}
	}
	mr.System = strings.Join(systemParts, "\n\n")

	// A request carrying only system messages would translate to an
	// empty messages array, which the upstream rejects. Demote the
	// hoisted system text into a single user turn instead.
	if len(mr.Messages) == 0 && mr.System != "" {
		mr.Messages = append(mr.Messages, inputMessage{Role: roleUser, Content: mr.System})
		mr.System = ""
	}

	// Token bound precedence: max_completion_tokens > max_tokens > default.
	switch {
	case req.MaxCompletionTokens != nil:
		mr.MaxTokens = *req.MaxCompletionTokens
	case req.MaxTokens != nil:
		mr.MaxTokens = *req.MaxTokens
	default:
		mr.MaxTokens = defaultMaxTokens
	}

	// The upstream accepts temperature in [0,1] only.
	if req.Temperature != nil {
		t := *req.Temperature
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
		mr.Temperature = &t
	}

	if req.Stop != nil {
		mr.StopSequences = req.Stop.Sequences
	}

	mr.Tools = translateTools(req.Tools)
	mr.ToolChoice = translateToolChoice(req.ToolChoice)

	// Reasoning-capable variants get a thinking budget of half the token
	// bound, capped.
	if strings.Contains(req.Model, thinkingModelMarker) {
		budget := mr.MaxTokens / 2
		if budget > thinkingBudgetCap {
			budget = thinkingBudgetCap
		}
		mr.Thinking = &thinkingConfig{Type: "enabled", BudgetTokens: budget}
	}

	return mr
}

// translateUserContent converts user message content 1:1. Plain string
// content passes through as a bare string; typed parts become blocks.
func translateUserContent(content *api.MessageContent) any {
	if content == nil {
		return ""
	}
	if !content.IsParts {
		return content.Text
	}

	blocks := make([]inputBlock, 0, len(content.Parts))
	for _, part := range content.Parts {
		switch part.Type {
		case api.ContentPartText:
			blocks = append(blocks, inputBlock{Type: blockText, Text: part.Text})

		case api.ContentPartImageURL:
			if part.ImageURL == nil {
				continue
			}
			blocks = append(blocks, inputBlock{
				Type:   blockImage,
				Source: translateImageSource(part.ImageURL.URL),
			})

		default:
			// Unknown part type: skip.
		}
	}
	return blocks
}

// translateImageSource recognizes inline base64 data URIs and falls back
// to a remote URL source for everything else.
func translateImageSource(url string) *imageSource {
	if m := dataURIPattern.FindStringSubmatch(url); m != nil {
		return &imageSource{Type: "base64", MediaType: m[1], Data: m[2]}
	}
	return &imageSource{Type: "url", URL: url}
}

// translateAssistantContent folds an assistant message into upstream
// content: text parts concatenate into one text block, tool calls (list or
// legacy single field) become tool_use blocks. Exactly one text block with
// no tool_use blocks collapses to a bare string.
func translateAssistantContent(msg *api.ChatMessage) any {
	text := msg.Content.PlainText()

	calls := msg.ToolCalls
	if len(calls) == 0 && msg.FunctionCall != nil {
		calls = []api.ToolCall{{Type: "function", Function: *msg.FunctionCall}}
	}

	if len(calls) == 0 {
		return text
	}

	var blocks []inputBlock
	if text != "" {
		blocks = append(blocks, inputBlock{Type: blockText, Text: text})
	}
	for _, call := range calls {
		id := call.ID
		if id == "" {
			id = api.NewToolCallID()
		}
		blocks = append(blocks, inputBlock{
			Type:  blockToolUse,
			ID:    id,
			Name:  call.Function.Name,
			Input: parseToolArguments(call.Function.Arguments),
		})
	}
	return blocks
}

// parseToolArguments parses a JSON-encoded argument string into structured
// input. Arguments that are not valid JSON are wrapped under a fallback
// key instead of failing the whole request.
func parseToolArguments(arguments string) json.RawMessage {
	if arguments == "" {
		return json.RawMessage(`{}`)
	}
	if json.Valid([]byte(arguments)) {
		return json.RawMessage(arguments)
	}
	wrapped, err := json.Marshal(map[string]string{"_raw": arguments})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return wrapped
}

// appendToolResult places a tool result into the conversation. A
// tool_result block may only live inside a user-role message: it is
// appended to the preceding message when that is user-role, otherwise a
// new synthetic user message is started. It never attaches to an
// assistant message.
func appendToolResult(mr *messagesRequest, toolUseID, content string) {
	result := inputBlock{
		Type:      blockToolResult,
		ToolUseID: toolUseID,
		Content:   content,
	}

	if n := len(mr.Messages); n > 0 && mr.Messages[n-1].Role == roleUser {
		last := &mr.Messages[n-1]
		switch c := last.Content.(type) {
		case []inputBlock:
			last.Content = append(c, result)
		case string:
			blocks := []inputBlock{}
			if c != "" {
				blocks = append(blocks, inputBlock{Type: blockText, Text: c})
			}
			last.Content = append(blocks, result)
		default:
			last.Content = []inputBlock{result}
		}
		return
	}

	mr.Messages = append(mr.Messages, inputMessage{
		Role:    roleUser,
		Content: []inputBlock{result},
	})
}

// translateTools normalizes consumer tool definitions (typed or legacy
// bare shapes) into the upstream format. This is the single adapter for
// tool reshaping; call sites never duplicate it.
func translateTools(tools []api.Tool) []toolDefinition {
	if len(tools) == 0 {
		return nil
	}
	out := make([]toolDefinition, 0, len(tools))
	for _, t := range tools {
		def := t.Def()
		schema := def.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		out = append(out, toolDefinition{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		})
	}
	return out
}

// translateToolChoice maps the consumer tool-choice directive onto the
// upstream vocabulary: none/auto/required become none/auto/any, a named
// function becomes a forced single-tool directive, and anything else
// defaults to auto.
func translateToolChoice(tc *api.ToolChoice) *toolChoice {
	if tc == nil {
		return nil
	}

	if tc.Function != nil {
		if name := tc.Function.Function.Name; name != "" {
			return &toolChoice{Type: "tool", Name: name}
		}
		return &toolChoice{Type: "auto"}
	}

	switch tc.String {
	case "none":
		return &toolChoice{Type: "none"}
	case "auto":
		return &toolChoice{Type: "auto"}
	case "required":
		return &toolChoice{Type: "any"}
	default:
		return &toolChoice{Type: "auto"}
	}
}
