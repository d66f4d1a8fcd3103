package anthropic

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/umleitung/pkg/api"
)

// translateResponse converts a complete Messages response into a consumer
// ChatResponse for the requested model. A fresh completion ID and creation
// timestamp are generated per call.
func translateResponse(resp *messagesResponse, requestedModel string) *api.ChatResponse {
	var textParts []string
	var thinkingParts []string
	var toolCalls []api.ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case blockText:
			textParts = append(textParts, block.Text)

		case blockThinking:
			thinkingParts = append(thinkingParts, block.Thinking)

		case blockToolUse:
			toolCalls = append(toolCalls, api.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: api.FunctionCall{
					Name:      block.Name,
					Arguments: encodeToolInput(block.Input),
				},
			})

		default:
			slog.Warn("skipping unknown upstream content block", "type", block.Type)
		}
	}

	msg := api.AssistantMessage{Role: api.RoleAssistant}

	// Tool-call-only turns carry explicit null content so callers can
	// distinguish "no text" from "empty text".
	text := strings.Join(textParts, "")
	if text != "" || len(toolCalls) == 0 {
		msg.Content = &text
	}
	msg.ToolCalls = toolCalls

	if len(thinkingParts) > 0 {
		thinking := strings.Join(thinkingParts, "")
		msg.ReasoningContent = &thinking
	}

	return &api.ChatResponse{
		ID:      api.NewCompletionID(),
		Object:  api.ObjectChatCompletion,
		Created: time.Now().Unix(),
		Model:   requestedModel,
		Choices: []api.Choice{{
			Index:        0,
			Message:      msg,
			FinishReason: mapStopReason(resp.StopReason),
		}},
		Usage: translateUsage(&resp.Usage),
	}
}

// mapStopReason maps an upstream stop reason onto the consumer's finish
// reason vocabulary. Unrecognized reasons default to "stop".
func mapStopReason(reason string) string {
	switch reason {
	case stopEndTurn, stopStopSequence:
		return api.FinishStop
	case stopMaxTokens:
		return api.FinishLength
	case stopToolUse:
		return api.FinishToolCalls
	default:
		return api.FinishStop
	}
}

// translateUsage converts upstream token accounting. The cache-detail
// sub-field appears only when the upstream reported cache activity.
func translateUsage(u *usage) *api.Usage {
	out := &api.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.InputTokens + u.OutputTokens,
	}
	if u.CacheReadInputTokens > 0 || u.CacheCreationInputTokens > 0 {
		out.PromptTokensDetails = &api.PromptTokensDetails{
			CachedTokens: u.CacheReadInputTokens,
		}
	}
	return out
}

// encodeToolInput re-serializes structured tool input to the JSON argument
// string the consumer schema expects.
func encodeToolInput(input json.RawMessage) string {
	if len(input) == 0 {
		return "{}"
	}
	return string(input)
}
