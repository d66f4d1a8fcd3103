package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/umleitung/pkg/api"
	"github.com/rhuss/umleitung/pkg/debug"
	"github.com/rhuss/umleitung/pkg/provider"
)

// streamState carries the mutable per-exchange translation state. Exactly
// one instance exists per streaming exchange; it is owned by the goroutine
// driving that exchange and discarded when the stream closes.
type streamState struct {
	// id and created are generated once, on the first event processed,
	// and shared by every chunk of the exchange.
	id      string
	created int64

	// nextToolIndex allocates consumer-side tool call indices in order of
	// upstream block starts.
	nextToolIndex int

	// currentToolIndex/currentToolID identify the tool invocation whose
	// argument text is currently streaming; -1 means none is open.
	currentToolIndex int
	currentToolID    string

	// lastUsage accumulates the most recent usage totals seen.
	lastUsage usage
}

// newStreamState returns a fresh state with no tool call open.
func newStreamState() *streamState {
	return &streamState{currentToolIndex: -1}
}

// translateEvent converts one decoded upstream event into zero or more
// consumer chunks, threading st through the exchange. Chunks are emitted
// in upstream event order; the translator never buffers across events or
// looks ahead.
func translateEvent(ev *streamEvent, requestedModel string, st *streamState) []api.ChatCompletionChunk {
	if st.id == "" {
		st.id = api.NewCompletionID()
		st.created = time.Now().Unix()
	}

	switch ev.Type {
	case eventMessageStart:
		if ev.Message != nil {
			st.mergeUsage(&ev.Message.Usage)
		}
		// Establish the assistant role for the whole exchange exactly once.
		empty := ""
		return []api.ChatCompletionChunk{st.chunk(requestedModel, api.ChunkDelta{
			Role:    api.RoleAssistant,
			Content: &empty,
		}, nil)}

	case eventContentBlockStart:
		if ev.ContentBlock == nil {
			return nil
		}
		switch ev.ContentBlock.Type {
		case blockToolUse:
			index := st.nextToolIndex
			st.nextToolIndex++
			st.currentToolIndex = index
			st.currentToolID = ev.ContentBlock.ID
			if st.currentToolID == "" {
				st.currentToolID = api.NewToolCallID()
			}
			return []api.ChatCompletionChunk{st.chunk(requestedModel, api.ChunkDelta{
				ToolCalls: []api.ChunkToolCall{{
					Index: index,
					ID:    st.currentToolID,
					Type:  "function",
					Function: api.ChunkFunctionCall{
						Name:      ev.ContentBlock.Name,
						Arguments: "",
					},
				}},
			}, nil)}

		case blockText, blockThinking:
			// Delta events carry all needed data; nothing to emit here.
			return nil

		default:
			slog.Warn("ignoring unknown upstream block start", "type", ev.ContentBlock.Type)
			return nil
		}

	case eventContentBlockDelta:
		if ev.Delta == nil {
			return nil
		}
		switch ev.Delta.Type {
		case deltaText:
			text := ev.Delta.Text
			return []api.ChatCompletionChunk{st.chunk(requestedModel, api.ChunkDelta{
				Content: &text,
			}, nil)}

		case deltaThinking:
			thinking := ev.Delta.Thinking
			return []api.ChatCompletionChunk{st.chunk(requestedModel, api.ChunkDelta{
				ReasoningContent: &thinking,
			}, nil)}

		case deltaInputJSON:
			if st.currentToolIndex < 0 {
				// Argument fragment with no open tool call: malformed
				// upstream ordering, drop rather than fail the stream.
				slog.Debug("dropping orphan tool argument fragment",
					"fragment", debug.Clip(ev.Delta.PartialJSON, 80))
				return nil
			}
			return []api.ChatCompletionChunk{st.chunk(requestedModel, api.ChunkDelta{
				ToolCalls: []api.ChunkToolCall{{
					Index:    st.currentToolIndex,
					Function: api.ChunkFunctionCall{Arguments: ev.Delta.PartialJSON},
				}},
			}, nil)}

		default:
			slog.Debug("ignoring unknown upstream delta", "type", ev.Delta.Type)
			return nil
		}

	case eventContentBlockStop:
		st.currentToolIndex = -1
		st.currentToolID = ""
		return nil

	case eventMessageDelta:
		var chunks []api.ChatCompletionChunk
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			reason := mapStopReason(ev.Delta.StopReason)
			chunks = append(chunks, st.chunk(requestedModel, api.ChunkDelta{}, &reason))
		}
		if ev.Usage != nil {
			st.mergeUsage(ev.Usage)
			// Usage travels alone: an empty choice list and nothing else.
			c := api.ChatCompletionChunk{
				ID:      st.id,
				Object:  api.ObjectChatCompletionChunk,
				Created: st.created,
				Model:   requestedModel,
				Choices: []api.ChunkChoice{},
				Usage:   translateUsage(&st.lastUsage),
			}
			chunks = append(chunks, c)
		}
		return chunks

	case eventMessageStop, eventPing:
		// The transport owns the terminal out-of-band marker.
		return nil

	case eventError:
		if ev.Error != nil {
			slog.Error("upstream stream error event",
				"error_type", ev.Error.Type,
				"message", ev.Error.Message,
			)
		}
		return nil

	default:
		slog.Debug("ignoring unknown upstream event", "type", ev.Type)
		return nil
	}
}

// chunk builds a single-choice chunk sharing the stream's identity.
func (st *streamState) chunk(model string, delta api.ChunkDelta, finish *string) api.ChatCompletionChunk {
	return api.ChatCompletionChunk{
		ID:      st.id,
		Object:  api.ObjectChatCompletionChunk,
		Created: st.created,
		Model:   model,
		Choices: []api.ChunkChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finish,
		}},
	}
}

// mergeUsage folds newer upstream usage totals into the state, keeping
// previously seen non-zero counters.
func (st *streamState) mergeUsage(u *usage) {
	if u.InputTokens > 0 {
		st.lastUsage.InputTokens = u.InputTokens
	}
	if u.OutputTokens > 0 {
		st.lastUsage.OutputTokens = u.OutputTokens
	}
	if u.CacheReadInputTokens > 0 {
		st.lastUsage.CacheReadInputTokens = u.CacheReadInputTokens
	}
	if u.CacheCreationInputTokens > 0 {
		st.lastUsage.CacheCreationInputTokens = u.CacheCreationInputTokens
	}
}

// parseSSEStream reads Messages API SSE events from the given reader,
// feeds each decoded event through the stream translator, and sends the
// resulting chunks on ch in arrival order. The channel is NOT closed by
// this function; the caller is responsible for closing it.
//
// SSE format expected:
//
//	event: content_block_delta\n
//	data: {"type":"content_block_delta",...}\n
//	\n
//
// The event: line is informational; the data payload carries its own type
// discriminator. Malformed payloads are logged and skipped. Context
// cancellation stops reading immediately.
func parseSSEStream(ctx context.Context, body io.Reader, requestedModel string, ch chan<- provider.Event) {
	st := newStreamState()

	scanner := bufio.NewScanner(body)
	// Tool argument payloads can exceed the default scanner buffer.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// Blank lines delimit frames; "event:" lines and comments carry no
		// payload of their own.
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			slog.Warn("skipping malformed SSE event",
				"error", err.Error(),
				"data", debug.Clip(payload, 200),
			)
			continue
		}

		debug.Log(debug.Streaming, "upstream event", "type", ev.Type)
		debug.Wire(debug.Streaming, []byte(payload))

		if ev.Type == eventMessageStop {
			return
		}

		for _, chunk := range translateEvent(&ev, requestedModel, st) {
			c := chunk
			ch <- provider.Event{Chunk: &c}
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		ch <- provider.Event{
			Err: api.NewServerError("SSE stream read error: " + err.Error()),
		}
	}
}
