package anthropic

import (
	"context"
	"strings"
	"testing"

	"github.com/rhuss/umleitung/pkg/api"
	"github.com/rhuss/umleitung/pkg/provider"
)

func TestTranslateEvent_MessageStart(t *testing.T) {
	st := newStreamState()
	ev := &streamEvent{
		Type:    eventMessageStart,
		Message: &messagesResponse{Usage: usage{InputTokens: 10}},
	}

	chunks := translateEvent(ev, "m", st)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	c := chunks[0]
	if !strings.HasPrefix(c.ID, "chatcmpl-") {
		t.Errorf("expected chatcmpl- prefix, got %q", c.ID)
	}
	if c.Object != api.ObjectChatCompletionChunk {
		t.Errorf("unexpected object: %q", c.Object)
	}
	if len(c.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(c.Choices))
	}
	delta := c.Choices[0].Delta
	if delta.Role != api.RoleAssistant {
		t.Errorf("expected assistant role, got %q", delta.Role)
	}
	if delta.Content == nil || *delta.Content != "" {
		t.Errorf("expected empty-string content, got %v", delta.Content)
	}
	if st.lastUsage.InputTokens != 10 {
		t.Errorf("expected input tokens recorded, got %d", st.lastUsage.InputTokens)
	}
}

func TestTranslateEvent_StableIdentity(t *testing.T) {
	st := newStreamState()

	first := translateEvent(&streamEvent{Type: eventMessageStart, Message: &messagesResponse{}}, "m", st)
	second := translateEvent(&streamEvent{
		Type:  eventContentBlockDelta,
		Delta: &streamDelta{Type: deltaText, Text: "hi"},
	}, "m", st)

	if first[0].ID != second[0].ID {
		t.Errorf("expected shared id, got %q and %q", first[0].ID, second[0].ID)
	}
	if first[0].Created != second[0].Created {
		t.Errorf("expected shared created, got %d and %d", first[0].Created, second[0].Created)
	}
}

func TestTranslateEvent_TextDelta(t *testing.T) {
	st := newStreamState()
	chunks := translateEvent(&streamEvent{
		Type:  eventContentBlockDelta,
		Delta: &streamDelta{Type: deltaText, Text: "Hello"},
	}, "m", st)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	delta := chunks[0].Choices[0].Delta
	if delta.Content == nil || *delta.Content != "Hello" {
		t.Errorf("unexpected content: %v", delta.Content)
	}
	if delta.Role != "" {
		t.Errorf("expected no role on delta chunk, got %q", delta.Role)
	}
}

func TestTranslateEvent_ThinkingDelta(t *testing.T) {
	st := newStreamState()
	chunks := translateEvent(&streamEvent{
		Type:  eventContentBlockDelta,
		Delta: &streamDelta{Type: deltaThinking, Thinking: "hmm"},
	}, "m", st)

	delta := chunks[0].Choices[0].Delta
	if delta.ReasoningContent == nil || *delta.ReasoningContent != "hmm" {
		t.Errorf("unexpected reasoning delta: %v", delta.ReasoningContent)
	}
	if delta.Content != nil {
		t.Errorf("expected no content on thinking delta, got %q", *delta.Content)
	}
}

func TestTranslateEvent_ToolCallSequence(t *testing.T) {
	st := newStreamState()

	start := translateEvent(&streamEvent{
		Type:         eventContentBlockStart,
		Index:        1,
		ContentBlock: &contentBlock{Type: blockToolUse, ID: "toolu_1", Name: "get_weather"},
	}, "m", st)
	if len(start) != 1 {
		t.Fatalf("expected 1 chunk for block start, got %d", len(start))
	}
	tc := start[0].Choices[0].Delta.ToolCalls[0]
	if tc.Index != 0 || tc.ID != "toolu_1" || tc.Type != "function" || tc.Function.Name != "get_weather" {
		t.Errorf("unexpected first fragment: %+v", tc)
	}
	if tc.Function.Arguments != "" {
		t.Errorf("expected empty arguments on first fragment, got %q", tc.Function.Arguments)
	}

	frag := translateEvent(&streamEvent{
		Type:  eventContentBlockDelta,
		Index: 1,
		Delta: &streamDelta{Type: deltaInputJSON, PartialJSON: `{"city":`},
	}, "m", st)
	tc = frag[0].Choices[0].Delta.ToolCalls[0]
	if tc.Index != 0 || tc.ID != "" || tc.Function.Name != "" {
		t.Errorf("expected bare argument fragment, got %+v", tc)
	}
	if tc.Function.Arguments != `{"city":` {
		t.Errorf("unexpected arguments: %q", tc.Function.Arguments)
	}

	if out := translateEvent(&streamEvent{Type: eventContentBlockStop, Index: 1}, "m", st); out != nil {
		t.Errorf("expected no chunk for block stop, got %v", out)
	}

	// A second tool block gets the next consumer index.
	second := translateEvent(&streamEvent{
		Type:         eventContentBlockStart,
		Index:        2,
		ContentBlock: &contentBlock{Type: blockToolUse, ID: "toolu_2", Name: "other"},
	}, "m", st)
	if got := second[0].Choices[0].Delta.ToolCalls[0].Index; got != 1 {
		t.Errorf("expected tool index 1, got %d", got)
	}
}

func TestTranslateEvent_OrphanInputJSONDropped(t *testing.T) {
	st := newStreamState()
	chunks := translateEvent(&streamEvent{
		Type:  eventContentBlockDelta,
		Delta: &streamDelta{Type: deltaInputJSON, PartialJSON: `{"x":1}`},
	}, "m", st)
	if chunks != nil {
		t.Errorf("expected orphan fragment to be dropped, got %v", chunks)
	}
}

func TestTranslateEvent_MessageDelta(t *testing.T) {
	st := newStreamState()
	translateEvent(&streamEvent{Type: eventMessageStart, Message: &messagesResponse{Usage: usage{InputTokens: 10}}}, "m", st)

	chunks := translateEvent(&streamEvent{
		Type:  eventMessageDelta,
		Delta: &streamDelta{StopReason: stopEndTurn},
		Usage: &usage{OutputTokens: 25},
	}, "m", st)

	if len(chunks) != 2 {
		t.Fatalf("expected finish chunk plus usage chunk, got %d", len(chunks))
	}

	finish := chunks[0]
	if finish.Choices[0].FinishReason == nil || *finish.Choices[0].FinishReason != api.FinishStop {
		t.Errorf("unexpected finish reason: %v", finish.Choices[0].FinishReason)
	}
	if finish.Usage != nil {
		t.Error("finish chunk must not carry usage")
	}

	usageChunk := chunks[1]
	if len(usageChunk.Choices) != 0 {
		t.Errorf("usage chunk must have empty choices, got %d", len(usageChunk.Choices))
	}
	if usageChunk.Usage == nil {
		t.Fatal("expected usage on trailing chunk")
	}
	if usageChunk.Usage.PromptTokens != 10 || usageChunk.Usage.CompletionTokens != 25 || usageChunk.Usage.TotalTokens != 35 {
		t.Errorf("unexpected usage: %+v", usageChunk.Usage)
	}

	body, err := usageChunk.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `"choices":[]`) {
		t.Errorf("expected empty choices array on the wire, got %s", body)
	}
}

func TestTranslateEvent_ToolUseStopReason(t *testing.T) {
	st := newStreamState()
	chunks := translateEvent(&streamEvent{
		Type:  eventMessageDelta,
		Delta: &streamDelta{StopReason: stopToolUse},
	}, "m", st)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if *chunks[0].Choices[0].FinishReason != api.FinishToolCalls {
		t.Errorf("unexpected finish reason: %q", *chunks[0].Choices[0].FinishReason)
	}
}

func TestTranslateEvent_PingAndStopProduceNothing(t *testing.T) {
	st := newStreamState()
	for _, typ := range []string{eventPing, eventMessageStop, eventError} {
		if out := translateEvent(&streamEvent{Type: typ}, "m", st); out != nil {
			t.Errorf("expected no chunks for %s, got %v", typ, out)
		}
	}
}

func TestParseSSEStream_FullExchange(t *testing.T) {
	raw := strings.Join([]string{
		"event: message_start",
		`data: {"type":"message_start","message":{"id":"msg_1","usage":{"input_tokens":10,"output_tokens":0}}}`,
		"",
		"event: ping",
		`data: {"type":"ping"}`,
		"",
		"event: content_block_start",
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		"",
		"event: content_block_delta",
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
		"",
		"event: content_block_delta",
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" there"}}`,
		"",
		"event: content_block_stop",
		`data: {"type":"content_block_stop","index":0}`,
		"",
		"event: message_delta",
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":12}}`,
		"",
		"event: message_stop",
		`data: {"type":"message_stop"}`,
		"",
	}, "\n")

	ch := make(chan provider.Event, 32)
	parseSSEStream(context.Background(), strings.NewReader(raw), "m", ch)
	close(ch)

	var chunks []*api.ChatCompletionChunk
	for ev := range ch {
		if ev.Err != nil {
			t.Fatalf("unexpected error event: %v", ev.Err)
		}
		chunks = append(chunks, ev.Chunk)
	}

	// role chunk, two text deltas, finish chunk, usage chunk.
	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(chunks))
	}

	if chunks[0].Choices[0].Delta.Role != api.RoleAssistant {
		t.Errorf("expected role chunk first, got %+v", chunks[0].Choices[0].Delta)
	}
	if *chunks[1].Choices[0].Delta.Content != "Hello" || *chunks[2].Choices[0].Delta.Content != " there" {
		t.Error("unexpected text deltas")
	}
	if *chunks[3].Choices[0].FinishReason != api.FinishStop {
		t.Errorf("unexpected finish reason: %q", *chunks[3].Choices[0].FinishReason)
	}
	if chunks[4].Usage == nil || chunks[4].Usage.TotalTokens != 22 {
		t.Errorf("unexpected trailing usage: %+v", chunks[4].Usage)
	}

	for i := 1; i < len(chunks); i++ {
		if chunks[i].ID != chunks[0].ID {
			t.Errorf("chunk %d has different id %q", i, chunks[i].ID)
		}
	}
}

func TestParseSSEStream_MalformedDataSkipped(t *testing.T) {
	raw := strings.Join([]string{
		`data: {not json}`,
		"",
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"ok"}}`,
		"",
	}, "\n")

	ch := make(chan provider.Event, 8)
	parseSSEStream(context.Background(), strings.NewReader(raw), "m", ch)
	close(ch)

	var n int
	for ev := range ch {
		if ev.Err != nil {
			t.Fatalf("unexpected error: %v", ev.Err)
		}
		n++
	}
	if n != 1 {
		t.Errorf("expected the malformed frame to be skipped, got %d chunks", n)
	}
}

func TestParseSSEStream_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	raw := `data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"x"}}` + "\n\n"
	ch := make(chan provider.Event, 8)
	parseSSEStream(ctx, strings.NewReader(raw), "m", ch)
	close(ch)

	if _, ok := <-ch; ok {
		t.Error("expected no events after cancellation")
	}
}
