// Command mock-upstream runs a deterministic Anthropic-style Messages
// server for conformance testing. It returns predictable responses based
// on request content analysis so the gateway's translation paths can be
// exercised end to end without a real backend.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", handleMessages)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock upstream starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock upstream failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock upstream shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type messagesRequest struct {
	Model     string        `json:"model"`
	System    string        `json:"system,omitempty"`
	Messages  []inMessage   `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
	Tools     []any         `json:"tools,omitempty"`
	Stream    bool          `json:"stream"`
	Thinking  *thinkingConf `json:"thinking,omitempty"`
}

type inMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type thinkingConf struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

// --- Response types ---

type messagesResponse struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Role       string  `json:"role"`
	Model      string  `json:"model"`
	Content    []block `json:"content"`
	StopReason string  `json:"stop_reason"`
	Usage      usage   `json:"usage"`
}

type block struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	Thinking string         `json:"thinking,omitempty"`
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
}

type usage struct {
	InputTokens          int `json:"input_tokens"`
	OutputTokens         int `json:"output_tokens"`
	CacheReadInputTokens int `json:"cache_read_input_tokens,omitempty"`
}

// --- Handler ---

func handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("x-api-key") == "invalid" {
		writeError(w, http.StatusUnauthorized, "authentication_error", "invalid x-api-key")
		return
	}

	var req messagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body")
		return
	}

	if req.Stream {
		handleStreaming(w, &req)
		return
	}

	resp := classifyAndRespond(&req)
	resp.Model = req.Model

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func classifyAndRespond(req *messagesRequest) messagesResponse {
	if len(req.Tools) > 0 {
		return toolUseResponse()
	}
	if req.Thinking != nil || strings.Contains(req.Model, "thinking") {
		return thinkingResponse()
	}
	if req.System != "" {
		return textResponse("Ahoy there, matey! Welcome aboard!")
	}

	text := "Hello, nice day!"
	if strings.Contains(strings.ToLower(lastUserText(req)), "count from 1 to 5") {
		text = "1, 2, 3, 4, 5"
	}
	return textResponse(text)
}

func textResponse(text string) messagesResponse {
	return messagesResponse{
		ID:         "msg_mock_text",
		Type:       "message",
		Role:       "assistant",
		Content:    []block{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      usage{InputTokens: 10, OutputTokens: 5},
	}
}

func thinkingResponse() messagesResponse {
	return messagesResponse{
		ID:   "msg_mock_thinking",
		Type: "message",
		Role: "assistant",
		Content: []block{
			{Type: "thinking", Thinking: "The user wants a short answer."},
			{Type: "text", Text: "The answer is 42."},
		},
		StopReason: "end_turn",
		Usage:      usage{InputTokens: 12, OutputTokens: 20},
	}
}

func toolUseResponse() messagesResponse {
	return messagesResponse{
		ID:   "msg_mock_tool",
		Type: "message",
		Role: "assistant",
		Content: []block{
			{
				Type: "tool_use",
				ID:   "toolu_mock_1",
				Name: "get_weather",
				Input: map[string]any{
					"location": "San Francisco",
					"unit":     "celsius",
				},
			},
		},
		StopReason: "tool_use",
		Usage:      usage{InputTokens: 20, OutputTokens: 15},
	}
}

// --- Streaming ---

func handleStreaming(w http.ResponseWriter, req *messagesRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(eventType string, payload map[string]any) {
		data, _ := json.Marshal(payload)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
		flusher.Flush()
	}

	emit("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":    "msg_mock_stream",
			"type":  "message",
			"role":  "assistant",
			"model": req.Model,
			"usage": map[string]any{"input_tokens": 10, "output_tokens": 0},
		},
	})
	emit("ping", map[string]any{"type": "ping"})

	outputTokens := 0
	if len(req.Tools) > 0 {
		emit("content_block_start", map[string]any{
			"type":  "content_block_start",
			"index": 0,
			"content_block": map[string]any{
				"type": "tool_use",
				"id":   "toolu_mock_1",
				"name": "get_weather",
			},
		})
		for _, frag := range []string{`{"location":`, `"San Francisco",`, `"unit":"celsius"}`} {
			emit("content_block_delta", map[string]any{
				"type":  "content_block_delta",
				"index": 0,
				"delta": map[string]any{"type": "input_json_delta", "partial_json": frag},
			})
			outputTokens++
		}
		emit("content_block_stop", map[string]any{"type": "content_block_stop", "index": 0})
		finishStream(emit, "tool_use", outputTokens)
		return
	}

	tokens := []string{"Hello", ", ", "nice", " ", "day", "!"}
	if strings.Contains(strings.ToLower(lastUserText(req)), "count from 1 to 5") {
		tokens = []string{"1", ", ", "2", ", ", "3", ", ", "4", ", ", "5"}
	}

	emit("content_block_start", map[string]any{
		"type":          "content_block_start",
		"index":         0,
		"content_block": map[string]any{"type": "text", "text": ""},
	})
	for _, token := range tokens {
		emit("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": token},
		})
		outputTokens++
	}
	emit("content_block_stop", map[string]any{"type": "content_block_stop", "index": 0})
	finishStream(emit, "end_turn", outputTokens)
}

func finishStream(emit func(string, map[string]any), stopReason string, outputTokens int) {
	emit("message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": stopReason},
		"usage": map[string]any{"input_tokens": 10, "output_tokens": outputTokens},
	})
	emit("message_stop", map[string]any{"type": "message_stop"})
}

// --- Helpers ---

func lastUserText(req *messagesRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != "user" {
			continue
		}
		if s, ok := req.Messages[i].Content.(string); ok {
			return s
		}
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"type": "error",
		"error": map[string]any{
			"type":    errType,
			"message": message,
		},
	})
}

// --- Models endpoint ---

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"data": []map[string]any{
			{"id": "mock-model", "type": "model", "display_name": "Mock Model", "created_at": "2025-01-01T00:00:00Z"},
			{"id": "mock-model-thinking", "type": "model", "display_name": "Mock Thinking Model", "created_at": "2025-01-01T00:00:00Z"},
		},
		"has_more": false,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
