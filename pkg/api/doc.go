// Package api defines the consumer-facing protocol types for the umleitung
// gateway: the OpenAI-style Chat Completions request, response, and
// streaming-chunk shapes, the error envelope, ID generation, and request
// validation.
//
// The package has zero external dependencies (Go standard library only) and
// performs no I/O. All types produce JSON compatible with the Chat
// Completions wire format, enabling client library compatibility.
//
// Core types:
//   - [ChatRequest]: Client request for a chat completion
//   - [ChatMessage]: One conversation turn (string or multi-part content)
//   - [ChatResponse]: Complete non-streaming completion
//   - [ChatCompletionChunk]: One streaming delta frame
//   - [APIError]: Structured error rendered as {error:{message,type,param,code}}
package api
