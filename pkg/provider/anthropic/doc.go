// Package anthropic implements provider.Provider for Anthropic-style
// Messages API backends.
//
// The adapter contains the gateway's protocol core:
//   - translate.go maps a consumer ChatRequest to a Messages request
//   - response.go maps a complete Messages response back
//   - stream.go decodes Messages SSE events and reconstructs
//     consumer-schema chunks through a per-exchange stream state
//   - errors.go maps upstream failures to the consumer error envelope
//
// All translation is pure; the only I/O lives in anthropic.go.
package anthropic
