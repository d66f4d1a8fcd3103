// Package gateway implements the core orchestration logic for umleitung.
// The Gateway struct implements transport.ChatCompleter, bridging incoming
// chat-completion requests to the upstream provider. It validates requests,
// dispatches the streaming or non-streaming path, forwards chunks in
// upstream order, converts mid-stream failures into in-band error frames,
// and records usage accounting after each exchange. Optional capabilities
// (usage store, metrics) use nil-safe composition for graceful degradation.
package gateway
