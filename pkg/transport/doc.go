// Package transport defines the handler contracts and cross-cutting
// middleware between the HTTP layer and the gateway: the ChatCompleter
// interface, the streaming/non-streaming ResponseWriter abstraction,
// request-ID propagation, logging, panic recovery, the in-flight stream
// registry, the time-boxed models-list cache, and error-to-HTTP mapping.
package transport
