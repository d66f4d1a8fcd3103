// Package storage defines the usage-accounting store contract shared by
// the backend adapters (memory, postgres), plus sentinel errors and
// tenant context helpers.
//
// The gateway records one UsageRecord per completed exchange, carrying
// the token counts reported upstream. Adapters implement UsageStore;
// this package contains only the interface, shared types, and helpers.
package storage
