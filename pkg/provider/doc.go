// Package provider defines the upstream backend abstraction for the
// umleitung gateway. A Provider accepts consumer-schema requests and
// returns consumer-schema responses or chunk streams; all protocol
// translation happens inside the adapter (see the anthropic subpackage).
package provider
