// Package debug gates verbose wire-level logging behind named facets so
// a single exchange can be inspected without flooding the log.
//
// UMLEITUNG_DEBUG selects facets (comma-separated, "all" for every
// facet) and UMLEITUNG_LOG_LEVEL sets the slog level, including the
// extra TRACE level at which Wire dumps full payloads. Environment
// settings win over the config file.
package debug

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Facet names one aspect of gateway traffic that can be debugged
// independently.
type Facet string

const (
	// Upstream covers requests to and responses from the provider.
	Upstream Facet = "upstream"

	// Translate covers request and response translation decisions.
	Translate Facet = "translate"

	// Streaming covers SSE relay and chunk assembly.
	Streaming Facet = "streaming"

	// Usage covers accounting writes.
	Usage Facet = "usage"
)

// LevelTrace sits below slog.LevelDebug. At TRACE, Wire emits full
// untruncated payloads.
const LevelTrace = slog.LevelDebug - 4

// active is the enabled facet set. Written once by Init, read-only
// afterwards.
var active map[Facet]bool

func init() {
	active = facetSet(os.Getenv("UMLEITUNG_DEBUG"))
}

// Init applies the debug configuration and installs the default slog
// handler at the selected level. Config values are used only where the
// corresponding environment variable is unset.
func Init(configFacets, configLevel string) {
	facets := os.Getenv("UMLEITUNG_DEBUG")
	if facets == "" {
		facets = configFacets
	}
	active = facetSet(facets)

	level := os.Getenv("UMLEITUNG_LOG_LEVEL")
	if level == "" {
		level = configLevel
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// On reports whether the facet is enabled.
func On(f Facet) bool {
	return active["all"] || active[f]
}

// Log emits a debug record for the facet. Disabled facets cost one map
// lookup.
func Log(f Facet, msg string, args ...any) {
	if !On(f) {
		return
	}
	slog.Debug(msg, append([]any{"facet", string(f)}, args...)...)
}

// Wire dumps a raw payload to stderr, unformatted so it can be replayed
// with curl. Emitted only when the facet is on and the level is TRACE.
func Wire(f Facet, payload []byte) {
	if !On(f) || !slog.Default().Enabled(nil, LevelTrace) {
		return
	}
	fmt.Fprintln(os.Stderr, string(payload))
}

// ParseLevel maps a level name to its slog.Level. Unknown names and the
// empty string mean INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Clip shortens s to at most n characters for log attributes, marking
// the cut with an ellipsis.
func Clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func facetSet(s string) map[Facet]bool {
	set := make(map[Facet]bool)
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(strings.ToLower(name)); name != "" {
			set[Facet(name)] = true
		}
	}
	return set
}
