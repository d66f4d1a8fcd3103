package gateway

import "github.com/rhuss/umleitung/pkg/api"

// Config holds configuration for the gateway core.
type Config struct {
	// DefaultModel is used when the request omits the model field.
	// Empty string means a model is always required in the request.
	DefaultModel string

	// Validation bounds applied to incoming requests. Zero values fall
	// back to api.DefaultValidationConfig.
	Validation api.ValidationConfig

	// RecordUsage enables writing accounting records to the usage store
	// after each exchange. Has no effect when the store is nil.
	RecordUsage bool

	// Metrics enables Prometheus counters for upstream exchanges.
	Metrics bool
}

// validation returns the effective validation config.
func (c Config) validation() api.ValidationConfig {
	v := c.Validation
	def := api.DefaultValidationConfig()
	if v.MaxMessages <= 0 {
		v.MaxMessages = def.MaxMessages
	}
	if v.MaxTools <= 0 {
		v.MaxTools = def.MaxTools
	}
	return v
}
