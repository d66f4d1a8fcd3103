package postgres

import "time"

// Config describes the accounting database connection.
type Config struct {
	// DSN is the connection string, e.g.
	// "postgres://gateway:secret@db:5432/umleitung?sslmode=require".
	DSN string

	// MaxConns caps the pool size. Accounting writes are short and
	// bursty; the default of 25 covers a single gateway instance.
	MaxConns int32

	// MinConns keeps idle connections warm between bursts. Default 5.
	MinConns int32

	// MaxConnLifetime recycles connections so database failovers are
	// picked up without a restart. Default 5 minutes.
	MaxConnLifetime time.Duration

	// MigrateOnStart applies pending schema migrations before the store
	// accepts writes.
	MigrateOnStart bool
}

func (c *Config) defaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MinConns == 0 {
		c.MinConns = 5
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = 5 * time.Minute
	}
}
