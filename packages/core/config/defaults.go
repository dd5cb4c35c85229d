package config

const (
	// DefaultTimeoutMs bounds a single contract exchange
	DefaultTimeoutMs = 5000
	// DefaultConcurrency runs contracts one after another
	DefaultConcurrency = 1
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		TimeoutMs:   DefaultTimeoutMs,
		Concurrency: DefaultConcurrency,
	}
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = DefaultTimeoutMs
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
}
