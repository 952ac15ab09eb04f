package config

// RedactedValue is the placeholder for credentials in loggable output.
const RedactedValue = "[REDACTED]"

// Redacted returns a copy of the configuration with credentials masked,
// safe for logs and diagnostics. The original is not mutated.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Redis.Password != "" {
		cp.Redis.Password = RedactedValue
	}
	return &cp
}
