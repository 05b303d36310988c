package config

// Allocation credits an account at genesis.
type Allocation struct {
	Address string `toml:"Address"`
	Balance uint64 `toml:"Balance"`
}

// Auth configures the bearer tokens accepted for admin RPC methods.
type Auth struct {
	// JWTSecretEnv names the environment variable holding the HMAC secret.
	JWTSecretEnv string `toml:"JWTSecretEnv"`
	Issuer       string `toml:"Issuer"`
	Audience     string `toml:"Audience"`
}

// RateLimit bounds per-client RPC throughput.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// Indexer controls the sqlite event projection.
type Indexer struct {
	Enabled bool   `toml:"Enabled"`
	Path    string `toml:"Path"`
}

// Telemetry mirrors the OTLP exporter settings.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
	Headers  string `toml:"Headers"`
}

// Logging selects the level and optional rotated log file.
type Logging struct {
	Level string `toml:"Level"`
	File  string `toml:"File"`
}

type Pauses struct {
	Campaign bool `toml:"Campaign"`
}

// Modules lists the paused module names.
func (p Pauses) Modules() []string {
	var out []string
	if p.Campaign {
		out = append(out, "campaign")
	}
	return out
}
