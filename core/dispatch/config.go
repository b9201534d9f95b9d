package dispatch

import "time"

// DefaultRequestTimeoutSeconds caps a remote attempt when the request
// itself carries no timeout.
const DefaultRequestTimeoutSeconds = 30

// Config defines the dispatcher settings.
type Config struct {
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`

	// DisableAuthentication strips the caller identity from every request
	// offered to the remote operator. Local handling keeps the identity;
	// it ends up in the reservation, the session and the CDR.
	DisableAuthentication bool `json:"disable_authentication"`

	// LocalOnlyEVSEs, LocalOnlyStations and LocalOnlyPools list targets
	// that are never offered to the remote operator. Each set applies only
	// to commands addressed at its own granularity.
	LocalOnlyEVSEs    []string `json:"local_only_evses"`
	LocalOnlyStations []string `json:"local_only_stations"`
	LocalOnlyPools    []string `json:"local_only_pools"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
}

func (c Config) requestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return DefaultRequestTimeoutSeconds * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
