package flush

import "time"

// Default queue periods. The deliberately coprime data and CDR periods
// keep the two heavier drains from landing on the same tick.
const (
	DefaultDataPeriodSeconds   = 31
	DefaultStatusPeriodSeconds = 3
	DefaultCDRPeriodSeconds    = 15
)

// Config defines the flush engine settings.
type Config struct {
	DataPeriodSeconds   int `json:"data_period_seconds"`
	StatusPeriodSeconds int `json:"status_period_seconds"`
	CDRPeriodSeconds    int `json:"cdr_period_seconds"`

	DisablePushData   bool `json:"disable_push_data"`
	DisablePushStatus bool `json:"disable_push_status"`
	DisableSendCDRs   bool `json:"disable_send_cdrs"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.DataPeriodSeconds <= 0 {
		c.DataPeriodSeconds = DefaultDataPeriodSeconds
	}
	if c.StatusPeriodSeconds <= 0 {
		c.StatusPeriodSeconds = DefaultStatusPeriodSeconds
	}
	if c.CDRPeriodSeconds <= 0 {
		c.CDRPeriodSeconds = DefaultCDRPeriodSeconds
	}
}

func (c Config) dataPeriod() time.Duration {
	return time.Duration(c.DataPeriodSeconds) * time.Second
}

func (c Config) statusPeriod() time.Duration {
	return time.Duration(c.StatusPeriodSeconds) * time.Second
}

func (c Config) cdrPeriod() time.Duration {
	return time.Duration(c.CDRPeriodSeconds) * time.Second
}
