package validatecompliance

import "time"

type Config struct {
	DefaultRuleSetID string
	Timeout          time.Duration
}

func LoadConfig() *Config {
	return &Config{
		DefaultRuleSetID: "default",
		Timeout:          30 * time.Second,
	}
}
