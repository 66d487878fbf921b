package analyzegrantrequirements

import "time"

type Config struct {
	MinTextLength int
	Timeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MinTextLength: 50,
		Timeout:       30 * time.Second,
	}
}
