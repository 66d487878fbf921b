package analyzesuccesspatterns

import "time"

type Config struct {
	MinSampleSize       int
	DefaultCorpusRef    string
	MinMarkerOccurrence int
	Timeout             time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MinSampleSize:       5,
		DefaultCorpusRef:    "pg:application_outcomes",
		MinMarkerOccurrence: 2,
		Timeout:             60 * time.Second,
	}
}
