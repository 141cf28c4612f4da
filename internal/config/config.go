package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		SessionTTL string `yaml:"sessionTtl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Riot struct {
		APIKey        string `yaml:"apiKey"`
		AccountRegion string `yaml:"accountRegion"`
		MatchCount    int    `yaml:"matchCount"`
		Timeout       string `yaml:"timeout"`
	} `yaml:"riot"`
	Game  GameConfig `yaml:"game"`
	Cache struct {
		TTL string `yaml:"ttl"`
	} `yaml:"cache"`
}

// GameConfig holds round timing and scoring. Zero values fall back to the service defaults.
type GameConfig struct {
	MaxRounds        int    `yaml:"maxRounds"`
	RoundSeconds     int    `yaml:"roundSeconds"`
	TickInterval     string `yaml:"tickInterval"`
	InterRoundDelay  string `yaml:"interRoundDelay"`
	PointsPerCorrect int    `yaml:"pointsPerCorrect"`
	MasteryOptions   int    `yaml:"masteryOptions"`
	StatsFreshness   string `yaml:"statsFreshness"`
	Seed             int64  `yaml:"seed"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file is not an error; defaults and the environment are used instead.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RIOT_API_KEY"); v != "" {
		cfg.Riot.APIKey = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
