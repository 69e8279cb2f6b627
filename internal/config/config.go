package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel  string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log-format" env:"LOG_FORMAT" env-default:"json"`
	HTTP      HTTP   `yaml:"http"`
	Match     Match  `yaml:"match"`
}

type HTTP struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	SSEHeartbeat    time.Duration `yaml:"sse-heartbeat" env:"SSE_HEARTBEAT" env-default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// Match tunes the match service. Empty player defaults keep the built-in names.
type Match struct {
	Player1Default   string `yaml:"player1-default" env:"PLAYER1_DEFAULT"`
	Player2Default   string `yaml:"player2-default" env:"PLAYER2_DEFAULT"`
	SubscriberBuffer int    `yaml:"subscriber-buffer" env:"SUBSCRIBER_BUFFER" env-default:"1"`
}

// Load reads the YAML file at path, overlaid by environment variables.
// An empty path reads the environment only.
func Load(path string) (*Config, error) {
	conf := &Config{}

	var err error
	if path == "" {
		err = cleanenv.ReadEnv(conf)
	} else {
		err = cleanenv.ReadConfig(path, conf)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load config: %w", err)
	}

	if conf.Match.SubscriberBuffer < 1 {
		conf.Match.SubscriberBuffer = 1
	}
	return conf, nil
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	conf, err := Load(path)
	if err != nil {
		panic(err)
	}
	return conf
}
