package test

import (
	"github.com/kelseyhightower/envconfig"
)

// Config tunes the integration harness from the environment so the
// same scenarios can run against slower CI machines.
type Config struct {
	BufferSize           int    `envconfig:"IT_BUFFER_SIZE" default:"256"`
	ConnectionBufferSize int    `envconfig:"IT_CONNECTION_BUFFER_SIZE" default:"64"`
	AuthSecret           string `envconfig:"IT_AUTH_SECRET" default:"integration-secret"`
	FrameTimeoutMs       int    `envconfig:"IT_FRAME_TIMEOUT_MS" default:"2000"`
	// IT_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"IT_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
