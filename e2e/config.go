package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// WHIRL_ADDR is host:port of a running server; the suite is skipped without it
	ServerAddr string `envconfig:"WHIRL_ADDR"`
	// WHIRL_HEALTH_ADDR is the gRPC health endpoint, probed only when set
	HealthAddr string `envconfig:"WHIRL_HEALTH_ADDR"`
	// E2E_DEBUG_JSON dumps every frame exchanged over the socket
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
