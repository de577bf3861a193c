package app

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Addr         string   `envconfig:"ADDR" default:":8080"`
	TickRate     int      `envconfig:"TICK_RATE" default:"20"`
	RoomCapacity int      `envconfig:"ROOM_CAPACITY" default:"6"`
	DefaultRooms []string `envconfig:"DEFAULT_ROOMS" default:"hawkins-1"`
	LogFile      string   `envconfig:"LOG_FILE" default:"server.log"`
	Debug        bool     `envconfig:"DEBUG" default:"false"`
}

// LoadConfig processes the STRANGERTHINGS_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("strangerthings", &cfg); err != nil {
		return Config{}, fmt.Errorf("process config: %w", err)
	}
	if cfg.TickRate <= 0 {
		return Config{}, fmt.Errorf("tick rate must be positive, got %d", cfg.TickRate)
	}
	return cfg, nil
}
