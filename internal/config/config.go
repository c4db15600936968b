package config

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config interface {
	EnvConfig
	StorageConfig
	SessionConfig
}

type EnvConfig interface {
	GetAPIBaseURL() string
	GetAppName() string
	GetEnv() string
	GetPushToken() string
	GetMetricsAddr() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Storage
	Session
}

// New returns the environment backed configuration. A .env file in the
// working directory is loaded first when present; real environment
// variables take precedence over it.
func New() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("[config New] loaded .env")
	}
	return mainConfig{}
}

// Load is like New but reads the named env files, failing if any is missing.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		return nil, err
	}
	return mainConfig{}, nil
}
