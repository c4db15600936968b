package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	apiBaseURLVar  = "API_BASE_URL"
	appNameVar     = "APP_NAME"
	pushTokenVar   = "PUSH_TOKEN"
	metricsAddrVar = "METRICS_ADDR"
	logLevelVar    = "LOG_LEVEL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

// GetAPIBaseURL returns the backend base URL without a trailing slash,
// e.g. "https://api.jobportal.example.com/api".
func (EnvVars) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv(apiBaseURLVar, "http://localhost:5000/api"), "/")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Job Portal")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetPushToken returns a fixed device push token. Mobile shells supply their
// own provider; this exists for the CLI and for simulators.
func (EnvVars) GetPushToken() string {
	return GetEnv(pushTokenVar, "")
}

func (EnvVars) GetMetricsAddr() string {
	return GetEnv(metricsAddrVar, "")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}

func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
