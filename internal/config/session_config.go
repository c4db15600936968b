package config

import "time"

type SessionConfig interface {
	GetHTTPTimeout() time.Duration
	GetPushRetryDelays() []time.Duration
	GetUnreadPollInterval() time.Duration
	GetUnreadFallbackLimit() int
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetHTTPTimeout() time.Duration {
	return GetEnvDuration("HTTP_TIMEOUT", 15*time.Second)
}

// GetPushRetryDelays are the delays after which push registration is
// attempted. Device tokens are often not available right at startup.
func (Session) GetPushRetryDelays() []time.Duration {
	return []time.Duration{2500 * time.Millisecond, 6 * time.Second, 12 * time.Second}
}

func (Session) GetUnreadPollInterval() time.Duration {
	return GetEnvDuration("UNREAD_POLL_INTERVAL", 30*time.Second)
}

func (Session) GetUnreadFallbackLimit() int {
	return 100
}
