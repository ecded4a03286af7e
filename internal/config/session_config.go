package config

import (
	"strings"
	"time"
)

const (
	SessionBackendFile  = "file"
	SessionBackendRedis = "redis"
)

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionLifetime() time.Duration {
	return GetDurationEnv("SESSION_LIFETIME", 12*time.Hour)
}

func (Session) GetCookieMaxAge() time.Duration {
	return GetDurationEnv("COOKIE_MAX_AGE", 12*time.Hour)
}

func (Session) GetRedirectCooldown() time.Duration {
	return GetDurationEnv("REDIRECT_COOLDOWN", 2*time.Second)
}

// GetSessionBackend selects the persistent tier: file (default) or redis
func (Session) GetSessionBackend() string {
	backend := strings.ToLower(GetEnv("SESSION_BACKEND", SessionBackendFile))
	if backend != SessionBackendRedis {
		return SessionBackendFile
	}
	return backend
}

func (Session) GetRedisURL() string {
	return GetEnv("REDIS_URL", "redis://localhost:6379/0")
}
