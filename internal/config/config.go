package config

import "time"

type Config interface {
	EnvConfig
	IdentityConfig
	SessionConfig
	RouteConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetLogLevel() string
	GetEnv() string
}

// IdentityConfig locates the identity providers and the API backend
type IdentityConfig interface {
	GetCampusIdentityURL() string
	GetAdminIdentityURL() string
	GetAPIBaseURL() string
	GetHTTPTimeout() time.Duration
}

type SessionConfig interface {
	GetSessionLifetime() time.Duration
	GetCookieMaxAge() time.Duration
	GetRedirectCooldown() time.Duration
	GetSessionBackend() string
	GetRedisURL() string
}

type RouteConfig interface {
	GetRouteRulesFile() string
}

type mainConfig struct {
	EnvVars
	Identity
	Session
	Routes
}

func New() Config {
	return mainConfig{}
}
