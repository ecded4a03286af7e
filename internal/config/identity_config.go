package config

import "time"

type Identity struct{}

var _ IdentityConfig = Identity{}

// GetCampusIdentityURL is the base URL of the campus identity service
func (Identity) GetCampusIdentityURL() string {
	return GetEnv("CAMPUS_IDENTITY_URL", "http://localhost:8081")
}

// GetAdminIdentityURL is the base URL of the administrative identity service
func (Identity) GetAdminIdentityURL() string {
	return GetEnv("ADMIN_IDENTITY_URL", "http://localhost:8081")
}

// GetAPIBaseURL also hosts the token renewal endpoint
func (Identity) GetAPIBaseURL() string {
	return GetEnv("API_BASE_URL", "http://localhost:8081")
}

func (Identity) GetHTTPTimeout() time.Duration {
	return GetDurationEnv("HTTP_TIMEOUT", 10*time.Second)
}
