package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables that override the config file.
const (
	EnvServer     = "LICENSE_SERVER"
	EnvSite       = "LICENSE_SITE"
	EnvAuthClient = "LICENSE_AUTH_CLIENT"
	EnvAuthKey    = "LICENSE_AUTH_KEY"
	EnvAuthSecret = "LICENSE_AUTH_SECRET"
	EnvAuthToken  = "LICENSE_AUTH_TOKEN"
	EnvCacheKey   = "LICENSE_CACHE_KEY"
	EnvCacheTTL   = "LICENSE_CACHE_TTL"
	EnvRedisURL   = "LICENSE_REDIS_URL"
	EnvTimeout    = "LICENSE_HTTP_TIMEOUT"
)

// ApplyEnv overrides fields from LICENSE_* environment variables.
func (c *ClientConfig) ApplyEnv() {
	setString(&c.Server, EnvServer)
	setString(&c.Site, EnvSite)
	setString(&c.Auth.Client, EnvAuthClient)
	setString(&c.Auth.Key, EnvAuthKey)
	setString(&c.Auth.Secret, EnvAuthSecret)
	setString(&c.Auth.Token, EnvAuthToken)
	setString(&c.CacheKey, EnvCacheKey)
	setString(&c.Cache.RedisURL, EnvRedisURL)
	c.Cache.LicensesTTL = getEnvDuration(EnvCacheTTL, c.Cache.LicensesTTL)
	c.HTTP.Timeout = getEnvDuration(EnvTimeout, c.HTTP.Timeout)
}

func setString(dst *string, key string) {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		*dst = val
	}
}

// getEnvDuration reads a duration such as "90s" or a bare number of seconds,
// returning the default if unset or invalid.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(val); err == nil {
		if n < 0 {
			return defaultVal
		}
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}
