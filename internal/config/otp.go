package config

import (
	"os"
	"strconv"
	"time"
)

// OTPConfig controls one-time code issuance for login, registration and password flows.
type OTPConfig struct {
	CodeLength        int
	CodeTTL           time.Duration
	MaxSendsPerWindow int
	RateLimitWindow   time.Duration
	// StaticCode replaces a failed SMS delivery only when AllowStaticFallback is set.
	StaticCode          string
	AllowStaticFallback bool
}

func LoadOTPConfig() *OTPConfig {
	return &OTPConfig{
		CodeLength:          getEnvAsInt("OTP_CODE_LENGTH", 4),
		CodeTTL:             getEnvAsDuration("OTP_CODE_TTL", 10*time.Minute),
		MaxSendsPerWindow:   getEnvAsInt("OTP_MAX_SENDS_PER_WINDOW", 5),
		RateLimitWindow:     getEnvAsDuration("OTP_RATE_LIMIT_WINDOW", time.Hour),
		StaticCode:          getEnv("OTP_STATIC_CODE", ""),
		AllowStaticFallback: getEnvAsBool("OTP_ALLOW_STATIC_FALLBACK", false),
	}
}

// StaticFallbackEnabled reports whether a failed SMS may be replaced by the static code.
func (c *OTPConfig) StaticFallbackEnabled() bool {
	return c.AllowStaticFallback && c.StaticCode != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
