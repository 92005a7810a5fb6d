package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvInt64 is GetEnvInt for 64-bit values such as seeds.
func GetEnvInt64(key string, fallback int64) int64 {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool accepts the forms strconv.ParseBool understands plus yes/no.
func GetEnvBool(key string, fallback bool) bool {
	s := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch s {
	case "":
		return fallback
	case "yes", "y", "on":
		return true
	case "no", "n", "off":
		return false
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return fallback
}

// GetEnvDuration parses a time.ParseDuration string ("1200ms", "2s").
// A bare integer is taken as milliseconds.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return time.Duration(n) * time.Millisecond
	}
	return fallback
}

// Server is the resolved configuration of cmd/server.
type Server struct {
	Port             string
	LogLevel         string
	LogFormat        string
	CatalogPath      string
	DefaultEvent     string
	ConnectDelay     time.Duration
	NetworkCondition string
	AutoConnect      bool
	Seed             int64
	WSSendBuffer     int
}

// LoadServer reads every server setting from the environment.
func LoadServer() Server {
	return Server{
		Port:             GetEnv("PORT", "8080"),
		LogLevel:         GetEnv("LOG_LEVEL", "info"),
		LogFormat:        GetEnv("LOG_FORMAT", "json"),
		CatalogPath:      GetEnv("CATALOG_PATH", ""),
		DefaultEvent:     GetEnv("DEFAULT_EVENT", ""),
		ConnectDelay:     GetEnvDuration("CONNECT_DELAY", 1200*time.Millisecond),
		NetworkCondition: GetEnv("NETWORK_CONDITION", "good"),
		AutoConnect:      GetEnvBool("AUTO_CONNECT", true),
		Seed:             GetEnvInt64("SIM_SEED", 0),
		WSSendBuffer:     GetEnvInt("WS_SEND_BUFFER", 64),
	}
}
