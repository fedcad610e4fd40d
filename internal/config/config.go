package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

type Config struct {
	DBDriver string
	DBDSN    string

	ServerPort    string
	SessionSecret string
	JWTSecret     string
	JWTTTL        time.Duration
	CORSOrigins   []string
	LogLevel      string

	// Timezone is the civil zone every timestamp is read and written in.
	Timezone string
	// DefaultLocation is the site tag stamped on clock-ins.
	DefaultLocation string

	AdminUsername string
	AdminPassword string
	AdminEmail    string
}

var defaults = map[string]any{
	"DB_DRIVER":        DriverSQLite,
	"DB_DSN":           "timeclock.db",
	"SERVER_PORT":      "8080",
	"JWT_TTL":          "24h",
	"CORS_ORIGINS":     "http://localhost:3000,http://localhost:3001",
	"LOG_LEVEL":        "info",
	"TIMEZONE":         "America/Vancouver",
	"DEFAULT_LOCATION": "SkinartMD",
	"ADMIN_USERNAME":   "manager",
	"ADMIN_EMAIL":      "manager@company.com",
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	_ = v.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT")

	cfg := &Config{
		DBDriver:        strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DBDSN:           strings.TrimSpace(v.GetString("DB_DSN")),
		ServerPort:      strings.TrimSpace(v.GetString("SERVER_PORT")),
		SessionSecret:   v.GetString("SESSION_SECRET"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		CORSOrigins:     splitList(v.GetString("CORS_ORIGINS")),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		Timezone:        strings.TrimSpace(v.GetString("TIMEZONE")),
		DefaultLocation: strings.TrimSpace(v.GetString("DEFAULT_LOCATION")),
		AdminUsername:   v.GetString("ADMIN_USERNAME"),
		AdminPassword:   v.GetString("ADMIN_PASSWORD"),
		AdminEmail:      v.GetString("ADMIN_EMAIL"),
	}

	var missing, invalid []string

	switch cfg.DBDriver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		invalid = append(invalid, "DB_DRIVER")
	}
	if cfg.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	ttl, err := time.ParseDuration(v.GetString("JWT_TTL"))
	if err != nil || ttl <= 0 {
		invalid = append(invalid, "JWT_TTL")
	}
	cfg.JWTTTL = ttl

	if _, err := time.LoadLocation(cfg.Timezone); err != nil || cfg.Timezone == "" {
		invalid = append(invalid, "TIMEZONE")
	}
	if cfg.DefaultLocation == "" {
		missing = append(missing, "DEFAULT_LOCATION")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
