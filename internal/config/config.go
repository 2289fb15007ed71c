package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DBSource    string
	Port        string
	Env         string
	TokenSecret string
	TokenTTL    time.Duration
	DraftTTL    time.Duration
}

func Load() (*Config, error) {
	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	secret := os.Getenv("TOKEN_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("TOKEN_SECRET environment variable is required")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	tokenTTL, err := durationEnv("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	draftTTL, err := durationEnv("DRAFT_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	return &Config{
		DBSource:    dbSource,
		Port:        port,
		Env:         env,
		TokenSecret: secret,
		TokenTTL:    tokenTTL,
		DraftTTL:    draftTTL,
	}, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", name, err)
	}
	return d, nil
}
