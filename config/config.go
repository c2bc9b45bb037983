package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the server settings read from the environment
type Config struct {
	DataDir       string
	Port          string
	RedisAddr     string // empty disables the Redis mirror
	RedisPassword string
	RedisDB       int
	Seed          bool
}

// Load reads a .env file from the working directory if one exists, then the process environment.
// Variables already set in the environment win over the .env file.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg := &Config{
		DataDir:       GetEnv("MARKME_DATA_DIR", "data"),
		Port:          GetEnv("MARKME_PORT", ":8080"),
		RedisAddr:     GetEnv("MARKME_REDIS_ADDR"),
		RedisPassword: GetEnv("MARKME_REDIS_PASSWORD"),
	}

	var err error
	if cfg.RedisDB, err = strconv.Atoi(GetEnv("MARKME_REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid MARKME_REDIS_DB: %w", err)
	}
	if cfg.Seed, err = strconv.ParseBool(GetEnv("MARKME_SEED", "true")); err != nil {
		return nil, fmt.Errorf("invalid MARKME_SEED: %w", err)
	}
	return cfg, nil
}

// GetEnv returns the variable's value, or the default when it is unset
func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}
