package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	PollDuration  int // seconds
	RoomTTL       int // seconds a closed room is kept before eviction, 0 keeps forever
	SweepInterval int // seconds
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set take precedence.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[Config] Ignoring .env: %v\n", err)
	}

	cfg := Config{
		Port:          getEnv("PORT", "3001"),
		PollDuration:  getEnvInt("POLL_DURATION", 60),
		RoomTTL:       getEnvInt("ROOM_TTL", 600),
		SweepInterval: getEnvInt("SWEEP_INTERVAL", 60),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		KafkaBrokers:  getEnvList("KAFKA_BROKERS"),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "poll-events"),
	}
	return cfg
}

func (c Config) PollDurationTime() time.Duration {
	return time.Duration(c.PollDuration) * time.Second
}

func (c Config) RoomTTLTime() time.Duration {
	return time.Duration(c.RoomTTL) * time.Second
}

func (c Config) SweepIntervalTime() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
