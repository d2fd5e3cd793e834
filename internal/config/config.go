package config

import (
	"log/slog"
	"os"
)

type Config struct {
	Port            string
	MQTTBrokerURL   string
	MQTTTopicPrefix string
	LogLevel        string
	StoreBackend    string // "redis" or "memory"
	RedisAddr       string
	RedisPassword   string
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnv("SMARTBIN_PORT", "8080"),
		MQTTBrokerURL:   getEnv("MQTT_BROKER_URL", "mqtt://mosquitto:1883"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "smartbin/telemetry/"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		StoreBackend:    getEnv("BIN_STORE_BACKEND", "redis"),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
	}
	slog.Info("smartbind config loaded", "port", cfg.Port, "mqtt", cfg.MQTTBrokerURL, "store", cfg.StoreBackend)
	return cfg
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
