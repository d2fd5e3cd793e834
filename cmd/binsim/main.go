// binsim publishes synthetic smart-bin telemetry so the dashboard can be
// exercised without hardware. Each simulated bin does a slow random walk on
// its fill level and occasionally cycles its lid and servo.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/ingest"
	mqttpkg "github.com/curious-vv1/IoT-Based-Smart-Bin/internal/mqtt"
)

type binState struct {
	id     string
	filled int
	lid    string
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))
	slog.SetDefault(logger)

	brokerURL := getEnv("MQTT_BROKER_URL", "mqtt://localhost:1883")
	topicPrefix := getEnv("MQTT_TOPIC_PREFIX", ingest.DefaultTopicPrefix)
	binCount := getEnvInt("BIN_COUNT", 3)
	interval := getEnvDuration("PUBLISH_INTERVAL", 5*time.Second)

	client := mqttpkg.New(brokerURL, "binsim")
	defer client.Disconnect(250)

	bins := make([]*binState, 0, binCount)
	for i := 1; i <= binCount; i++ {
		bins = append(bins, &binState{
			id:     fmt.Sprintf("bin-%d", i),
			filled: rand.Intn(60),
			lid:    "Closed",
		})
	}

	slog.Info("binsim started", "bins", binCount, "interval", interval, "broker", brokerURL)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			for _, b := range bins {
				publish(client, topicPrefix, b)
			}
		case <-stop:
			slog.Info("binsim stopped")
			return
		}
	}
}

func publish(client *mqttpkg.Client, prefix string, b *binState) {
	b.filled += rand.Intn(7) - 2
	if b.filled < 0 {
		b.filled = 0
	}
	if b.filled > 100 {
		// Emptied by the collection crew.
		b.filled = rand.Intn(10)
	}
	if rand.Intn(10) == 0 {
		if b.lid == "Closed" {
			b.lid = "Open"
		} else {
			b.lid = "Closed"
		}
	}
	servo := "Idle"
	if b.lid == "Open" {
		servo = "Rotating"
	}

	report := map[string]string{
		"binFilled":      strconv.Itoa(b.filled),
		"binLidSensor":   "OK",
		"binStoreSensor": "OK",
		"lid":            b.lid,
		"lidDistance":    strconv.Itoa(5 + rand.Intn(40)),
		"servo":          servo,
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := client.Publish(prefix+b.id, payload); err != nil {
		slog.Warn("publish failed", "bin_id", b.id, "error", err)
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
