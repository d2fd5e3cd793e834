// Package ingest moves device telemetry from the MQTT broker into the bin
// store. Devices publish a full sensor report per message; the ingestor
// applies it as a partial update so it never clobbers the viewer-configured
// fields (status, binHeight).
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/curious-vv1/IoT-Based-Smart-Bin/internal/binstore"
)

var ErrNotATelemetryTopic = errors.New("not a telemetry topic")

// DefaultTopicPrefix is where the firmware publishes its reports.
const DefaultTopicPrefix = "smartbin/telemetry/"

// telemetryFields are the device-owned fields. Anything else in a report is
// dropped so a misbehaving device cannot overwrite viewer configuration.
var telemetryFields = []string{
	"binFilled", "binLidSensor", "binStoreSensor", "lid", "lidDistance", "servo",
}

type Ingestor struct {
	Store       binstore.Store
	TopicPrefix string
}

// MQTTMessage is the slice of paho's Message the ingestor needs; it keeps
// the handler testable without a live broker.
type MQTTMessage interface {
	Topic() string
	Payload() []byte
}

func (i *Ingestor) HandleMessage(ctx context.Context, msg MQTTMessage) {
	topic := msg.Topic()
	binID, err := ParseBinID(i.TopicPrefix, topic)
	if err != nil {
		if errors.Is(err, ErrNotATelemetryTopic) {
			return
		}
		slog.Warn("telemetry topic parse failed", "topic", topic, "error", err)
		return
	}

	payload := msg.Payload()
	if len(payload) == 0 {
		return
	}
	var report map[string]any
	if err := json.Unmarshal(payload, &report); err != nil {
		slog.Warn("telemetry invalid json", "topic", topic, "bin_id", binID)
		return
	}

	fields := make(map[string]any, len(telemetryFields))
	for _, f := range telemetryFields {
		if v, ok := report[f]; ok {
			fields[f] = v
		}
	}
	if len(fields) == 0 {
		slog.Debug("telemetry report had no known fields", "bin_id", binID)
		return
	}

	if err := i.Store.Update(ctx, binID, fields); err != nil {
		slog.Error("telemetry store write failed", "bin_id", binID, "error", err)
		return
	}
	slog.Debug("telemetry stored", "bin_id", binID, "fields", len(fields))
}

func ParseBinID(prefix, topic string) (string, error) {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if !strings.HasPrefix(topic, prefix) {
		return "", ErrNotATelemetryTopic
	}
	id := strings.Trim(strings.TrimPrefix(topic, prefix), "/")
	if id == "" || strings.Contains(id, "/") {
		return "", errors.New("malformed bin id")
	}
	return id, nil
}
