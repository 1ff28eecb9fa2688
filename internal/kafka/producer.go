package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/psds-microservice/problem-portal/internal/logger"
)

// Portal event names.
const (
	EventSolutionSubmitted = "solution.submitted"
	EventSolutionVoted     = "solution.voted"
	EventProblemUpdated    = "problem.updated"
)

// EventPublisher sends portal events; tests substitute a recorder.
type EventPublisher interface {
	Publish(ctx context.Context, event, key string, payload map[string]interface{})
}

// Producer writes portal events to a Kafka topic. Publishing is best-effort
// and never fails the caller.
type Producer struct {
	writer *kafka.Writer
	topic  string
	log    *logger.Logger
}

// NewProducer returns a producer; with no brokers or no topic every method is
// a no-op.
func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "kafka")
	if len(brokers) == 0 || topic == "" {
		return &Producer{log: log}
	}
	return &Producer{
		topic: topic,
		log:   log,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Enabled() bool {
	return p.writer != nil
}

// Publish sends {"event": event, "at": ..., payload...} keyed by key so events
// of one problem or solution stay ordered.
func (p *Producer) Publish(ctx context.Context, event, key string, payload map[string]interface{}) {
	if p.writer == nil {
		return
	}
	body, err := Encode(event, time.Now().UTC(), payload)
	if err != nil {
		p.log.Warn("marshal event", "event", event, "error", err)
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: body}); err != nil {
		p.log.Warn("write event", "event", event, "key", key, "error", err)
	}
}

// Encode builds the event body. payload keys never override "event" or "at".
func Encode(event string, at time.Time, payload map[string]interface{}) ([]byte, error) {
	msg := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		msg[k] = v
	}
	msg["event"] = event
	msg["at"] = at.Format(time.RFC3339)
	return json.Marshal(msg)
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// ParseBrokers splits "host1:9092,host2:9092".
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
