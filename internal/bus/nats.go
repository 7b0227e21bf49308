// Package bus publishes safety alert events to interested consumers
// (dashboards, pagers). The orchestrator only sees the Notifier
// interface; NATS is wired in at the service boundary.
package bus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

const DefaultAlertSubject = "safety.alert"

// AlertEvent is the wire payload emitted for DANGER/CRITICAL checks and
// shutdown transitions.
type AlertEvent struct {
	ID          string             `json:"id"`
	Level       string             `json:"level"`
	Action      string             `json:"action"`
	Description string             `json:"description"`
	Violations  []string           `json:"violations"`
	Reading     map[string]float64 `json:"reading"`
	TriggeredAt time.Time          `json:"triggered_at"`
}

type Notifier interface {
	PublishAlert(evt AlertEvent) error
}

// NopNotifier is the default when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) PublishAlert(AlertEvent) error { return nil }

type Publisher struct {
	Conn    *nats.Conn
	Subject string
}

func NewPublisher(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	if subject == "" {
		subject = DefaultAlertSubject
	}
	return &Publisher{Conn: conn, Subject: subject}, nil
}

func (p *Publisher) Close() {
	if p.Conn != nil {
		p.Conn.Drain()
		p.Conn.Close()
	}
}

func (p *Publisher) PublishAlert(evt AlertEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.Conn.Publish(p.Subject, data)
}
