// Package notify publishes relay lifecycle events to NATS for downstream
// indexers. Publishing is best-effort: the relay treats a publish failure as
// a warning, never as a transaction failure.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/dapperlabs/dapper-relay/pkg/relay"
)

// Subjects for relay lifecycle events.
const (
	SubjectSubmitted = "dapper.relay.submitted"
	SubjectFailed    = "dapper.relay.failed"
)

// Publisher emits relay records on a NATS connection.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to natsURL.
func NewPublisher(natsURL string) (*Publisher, error) {
	conn, err := nats.Connect(natsURL, nats.Name("dapper-relay"))
	if err != nil {
		return nil, fmt.Errorf("notify: connect to NATS: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	p.conn.Close()
}

func subjectFor(rec *relay.Record) string {
	if rec.Status == relay.StatusFailed {
		return SubjectFailed
	}
	return SubjectSubmitted
}

// Publish emits rec on the subject matching its status.
func (p *Publisher) Publish(rec *relay.Record) error {
	subject := subjectFor(rec)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("notify: encode record %s: %w", rec.ID, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("notify: publish %s: %w", subject, err)
	}
	return nil
}
