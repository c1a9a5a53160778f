package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/atomiq/atomiq/core/infra/logging"
	"github.com/atomiq/atomiq/core/job"
)

// Event is the wire form of one log entry on the NATS fan-out.
type Event struct {
	JobID    string    `json:"jobId"`
	Status   string    `json:"status"`
	Progress int       `json:"progress"`
	Message  string    `json:"message"`
	TS       time.Time `json:"ts"`
}

// Subject returns the NATS subject carrying a job's events.
func Subject(jobID string) string {
	return "job.events." + jobID
}

// NATSPublisher mirrors every appended log entry onto NATS so external
// consumers can follow jobs without polling the HTTP API. Publish
// failures are logged and dropped; the registry is the source of truth.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("atomiq-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

// RecordUpdated implements job.Mirror.
func (p *NATSPublisher) RecordUpdated(rec job.Record, entry *job.LogEntry) {
	if entry == nil {
		return
	}
	payload, err := json.Marshal(Event{
		JobID:    rec.ID,
		Status:   string(rec.Status),
		Progress: entry.Progress,
		Message:  entry.Message,
		TS:       entry.TS,
	})
	if err != nil {
		return
	}
	if err := p.conn.Publish(Subject(rec.ID), payload); err != nil {
		logging.Warn("events", "nats publish failed", "job", rec.ID, "error", err)
	}
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
