// Package events fans out observation lifecycle events to any listener
// over an embedded NATS server. Publishing is fire-and-forget: a slow or
// absent subscriber never back-pressures the queue processor.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	nc "github.com/nats-io/nats.go"

	"github.com/niklasschaeffer/open-mem/internal/logging"
)

// Subjects used by the queue processor and any interested listener
// (dashboard, metrics, host integration).
const (
	SubjectObservationCreated    = "observation.created"
	SubjectObservationRevised    = "observation.revised"
	SubjectObservationTombstoned = "observation.tombstoned"
	SubjectObservationDropped    = "observation.dropped"
	SubjectQueueBatch            = "queue.batch"
)

// Bus owns an embedded NATS server and a client connection to it.
type Bus struct {
	server *natsserver.Server
	conn   *nc.Conn
}

// Start boots an embedded NATS server on an ephemeral local port (-1 lets
// the OS assign one, avoiding collisions across concurrent daemon
// instances) and connects a client to it.
func Start() (*Bus, error) {
	opts := &natsserver.Options{
		Port:     -1,
		HTTPPort: -1,
		NoLog:    true,
		NoSigs:   true,
	}

	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("embedded nats server did not become ready in time")
	}

	conn, err := nc.Connect(srv.ClientURL(),
		nc.Name("open-mem"),
		nc.ReconnectWait(time.Second),
		nc.MaxReconnects(-1),
	)
	if err != nil {
		srv.Shutdown()
		return nil, fmt.Errorf("connect to embedded nats server: %w", err)
	}

	return &Bus{server: srv, conn: conn}, nil
}

// PublishJSON marshals v and publishes it to subject, logging (never
// returning) publish failures — listeners cannot back-pressure the
// caller, per the fire-and-forget contract.
func (b *Bus) PublishJSON(subject string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Get(logging.CategoryEvents).Warn("failed to marshal event for %s: %v", subject, err)
		return
	}
	if err := b.conn.Publish(subject, data); err != nil {
		logging.Get(logging.CategoryEvents).Warn("failed to publish event to %s: %v", subject, err)
	}
}

// Subscribe registers an asynchronous handler for a subject.
func (b *Bus) Subscribe(subject string, handler func(data []byte)) (*nc.Subscription, error) {
	return b.conn.Subscribe(subject, func(msg *nc.Msg) {
		handler(msg.Data)
	})
}

// Close flushes and closes the client connection and shuts down the
// embedded server.
func (b *Bus) Close() {
	if b.conn != nil {
		_ = b.conn.Flush()
		b.conn.Close()
	}
	if b.server != nil {
		b.server.Shutdown()
	}
}
