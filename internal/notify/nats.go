package notify

import (
	"context"
	"encoding/json"
	"strings"

	"algo-arena/internal/domain"

	"github.com/nats-io/nats.go"
)

const subjectRoot = "arena"

// NATSPublisher forwards events to subjects derived from their topic:
// game:42 is published on arena.game.42.
type NATSPublisher struct {
	Conn *nats.Conn
}

func ConnectNATS(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("arena-server"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{Conn: conn}, nil
}

func Subject(topic string) string {
	return subjectRoot + "." + strings.ReplaceAll(topic, ":", ".")
}

func (p *NATSPublisher) Notify(_ context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.Conn.Publish(Subject(ev.Topic), payload)
}

func (p *NATSPublisher) Close() {
	if p.Conn == nil {
		return
	}
	_ = p.Conn.Drain()
}
