// Package bus publishes job lifecycle events to NATS.
package bus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mediaforge-app/mediaforge/internal/domain"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "mediaforge.jobs"

// Client is a JSON publisher over a NATS connection.
type Client struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials url with reconnects enabled.
func Connect(url, prefix string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("mediaforge"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Client{nc: nc, prefix: prefix}, nil
}

// Close drains pending messages and closes the connection.
func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

// Subject returns the subject an event is published on:
// <prefix>.<kind>.<status>.
func Subject(prefix string, ev domain.JobEvent) string {
	return prefix + "." + string(ev.Kind) + "." + string(ev.Status)
}

// PublishJSON marshals v and publishes it on subject.
func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

// PublishJobEvent implements domain.EventPublisher.
func (c *Client) PublishJobEvent(ev domain.JobEvent) error {
	return c.PublishJSON(Subject(c.prefix, ev), ev)
}
