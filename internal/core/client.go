package core

import "sync/atomic"

// eventBuffer is the per-client outbound queue size. Events beyond it
// are dropped rather than blocking the hub.
const eventBuffer = 16

// Client is a live connection as seen by the hub. Identity is empty
// until the connection announces itself.
type Client struct {
	ID     string
	Events chan *Event

	identity atomic.Value // string
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string) *Client {
	c := &Client{
		ID:     id,
		Events: make(chan *Event, eventBuffer),
	}
	c.identity.Store("")
	return c
}

// ConnID returns the process-unique connection id.
func (c *Client) ConnID() string {
	return c.ID
}

// Identity returns the announced identity, or "" before announcement.
func (c *Client) Identity() string {
	v, _ := c.identity.Load().(string)
	return v
}

func (c *Client) setIdentity(identity string) {
	c.identity.Store(identity)
}
