// Package memory implements an in-process shared store. A Hub holds the
// key-value data; each client created from it sees other clients' writes
// as change events. Intended for tests and single-process setups.
package memory

import (
	"context"
	"sync"

	"assetline/internal/store/core"
)

// Hub is the shared backing state for any number of memory clients.
type Hub struct {
	mu      sync.RWMutex
	values  map[string][]byte
	clients map[*Client]struct{}
}

// NewHub returns an empty shared store.
func NewHub() *Hub {
	return &Hub{
		values:  make(map[string][]byte),
		clients: make(map[*Client]struct{}),
	}
}

// Client creates a new client handle on the hub.
func (h *Hub) Client(id string) *Client {
	c := &Client{hub: h, id: id}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) get(key string) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.values[key]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true
}

func (h *Hub) set(origin *Client, key string, value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)
	h.mu.Lock()
	h.values[key] = cp
	var targets []*Client
	for c := range h.clients {
		if c != origin {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()
	ev := core.Event{Key: key, Value: cp, ClientID: origin.id}
	for _, c := range targets {
		c.deliver(ev)
	}
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Client implements core.Store against a Hub.
type Client struct {
	hub *Hub
	id  string

	mu      sync.Mutex
	watches []chan core.Event
	closed  bool
}

func (c *Client) ClientID() string { return c.id }

func (c *Client) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.hub.get(key)
	if !ok {
		return nil, core.ErrNotFound
	}
	return v, nil
}

func (c *Client) Set(_ context.Context, key string, value []byte) error {
	c.hub.set(c, key, value)
	return nil
}

func (c *Client) Watch(ctx context.Context) (<-chan core.Event, error) {
	ch := make(chan core.Event, 64)
	c.mu.Lock()
	c.watches = append(c.watches, ch)
	c.mu.Unlock()
	go func() {
		<-ctx.Done()
		c.removeWatch(ch)
	}()
	return ch, nil
}

func (c *Client) deliver(ev core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, ch := range c.watches {
		select {
		case ch <- ev:
		default:
			// Slow consumer; the replica layer re-reads on the next event.
		}
	}
}

func (c *Client) removeWatch(ch chan core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.watches {
		if w == ch {
			c.watches = append(c.watches[:i], c.watches[i+1:]...)
			close(w)
			return
		}
	}
}

func (c *Client) Close() error {
	c.hub.drop(c)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, ch := range c.watches {
		close(ch)
	}
	c.watches = nil
	return nil
}
