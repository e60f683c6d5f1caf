package handlers

import (
	"encoding/json"
	"sync"

	"github.com/jason-s-yu/whot/internal/game"
	"github.com/sirupsen/logrus"
)

// DefaultSendBuffer is the outbound queue length of each client.
const DefaultSendBuffer = 64

// Client is the outbound half of one socket. Frames are queued on Send and
// written by the connection's writer goroutine.
type Client struct {
	ID   string
	Send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// Done is closed when the client is unregistered.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub owns live clients and their channel membership. It implements
// registry.Notifier.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	channels map[string]map[string]struct{}

	log *logrus.Entry
}

func NewHub(logger *logrus.Entry) *Hub {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[string]struct{}),
		log:      logger.WithField("component", "hub"),
	}
}

// Register adds a client with a queue of buffer frames.
func (h *Hub) Register(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	c := &Client{ID: id, Send: make(chan []byte, buffer), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	return c
}

// Unregister drops the client from the hub and every channel.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	for name, members := range h.channels {
		delete(members, id)
		if len(members) == 0 {
			delete(h.channels, name)
		}
	}
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (h *Hub) Subscribe(connID, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[connID]; !ok {
		return
	}
	members := h.channels[channel]
	if members == nil {
		members = make(map[string]struct{})
		h.channels[channel] = members
	}
	members[connID] = struct{}{}
}

func (h *Hub) Unsubscribe(connID, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.channels[channel]
	delete(members, connID)
	if len(members) == 0 {
		delete(h.channels, channel)
	}
}

// Send queues ev for one client.
func (h *Hub) Send(connID string, ev game.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).WithField("type", ev.Type).Error("Failed to encode event")
		return
	}
	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c != nil {
		h.enqueue(c, data)
	}
}

// Broadcast queues ev for every member of channel. The event is encoded
// once.
func (h *Hub) Broadcast(channel string, ev game.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).WithField("type", ev.Type).Error("Failed to encode event")
		return
	}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.channels[channel]))
	for id := range h.channels[channel] {
		if c := h.clients[id]; c != nil {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		h.enqueue(c, data)
	}
}

// enqueue never blocks; a client that cannot keep up loses the frame.
func (h *Hub) enqueue(c *Client, data []byte) {
	select {
	case <-c.done:
	case c.Send <- data:
	default:
		h.log.WithField("conn", c.ID).Warn("Send buffer full, dropping frame")
	}
}

// Members lists the clients subscribed to channel.
func (h *Hub) Members(channel string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.channels[channel]))
	for id := range h.channels[channel] {
		out = append(out, id)
	}
	return out
}
