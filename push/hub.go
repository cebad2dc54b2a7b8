package push

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "push_connected_channels",
		Help: "Viewer channels currently registered for fan-out.",
	})
	broadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_broadcasts_total",
		Help: "Payloads broadcast to all connected channels.",
	})
	droppedChannelsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_dropped_channels_total",
		Help: "Channels dropped because a delivery failed.",
	})
)

// Hub is the registry of connected viewer channels. Registration and
// broadcast may interleave freely; a broadcast reaches the channels
// registered at the moment it snapshots the membership.
type Hub struct {
	log *slog.Logger

	mu       sync.Mutex
	channels map[string]Channel

	// serializes broadcasts so every channel observes them in call order
	sendMu sync.Mutex
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: log, channels: make(map[string]Channel)}
}

func (h *Hub) Register(c Channel) {
	h.mu.Lock()
	h.channels[c.ID()] = c
	h.mu.Unlock()
	connectedChannels.Inc()
	h.log.Debug("viewer channel registered", "channel", c.ID())
}

// Unregister removes the channel and closes it. Unknown channels are a
// no-op, so unregistering twice is safe.
func (h *Hub) Unregister(c Channel) {
	h.mu.Lock()
	_, ok := h.channels[c.ID()]
	delete(h.channels, c.ID())
	h.mu.Unlock()
	if !ok {
		return
	}
	connectedChannels.Dec()
	c.Close()
	h.log.Debug("viewer channel unregistered", "channel", c.ID())
}

// Lookup returns the registered channel with the given id.
func (h *Hub) Lookup(id string) (Channel, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.channels[id]
	return c, ok
}

// Len reports the number of registered channels.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels)
}

// Broadcast delivers payload to every registered channel, best-effort and
// at most once each. A channel that fails delivery is dropped; the rest
// still receive the payload. Never returns an error: fan-out problems must
// not fail the committed write that triggered them.
func (h *Hub) Broadcast(payload []byte) {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	h.mu.Lock()
	targets := make([]Channel, 0, len(h.channels))
	for _, c := range h.channels {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	broadcastsTotal.Inc()
	for _, c := range targets {
		if err := c.Deliver(payload); err != nil {
			droppedChannelsTotal.Inc()
			h.log.Warn("dropping viewer channel", "channel", c.ID(), "err", err)
			h.Unregister(c)
		}
	}
}
