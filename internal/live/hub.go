// Package live pushes occurrence counters to connected admin screens over WebSocket. Counter changes go
// through Redis pub/sub so every server instance fans them out to its own clients.
package live

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherd-hub/backend/internal/models"
)

// EventCounts carries a models.Counts snapshot.
const EventCounts = "occurrence.counts"

// Message is what instances exchange on the bus.
type Message struct {
	TenantID uuid.UUID     `json:"tenant_id"`
	Counts   models.Counts `json:"counts"`
}

// Bus carries counter updates between instances.
type Bus interface {
	Publish(ctx context.Context, m Message) error
	// Subscribe calls fn for every message until ctx is done.
	Subscribe(ctx context.Context, fn func(Message)) error
}

// Hub keeps occurrence_id -> connected clients.
type Hub struct {
	rooms  map[uuid.UUID]map[string]*Client
	mu     sync.RWMutex
	bus    Bus
	logger *zap.Logger
}

// NewHub creates a hub. With a nil bus updates are only delivered locally.
func NewHub(bus Bus, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{rooms: make(map[uuid.UUID]map[string]*Client), bus: bus, logger: logger}
}

// Register adds a client to its occurrence room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.OccurrenceID] == nil {
		h.rooms[c.OccurrenceID] = make(map[string]*Client)
	}
	h.rooms[c.OccurrenceID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("live client joined", zap.String("client_id", c.ID), zap.String("occurrence_id", c.OccurrenceID.String()))
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.OccurrenceID]; ok {
		if _, ok := room[c.ID]; ok {
			delete(room, c.ID)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.rooms, c.OccurrenceID)
		}
	}
	h.mu.Unlock()
	h.logger.Debug("live client left", zap.String("client_id", c.ID), zap.String("occurrence_id", c.OccurrenceID.String()))
}

// Listeners returns how many clients watch an occurrence on this instance.
func (h *Hub) Listeners(occurrenceID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[occurrenceID])
}

// Broadcast sends an event to local clients of one occurrence. Slow clients miss updates rather than block.
func (h *Hub) Broadcast(occurrenceID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[occurrenceID] {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// PublishCounts announces new counters. With a bus the subscriber loop does the local delivery, so each
// instance (this one included) broadcasts exactly once.
func (h *Hub) PublishCounts(ctx context.Context, tenantID uuid.UUID, c models.Counts) {
	if h.bus != nil {
		err := h.bus.Publish(ctx, Message{TenantID: tenantID, Counts: c})
		if err == nil {
			return
		}
		h.logger.Warn("publish counts failed, delivering locally", zap.Error(err))
	}
	h.Broadcast(c.OccurrenceID, EventCounts, c)
}

// Run relays bus messages to local clients until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus == nil {
		<-ctx.Done()
		return nil
	}
	return h.bus.Subscribe(ctx, func(m Message) {
		h.Broadcast(m.Counts.OccurrenceID, EventCounts, m.Counts)
	})
}
