package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherd-hub/backend/internal/models"
)

// memBus fans messages out to subscribers in-process.
type memBus struct {
	mu        sync.Mutex
	subs      []chan Message
	published int
	fail      bool
}

func (b *memBus) Publish(_ context.Context, m Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("redis down")
	}
	b.published++
	for _, s := range b.subs {
		s <- m
	}
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, fn func(Message)) error {
	ch := make(chan Message, 8)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-ch:
			fn(m)
		}
	}
}

func (b *memBus) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func testClient(h *Hub, occurrenceID uuid.UUID) *Client {
	return &Client{ID: uuid.New().String(), OccurrenceID: occurrenceID, hub: h, send: make(chan WSMessage, sendBuffer)}
}

func receive(t *testing.T, c *Client) models.Counts {
	t.Helper()
	select {
	case msg := <-c.send:
		require.Equal(t, EventCounts, msg.Event)
		var counts models.Counts
		require.NoError(t, json.Unmarshal(msg.Data, &counts))
		return counts
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return models.Counts{}
	}
}

func TestBroadcastOnlyReachesRoom(t *testing.T) {
	h := NewHub(nil, nil)
	occ, other := uuid.New(), uuid.New()
	a, b, c := testClient(h, occ), testClient(h, occ), testClient(h, other)
	h.Register(a)
	h.Register(b)
	h.Register(c)
	assert.Equal(t, 2, h.Listeners(occ))

	h.PublishCounts(context.Background(), uuid.New(), models.Counts{OccurrenceID: occ, Registered: 3})

	assert.Equal(t, 3, receive(t, a).Registered)
	assert.Equal(t, 3, receive(t, b).Registered)
	assert.Empty(t, c.send)
}

func TestUnregisterClosesSend(t *testing.T) {
	h := NewHub(nil, nil)
	occ := uuid.New()
	c := testClient(h, occ)
	h.Register(c)
	h.Unregister(c)
	h.Unregister(c)

	_, open := <-c.send
	assert.False(t, open)
	assert.Zero(t, h.Listeners(occ))
}

func TestBroadcastSkipsFullClients(t *testing.T) {
	h := NewHub(nil, nil)
	occ := uuid.New()
	c := testClient(h, occ)
	h.Register(c)
	for i := 0; i < sendBuffer+5; i++ {
		h.Broadcast(occ, EventCounts, models.Counts{OccurrenceID: occ, CheckedIn: i})
	}
	assert.Len(t, c.send, sendBuffer)
}

func TestPublishCountsThroughBus(t *testing.T) {
	bus := &memBus{}
	h := NewHub(bus, nil)
	occ := uuid.New()
	c := testClient(h, occ)
	h.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()
	require.Eventually(t, func() bool { return bus.subscribers() == 1 }, time.Second, 5*time.Millisecond)

	h.PublishCounts(context.Background(), uuid.New(), models.Counts{OccurrenceID: occ, Waitlisted: 2})

	assert.Equal(t, 2, receive(t, c).Waitlisted)
	assert.Equal(t, 1, bus.published)
	assert.Empty(t, c.send, "delivered once, by the subscriber")
}

func TestPublishCountsFallsBackLocally(t *testing.T) {
	bus := &memBus{fail: true}
	h := NewHub(bus, nil)
	occ := uuid.New()
	c := testClient(h, occ)
	h.Register(c)

	h.PublishCounts(context.Background(), uuid.New(), models.Counts{OccurrenceID: occ, CheckedIn: 7})
	assert.Equal(t, 7, receive(t, c).CheckedIn)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		allowed string
		origin  string
		want    bool
	}{
		{"*", "https://evil.example.com", true},
		{"https://app.example.org, http://localhost:3000", "https://app.example.org", true},
		{"https://app.example.org/", "https://app.example.org", true},
		{"https://app.example.org", "https://evil.example.com", false},
		{"https://app.example.org", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.allowed+"|"+tt.origin, func(t *testing.T) {
			u := newUpgrader(tt.allowed)
			req, _ := http.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, u.CheckOrigin(req))
		})
	}
}
