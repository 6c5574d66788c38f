package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/biancann/footfolio/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// recenterDelta is the lat/lng span watchers should show around a re-centre.
const recenterDelta = 0.005

type Hub struct {
	redis   *redis.Client
	log     *zap.Logger
	origin  string
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	cancel  context.CancelFunc
}

type Client struct {
	SessionID string
	Send      chan []byte
}

// Event is the envelope pushed to websocket watchers.
type Event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Center    *geo.Coordinate `json:"center,omitempty"`
	LatDelta  float64         `json:"lat_delta,omitempty"`
	LngDelta  float64         `json:"lng_delta,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type relayed struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

func NewHub(redisClient *redis.Client, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		redis:   redisClient,
		log:     log,
		origin:  uuid.NewString(),
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancel = cancel
		ready := make(chan struct{})
		go h.subscribeRedis(ctx, ready)
		<-ready
	}
	return h
}

// Close stops the redis relay.
func (h *Hub) Close() {
	if h.cancel != nil {
		h.cancel()
	}
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessionClients, ok := h.clients[client.SessionID]; ok {
		delete(sessionClients, client)
		if len(sessionClients) == 0 {
			delete(h.clients, client.SessionID)
		}
	}
	close(client.Send)
}

// Broadcast fans payload out to local watchers of sessionID and mirrors it to
// other instances through redis.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.deliver(sessionID, payload)

	if h.redis != nil {
		msg, _ := json.Marshal(relayed{Origin: h.origin, Payload: payload})
		err := h.redis.Publish(context.Background(), redisChannel(sessionID), msg).Err()
		if err != nil {
			h.log.Warn("redis publish failed", zap.String("session", sessionID), zap.Error(err))
		}
	}
}

// CenterOn asks watchers of sessionID to re-centre their map on at.
func (h *Hub) CenterOn(_ context.Context, sessionID string, at geo.Coordinate) error {
	payload, err := json.Marshal(Event{
		Type:      "center",
		SessionID: sessionID,
		Center:    &at,
		LatDelta:  recenterDelta,
		LngDelta:  recenterDelta,
	})
	if err != nil {
		return err
	}
	h.Broadcast(sessionID, payload)
	return nil
}

func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context, ready chan<- struct{}) {
	pubsub := h.redis.PSubscribe(ctx, redisChannel("*"))
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.Warn("redis subscribe failed", zap.Error(err))
		close(ready)
		return
	}
	close(ready)

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var r relayed
			if err := json.Unmarshal([]byte(msg.Payload), &r); err != nil || r.Origin == h.origin {
				continue
			}
			h.deliver(sessionIDFromChannel(msg.Channel), r.Payload)
		}
	}
}

func redisChannel(sessionID string) string {
	return "walk:" + sessionID + ":events"
}

func sessionIDFromChannel(ch string) string {
	// walk:{session}:events
	const prefix = "walk:"
	const suffix = ":events"
	if len(ch) <= len(prefix)+len(suffix) || !strings.HasPrefix(ch, prefix) || !strings.HasSuffix(ch, suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
