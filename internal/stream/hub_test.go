package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("session-1")
	defer hub.Unregister(client)

	hub.Broadcast("session-1", []byte("hello"))

	select {
	case msg := <-client.Send:
		if string(msg) != "hello" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch != "walk:abc:events" {
		t.Fatalf("unexpected channel %q", ch)
	}
	if sessionIDFromChannel(ch) != "abc" {
		t.Fatalf("unexpected session id")
	}
	if sessionIDFromChannel("bad") != "" {
		t.Fatalf("expected empty session id")
	}
	if sessionIDFromChannel("tracking:abc:broadcast") != "" {
		t.Fatalf("expected foreign channel to be ignored")
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub(nil, nil)
	client := hub.Register("session-2")
	hub.Unregister(client)
	_, ok := <-client.Send
	if ok {
		t.Fatalf("expected channel closed")
	}
}

func TestHubRedisRelayAcrossInstances(t *testing.T) {
	s := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: s.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer clientA.Close()
	defer clientB.Close()

	hubA := NewHub(clientA, nil)
	hubB := NewHub(clientB, nil)
	defer hubA.Close()
	defer hubB.Close()

	local := hubA.Register("session-redis")
	remote := hubB.Register("session-redis")
	defer hubA.Unregister(local)
	defer hubB.Unregister(remote)

	hubA.Broadcast("session-redis", []byte(`{"type":"sample"}`))

	select {
	case msg := <-local.Send:
		if string(msg) != `{"type":"sample"}` {
			t.Fatalf("unexpected local message %s", msg)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for local broadcast")
	}

	select {
	case msg := <-remote.Send:
		var v map[string]string
		if err := json.Unmarshal(msg, &v); err != nil || v["type"] != "sample" {
			t.Fatalf("unexpected relayed message %s", msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for relayed message")
	}

	// the origin instance must not receive its own relay a second time
	select {
	case msg := <-local.Send:
		t.Fatalf("unexpected duplicate %s", msg)
	case <-time.After(50 * time.Millisecond):
	}

	if err := clientA.Publish(context.Background(), redisChannel("session-redis"), "not json").Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}
}

func TestHubRedisPublishError(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()
	defer client.Close()

	hub := NewHub(client, nil)
	defer hub.Close()
	node := hub.Register("session-bad")
	defer hub.Unregister(node)

	hub.Broadcast("session-bad", []byte("ping"))
	select {
	case <-node.Send:
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("expected local delivery despite redis failure")
	}
}
