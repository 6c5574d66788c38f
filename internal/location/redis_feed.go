package location

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFeed is a Source backed by redis: device status and last fix live in
// keys, live fixes travel over a pubsub channel per device.
type RedisFeed struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisFeed(rdb *redis.Client, log *zap.Logger) *RedisFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisFeed{rdb: rdb, log: log}
}

func statusKey(deviceID string) string  { return "location:" + deviceID + ":status" }
func lastKey(deviceID string) string    { return "location:" + deviceID + ":last" }
func fixChannel(deviceID string) string { return "location:" + deviceID + ":fixes" }
func ownerKey(deviceID string) string   { return "location:" + deviceID + ":owner" }

func (r *RedisFeed) Provider(deviceID string) Provider {
	return &redisProvider{feed: r, deviceID: deviceID}
}

func (r *RedisFeed) Claim(ctx context.Context, deviceID, owner string) error {
	claimed, err := r.rdb.SetNX(ctx, ownerKey(deviceID), owner, 0).Result()
	if err != nil {
		return err
	}
	if claimed {
		return nil
	}
	current, err := r.rdb.Get(ctx, ownerKey(deviceID)).Result()
	if err != nil {
		return err
	}
	if current != owner {
		return ErrDeviceNotOwned
	}
	return nil
}

func (r *RedisFeed) SetStatus(ctx context.Context, deviceID string, status Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, statusKey(deviceID), payload, 0).Err()
}

func (r *RedisFeed) Push(ctx context.Context, deviceID string, fix Fix) error {
	payload, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, lastKey(deviceID), payload, 0).Err(); err != nil {
		return err
	}
	return r.rdb.Publish(ctx, fixChannel(deviceID), payload).Err()
}

func (r *RedisFeed) status(ctx context.Context, deviceID string) (Status, error) {
	raw, err := r.rdb.Get(ctx, statusKey(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Status{Permission: PermissionUndetermined}, nil
	}
	if err != nil {
		return Status{}, err
	}
	var st Status
	if err := json.Unmarshal(raw, &st); err != nil {
		return Status{}, err
	}
	return st, nil
}

type redisProvider struct {
	feed     *RedisFeed
	deviceID string
}

func (p *redisProvider) ServicesEnabled(ctx context.Context) (bool, error) {
	st, err := p.feed.status(ctx, p.deviceID)
	if err != nil {
		return false, err
	}
	return st.ServicesEnabled, nil
}

func (p *redisProvider) RequestPermission(ctx context.Context) (Permission, error) {
	st, err := p.feed.status(ctx, p.deviceID)
	if err != nil {
		return PermissionDenied, err
	}
	if st.Permission == PermissionGranted {
		return PermissionGranted, nil
	}
	return PermissionDenied, nil
}

func (p *redisProvider) CurrentPosition(ctx context.Context, _ Accuracy) (Fix, error) {
	raw, err := p.feed.rdb.Get(ctx, lastKey(p.deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Fix{}, ErrLocationUnavailable
	}
	if err != nil {
		return Fix{}, err
	}
	var fix Fix
	if err := json.Unmarshal(raw, &fix); err != nil {
		return Fix{}, err
	}
	return fix, nil
}

func (p *redisProvider) Watch(ctx context.Context, _ WatchOptions) (Subscription, error) {
	pubsub := p.feed.rdb.Subscribe(context.Background(), fixChannel(p.deviceID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	s := newSubscription(func(*subscription) { _ = pubsub.Close() })
	go func() {
		msgs := pubsub.Channel()
		for {
			select {
			case <-s.done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var fix Fix
				if err := json.Unmarshal([]byte(msg.Payload), &fix); err != nil {
					p.feed.log.Warn("dropping malformed fix", zap.String("device", p.deviceID), zap.Error(err))
					continue
				}
				_ = s.deliver(context.Background(), fix)
			}
		}
	}()
	return s, nil
}
