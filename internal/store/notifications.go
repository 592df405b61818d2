// Package store keeps per-user notifications in Redis.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
)

var ErrNotFound = errors.New("store: notification not found")

// NotificationStore keeps each user's notifications in a hash keyed by id,
// with a sorted set ordering them by creation time. Both keys expire ttl
// after the last write.
type NotificationStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewNotificationStore(client *redis.Client, prefix string, ttl time.Duration) *NotificationStore {
	if prefix == "" {
		prefix = "notifications:"
	}
	return &NotificationStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *NotificationStore) Save(ctx context.Context, n models.Notification) error {
	if n.ID == "" || n.UserID == "" {
		return fmt.Errorf("store: notification needs id and user id")
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notification marshal error: %w", err)
	}

	hashKey, indexKey := s.keys(n.UserID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, hashKey, n.ID, data)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(n.CreatedAt.UnixMilli()), Member: n.ID})
	if s.ttl > 0 {
		pipe.Expire(ctx, hashKey, s.ttl)
		pipe.Expire(ctx, indexKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("notification save error: %w", err)
	}
	return nil
}

func (s *NotificationStore) Get(ctx context.Context, userID, id string) (*models.Notification, error) {
	hashKey, _ := s.keys(userID)
	data, err := s.client.HGet(ctx, hashKey, id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("notification get error: %w", err)
	}

	var n models.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("notification unmarshal error: %w", err)
	}
	return &n, nil
}

// List returns userID's notifications, oldest first.
func (s *NotificationStore) List(ctx context.Context, userID string) ([]models.Notification, error) {
	hashKey, indexKey := s.keys(userID)

	ids, err := s.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("notification index error: %w", err)
	}
	if len(ids) == 0 {
		return []models.Notification{}, nil
	}

	values, err := s.client.HMGet(ctx, hashKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("notification list error: %w", err)
	}

	out := make([]models.Notification, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var n models.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, fmt.Errorf("notification unmarshal error: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Update applies fn to a stored notification and saves the result.
func (s *NotificationStore) Update(ctx context.Context, userID, id string, fn func(*models.Notification)) (*models.Notification, error) {
	n, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	fn(n)
	if err := s.Save(ctx, *n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *NotificationStore) Delete(ctx context.Context, userID, id string) error {
	hashKey, indexKey := s.keys(userID)

	pipe := s.client.TxPipeline()
	removed := pipe.HDel(ctx, hashKey, id)
	pipe.ZRem(ctx, indexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("notification delete error: %w", err)
	}
	if removed.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every notification of userID and reports how many there were.
func (s *NotificationStore) Clear(ctx context.Context, userID string) (int, error) {
	hashKey, indexKey := s.keys(userID)

	pipe := s.client.TxPipeline()
	count := pipe.HLen(ctx, hashKey)
	pipe.Del(ctx, hashKey, indexKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("notification clear error: %w", err)
	}
	return int(count.Val()), nil
}

func (s *NotificationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *NotificationStore) keys(userID string) (string, string) {
	base := s.prefix + userID
	return base, base + ":index"
}
