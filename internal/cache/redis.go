package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "report:"

// Redis stores reports as JSON values with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to addr and verifies the connection with PING.
func NewRedis(ctx context.Context, addr string, db int, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		PoolSize:     50,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return &Redis{client: rdb, ttl: ttl}, nil
}

func (rc *Redis) Close() error {
	return rc.client.Close()
}

func (rc *Redis) Save(ctx context.Context, r Report) error {
	if r.ID == "" {
		return ErrInvalidID
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	return rc.client.Set(ctx, keyPrefix+r.ID, data, rc.ttl).Err()
}

func (rc *Redis) Get(ctx context.Context, id string) (*Report, error) {
	val, err := rc.client.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var r Report
	if err := json.Unmarshal(val, &r); err != nil {
		return nil, fmt.Errorf("decoding report %s: %w", id, err)
	}

	return &r, nil
}
