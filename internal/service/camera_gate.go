package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CameraGate is the advisory camera-in-use flag. Acquire returns false when
// another session already holds the camera.
type CameraGate interface {
	Acquire(ctx context.Context, owner string) (bool, error)
	Release(ctx context.Context, owner string) error
	Busy(ctx context.Context) (bool, error)
}

// LocalCameraGate guards the camera within one process.
type LocalCameraGate struct {
	mu    sync.Mutex
	owner string
}

// NewLocalCameraGate constructs an unheld gate.
func NewLocalCameraGate() *LocalCameraGate {
	return &LocalCameraGate{}
}

// Acquire implements CameraGate.
func (g *LocalCameraGate) Acquire(ctx context.Context, owner string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owner != "" {
		return false, nil
	}
	g.owner = owner
	return true, nil
}

// Release implements CameraGate. Releasing a gate held by someone else is a no-op.
func (g *LocalCameraGate) Release(ctx context.Context, owner string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owner == owner {
		g.owner = ""
	}
	return nil
}

// Busy implements CameraGate.
func (g *LocalCameraGate) Busy(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owner != "", nil
}

type redisGateClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCameraGate shares the camera flag between processes on one host.
// The TTL bounds how long a crashed holder can keep the camera flagged.
type RedisCameraGate struct {
	client redisGateClient
	key    string
	ttl    time.Duration
}

// NewRedisCameraGate constructs a gate stored under key.
func NewRedisCameraGate(client redisGateClient, key string, ttl time.Duration) *RedisCameraGate {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisCameraGate{client: client, key: key, ttl: ttl}
}

// Acquire implements CameraGate.
func (g *RedisCameraGate) Acquire(ctx context.Context, owner string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key, owner, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", g.key, err)
	}
	return ok, nil
}

// Release implements CameraGate. The check and delete are separate commands,
// which is acceptable for an advisory flag.
func (g *RedisCameraGate) Release(ctx context.Context, owner string) error {
	current, err := g.client.Get(ctx, g.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("redis get %s: %w", g.key, err)
	}
	if current != owner {
		return nil
	}
	if err := g.client.Del(ctx, g.key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", g.key, err)
	}
	return nil
}

// Busy implements CameraGate.
func (g *RedisCameraGate) Busy(ctx context.Context) (bool, error) {
	n, err := g.client.Exists(ctx, g.key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", g.key, err)
	}
	return n > 0, nil
}
