// Package store is the durable client-state storage used for the session and
// the last submission result.
package store

import (
	"context"
	"sync"
	"time"

	"loangenius/internal/common/database"
	"loangenius/internal/common/errors"
)

// Well-known keys.
const (
	KeyUserData   = "userData"
	KeyAuthToken  = "authToken"
	KeyLoanOffers = "loanOffers"
	KeyLeadInfo   = "leadInfo"
)

// KV is a string key/value store. Get reports a missing key with ok=false
// and a nil error.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Memory is an in-process KV.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: map[string]string{}}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Redis stores keys under "<namespace>:<key>".
type Redis struct {
	client    *database.RedisClient
	namespace string
	ttl       time.Duration
}

// NewRedis returns a Redis KV. A zero ttl keeps keys until deleted.
func NewRedis(client *database.RedisClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{client: client, namespace: namespace, ttl: ttl}
}

func (r *Redis) key(k string) string {
	if r.namespace == "" {
		return k
	}
	return r.namespace + ":" + k
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key))
	if err != nil {
		if database.IsNil(err) {
			return "", false, nil
		}
		return "", false, errors.NewStorageError("get", err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl); err != nil {
		return errors.NewStorageError("set", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...); err != nil {
		return errors.NewStorageError("delete", err)
	}
	return nil
}
