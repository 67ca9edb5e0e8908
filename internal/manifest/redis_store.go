// Package manifest keeps a short-lived record of each generation in Redis.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"exchangedocs/internal/generate"
	"exchangedocs/internal/resolve"
)

// ErrNotFound is returned when a manifest is unknown or has expired.
var ErrNotFound = errors.New("manifest not found")

const defaultTTL = 7 * 24 * time.Hour

// Manifest summarizes one successful generation.
type Manifest struct {
	ID            string            `msgpack:"id" json:"id"`
	TemplateID    string            `msgpack:"template_id" json:"templateId"`
	TemplateName  string            `msgpack:"template_name" json:"templateName"`
	CaseID        string            `msgpack:"case_id" json:"caseId"`
	DocumentRef   string            `msgpack:"document_ref" json:"documentRef"`
	Path          string            `msgpack:"path" json:"path"`
	ContentType   string            `msgpack:"content_type" json:"contentType"`
	ResolvedCount int               `msgpack:"resolved_count" json:"resolvedCount"`
	Replacements  int               `msgpack:"replacements" json:"replacements"`
	Resolutions   resolve.Map       `msgpack:"resolutions" json:"resolutions"`
	Warnings      []resolve.Warning `msgpack:"warnings" json:"warnings"`
	CreatedAt     time.Time         `msgpack:"created_at" json:"createdAt"`
}

// FromResult copies the persisted fields of a generation result.
func FromResult(r *generate.Result) Manifest {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []resolve.Warning{}
	}
	return Manifest{
		ID:            r.ID,
		TemplateID:    r.TemplateID,
		TemplateName:  r.TemplateName,
		CaseID:        r.CaseID,
		DocumentRef:   r.DocumentRef,
		Path:          r.Path,
		ContentType:   r.ContentType,
		ResolvedCount: r.ResolvedCount,
		Replacements:  r.Replacements,
		Resolutions:   r.Resolutions,
		Warnings:      warnings,
		CreatedAt:     r.CreatedAt,
	}
}

// RedisStore stores manifests as msgpack blobs with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to redisURL. A non-positive ttl uses seven days.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: "generation:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Save(ctx context.Context, m Manifest) error {
	if m.ID == "" {
		return errors.New("save manifest: empty id")
	}
	data, err := msgpack.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := s.client.Set(ctx, s.key(m.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Manifest, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Manifest{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("get manifest: %w", err)
	}

	var m Manifest
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return m, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
