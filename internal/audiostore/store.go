package audiostore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Clip is one synthesized reply held for URL-based delivery.
type Clip struct {
	Data        []byte
	ContentType string
}

// ErrNotFound marks an unknown or expired clip id.
var ErrNotFound = errors.New("audio clip not found")

// Store holds synthesized audio for a bounded time so the caller can
// fetch it by URL instead of receiving it inline.
type Store interface {
	Put(ctx context.Context, id string, clip Clip) error
	Get(ctx context.Context, id string) (Clip, error)
	Close() error
}

// Options selects the clip backend. A configured Redis address enables
// shared storage; otherwise clips live in process memory.
type Options struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

func New(ctx context.Context, opts Options) (Store, error) {
	if opts.TTL <= 0 {
		opts.TTL = 15 * time.Minute
	}
	if strings.TrimSpace(opts.RedisAddr) != "" {
		return newRedisStore(ctx, opts)
	}
	return newMemoryStore(opts.TTL), nil
}

type memoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	clips map[string]memoryClip
}

type memoryClip struct {
	clip      Clip
	expiresAt time.Time
}

func newMemoryStore(ttl time.Duration) *memoryStore {
	return &memoryStore{ttl: ttl, clips: make(map[string]memoryClip)}
}

func (s *memoryStore) Put(_ context.Context, id string, clip Clip) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.clips {
		if now.After(v.expiresAt) {
			delete(s.clips, k)
		}
	}
	s.clips[id] = memoryClip{clip: clip, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.clips[id]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.clips, id)
		return Clip{}, ErrNotFound
	}
	return entry.clip, nil
}

func (s *memoryStore) Close() error { return nil }
