package transcript

import (
	"context"
	"strings"
)

// Options selects the transcript backend. DatabaseURL wins over
// RedisAddr; with neither set the store is in-memory.
type Options struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewStore creates a postgres- or redis-backed store when configured,
// otherwise in-memory.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	if strings.TrimSpace(opts.DatabaseURL) != "" {
		return NewPostgresStore(ctx, opts.DatabaseURL)
	}
	if strings.TrimSpace(opts.RedisAddr) != "" {
		return NewRedisStore(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	}
	return NewInMemoryStore(), nil
}
