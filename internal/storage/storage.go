package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Package storage persists the newsletter dedup checkpoint.

// Checkpoint holds the last successfully processed newsletter URL.
type Checkpoint interface {
	// Read returns the stored value; ok is false when nothing was stored yet.
	Read(ctx context.Context) (value string, ok bool, err error)
	// Write overwrites the stored value.
	Write(ctx context.Context, value string) error
	Close() error
}

// Options configures the concrete checkpoint backends.
type Options struct {
	Path          string
	BBoltPath     string
	Key           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	OpenTimeout   time.Duration
}

const (
	defaultKey         = "last_newsletter_url"
	defaultOpenTimeout = time.Second
)

// NewCheckpoint creates the configured checkpoint backend.
func NewCheckpoint(typ string, opts Options) (Checkpoint, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "file":
		if strings.TrimSpace(opts.Path) == "" {
			return nil, fmt.Errorf("file checkpoint requires a path")
		}
		return newFileCheckpoint(opts.Path), nil
	case "bbolt":
		if strings.TrimSpace(opts.BBoltPath) == "" {
			return nil, fmt.Errorf("bbolt checkpoint requires a path")
		}
		return openBolt(opts.BBoltPath, opts)
	case "redis":
		return newRedisCheckpoint(opts)
	case "memory":
		return NewMemoryCheckpoint(""), nil
	default:
		return nil, fmt.Errorf("unsupported checkpoint type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if strings.TrimSpace(opts.Key) == "" {
		opts.Key = defaultKey
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}
	return opts
}
