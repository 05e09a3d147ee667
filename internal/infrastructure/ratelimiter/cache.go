package ratelimiter

import (
	"errors"
	"time"
)

// ErrBucketMiss is returned when a source has no bucket state yet, or its
// state has expired.
var ErrBucketMiss = errors.New("bucket miss")

// BucketStore holds per-source token bucket state with optional expiry, so
// idle sources age out instead of accumulating.
type BucketStore interface {
	Get(key string) (int, error)
	Set(key string, value int) error
	SetWithExpiration(key string, value int, expiration time.Duration) error
	Close() error
}
