package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// MarkSeen records an event id for service and reports whether it was new.
// SETNX keeps two consumers from both treating the same id as fresh.
func MarkSeen(ctx context.Context, rdb *redis.Client, service, eventID string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), dedupClaimed, ttl).Result()
}

const (
	dedupClaimed = "claimed"
	dedupDone    = "done"
)

// Deduper gives one consumer at a time the right to process an event id.
// A claim expires after TTLClaim so a crashed holder does not swallow the
// event; Done keeps the id for TTLDedup.
type Deduper struct {
	RDB     *redis.Client
	Service string
}

func (d *Deduper) Claim(ctx context.Context, eventID string) (bool, error) {
	return MarkSeen(ctx, d.RDB, d.Service, eventID, TTLClaim)
}

func (d *Deduper) Done(ctx context.Context, eventID string) error {
	return d.RDB.Set(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID), dedupDone, TTLDedup).Err()
}

// Release drops a claim so a redelivery can process the event.
func (d *Deduper) Release(ctx context.Context, eventID string) error {
	return d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID)).Err()
}
