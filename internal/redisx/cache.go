package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/campus-market/internal/orders"
	"github.com/redis/go-redis/v9"
)

type statusEntry struct {
	Status    orders.Status `json:"status"`
	Rank      int           `json:"rank"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// advanceScript sets KEYS[1] to ARGV[1] unless the stored entry has a higher
// rank than ARGV[2]. Unreadable entries are overwritten.
var advanceScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local ok, e = pcall(cjson.decode, cur)
	if ok and type(e) == 'table' and tonumber(e.rank) and tonumber(e.rank) > tonumber(ARGV[2]) then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// StatusCache implements orders.StatusCache.
type StatusCache struct {
	RDB *redis.Client
}

// AdvanceStatus writes s unless the cache already holds a later status.
func (c *StatusCache) AdvanceStatus(ctx context.Context, orderID int64, s orders.Status) error {
	_, err := c.advance(ctx, orderID, s)
	return err
}

func (c *StatusCache) advance(ctx context.Context, orderID int64, s orders.Status) (bool, error) {
	b, err := json.Marshal(statusEntry{Status: s, Rank: s.Rank(), UpdatedAt: time.Now().UTC()})
	if err != nil {
		return false, err
	}
	n, err := advanceScript.Run(ctx, c.RDB,
		[]string{fmt.Sprintf(KeyOrderStatus, orderID)},
		b, s.Rank(), TTLStatusCache.Milliseconds()).Int()
	return n == 1, err
}

func (c *StatusCache) GetStatus(ctx context.Context, orderID int64) (orders.Status, bool, error) {
	raw, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	var e statusEntry
	if err := json.Unmarshal(raw, &e); err != nil || !e.Status.Valid() {
		// unreadable entries are treated as a miss and get overwritten
		return "", false, nil
	}
	return e.Status, true, nil
}
