package snapshots

import (
	"context"
	"time"

	"github.com/angelmondragon/tebex-storefront/internal/basket"
	"github.com/angelmondragon/tebex-storefront/pkg/redis"
)

// RedisPersister keeps one JSON record per session under the basket namespace.
type RedisPersister struct {
	kv  redis.KV
	ttl time.Duration
}

// NewRedisPersister binds the persister to kv. A zero ttl keeps records forever.
func NewRedisPersister(kv redis.KV, ttl time.Duration) *RedisPersister {
	return &RedisPersister{kv: kv, ttl: ttl}
}

func (p *RedisPersister) Load(ctx context.Context, key string) (basket.Snapshot, bool, error) {
	payload, err := p.kv.Get(ctx, p.kv.BasketKey(key))
	if redis.IsNil(err) {
		return basket.Snapshot{}, false, nil
	}
	if err != nil {
		return basket.Snapshot{}, false, err
	}
	return decode(payload)
}

func (p *RedisPersister) Save(ctx context.Context, key string, snap basket.Snapshot) error {
	payload, err := encode(snap)
	if err != nil {
		return err
	}
	return p.kv.Set(ctx, p.kv.BasketKey(key), payload, p.ttl)
}

func (p *RedisPersister) Delete(ctx context.Context, key string) error {
	return p.kv.Del(ctx, p.kv.BasketKey(key))
}
