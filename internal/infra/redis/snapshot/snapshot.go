package infra_snapshot_cache

import (
	"encoding/json"
	"time"

	"github.com/go-redis/redis"

	"github.com/reelpick/core/internal/model"
)

// Driver caches the whole catalog as one JSON blob with a TTL, keeping
// snapshot reads during readiness checks off the database.
type Driver struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func New(client *redis.Client, key string, ttl time.Duration) *Driver {
	return &Driver{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

func (d *Driver) Get() ([]model.MovieMeta, bool, error) {
	raw, err := d.client.Get(d.key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var items []model.MovieMeta
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func (d *Driver) Set(items []model.MovieMeta) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return d.client.Set(d.key, raw, d.ttl).Err()
}

func (d *Driver) Invalidate() error {
	return d.client.Del(d.key).Err()
}
