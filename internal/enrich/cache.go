package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const titleTTL = 24 * time.Hour

// Cache is an optional Redis cache in front of title fetches, so that
// re-adding a url does not hit the remote page again. All cache
// failures are swallowed; the fetcher just goes to the network.
type Cache struct {
	client *redis.Client
	prefix string
}

func NewCache(redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Cache{client: client, prefix: "title:"}, nil
}

// NewCacheWithClient creates a cache from an existing Redis client.
func NewCacheWithClient(client *redis.Client) *Cache {
	return &Cache{client: client, prefix: "title:"}
}

func (c *Cache) key(rawURL string) string {
	return c.prefix + rawURL
}

func (c *Cache) GetTitle(ctx context.Context, rawURL string) (string, bool) {
	title, err := c.client.Get(ctx, c.key(rawURL)).Result()
	if err != nil {
		return "", false
	}
	return title, true
}

func (c *Cache) SetTitle(ctx context.Context, rawURL, title string) {
	_ = c.client.Set(ctx, c.key(rawURL), title, titleTTL).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
