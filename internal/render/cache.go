package render

import (
	"bytes"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/observability"
)

// Artifact writes one rendered output.
type Artifact func(buf *bytes.Buffer) error

// Cache memoises rendered artifacts. Keys combine the artifact name with a
// data version so a reload never serves stale output.
type Cache struct {
	cache   *gocache.Cache
	metrics *observability.Metrics
}

// NewCache creates a cache whose entries expire after ttl.
func NewCache(ttl time.Duration, metrics *observability.Metrics) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cache{
		cache:   gocache.New(ttl, 2*ttl),
		metrics: metrics,
	}
}

// Render returns the cached bytes for artifact at version, rendering them on
// a miss. Failed renders are not cached.
func (c *Cache) Render(artifact, version string, render Artifact) ([]byte, error) {
	key := artifact + "@" + version
	if v, ok := c.cache.Get(key); ok {
		c.metrics.RenderCache.WithLabelValues(artifact, "hit").Inc()
		return v.([]byte), nil
	}
	c.metrics.RenderCache.WithLabelValues(artifact, "miss").Inc()

	start := time.Now()
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return nil, err
	}
	c.metrics.RenderDuration.WithLabelValues(artifact).Observe(time.Since(start).Seconds())

	out := buf.Bytes()
	c.cache.SetDefault(key, out)
	return out, nil
}

// Flush drops every cached artifact.
func (c *Cache) Flush() { c.cache.Flush() }

// Len returns the number of cached artifacts.
func (c *Cache) Len() int { return c.cache.ItemCount() }
