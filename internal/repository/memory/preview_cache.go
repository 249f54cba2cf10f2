package memory

import (
	"strconv"
	"time"

	"therapy-chat-be/internal/dto"

	"github.com/patrickmn/go-cache"
)

// PreviewCache keeps export previews keyed by filter hash and limit.
type PreviewCache struct {
	cache *cache.Cache
}

func NewPreviewCache(ttl time.Duration) *PreviewCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PreviewCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func previewKey(filterHash string, limit int) string {
	return filterHash + ":" + strconv.Itoa(limit)
}

func (c *PreviewCache) Save(filterHash string, limit int, preview *dto.ExportPreviewResponse) {
	c.cache.Set(previewKey(filterHash, limit), preview, cache.DefaultExpiration)
}

func (c *PreviewCache) Get(filterHash string, limit int) (*dto.ExportPreviewResponse, bool) {
	if x, found := c.cache.Get(previewKey(filterHash, limit)); found {
		return x.(*dto.ExportPreviewResponse), true
	}
	return nil, false
}

// Flush drops every preview. Annotation writes call it since they change
// what the view returns.
func (c *PreviewCache) Flush() {
	c.cache.Flush()
}
