package memory

import (
	"testing"
	"time"

	"therapy-chat-be/internal/dto"

	"github.com/stretchr/testify/assert"
)

func TestPreviewCacheKeysByHashAndLimit(t *testing.T) {
	c := NewPreviewCache(time.Minute)
	preview := &dto.ExportPreviewResponse{FilterHash: "abc", Total: 3}

	c.Save("abc", 100, preview)

	got, ok := c.Get("abc", 100)
	assert.True(t, ok)
	assert.Same(t, preview, got)

	_, ok = c.Get("abc", 50)
	assert.False(t, ok)

	c.Flush()
	_, ok = c.Get("abc", 100)
	assert.False(t, ok)
}

func TestPreviewCacheExpires(t *testing.T) {
	c := NewPreviewCache(10 * time.Millisecond)
	c.Save("abc", 1, &dto.ExportPreviewResponse{})

	assert.Eventually(t, func() bool {
		_, ok := c.Get("abc", 1)
		return !ok
	}, time.Second, 5*time.Millisecond)
}
