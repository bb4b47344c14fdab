// Package tagcache holds the attribute values the grouping core reads.
// The core never opens files; it only asks a cache for (frame, tag)
// findings that were materialized beforehand.
package tagcache

import (
	"sync"

	"dicomblocks/internal/models"
)

// MapCache is an in-memory tag cache. It is safe for concurrent use.
type MapCache struct {
	mu     sync.RWMutex
	frames map[string]map[models.Tag]string
	order  []string
}

// NewMapCache creates an empty cache
func NewMapCache() *MapCache {
	return &MapCache{
		frames: make(map[string]map[models.Tag]string),
	}
}

// Add registers frameID without any attribute. Adding a known frame is
// a no-op.
func (c *MapCache) Add(frameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(frameID)
}

// Set stores value for tag of frameID. Frames are remembered in the
// order they were first seen.
func (c *MapCache) Set(frameID string, tag models.Tag, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(frameID)[tag] = value
}

func (c *MapCache) add(frameID string) map[models.Tag]string {
	tags, ok := c.frames[frameID]
	if !ok {
		tags = make(map[models.Tag]string)
		c.frames[frameID] = tags
		c.order = append(c.order, frameID)
	}
	return tags
}

// SetAll stores several tags of one frame
func (c *MapCache) SetAll(frameID string, values map[models.Tag]string) {
	for t, v := range values {
		c.Set(frameID, t, v)
	}
}

// Lookup implements models.TagLookup. Unknown frames and absent tags
// yield an invalid finding; MapCache never returns an error.
func (c *MapCache) Lookup(frameID string, tag models.Tag) (models.Finding, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if v, ok := c.frames[frameID][tag]; ok {
		return models.Found(v), nil
	}
	return models.Missing(), nil
}

// FrameIDs returns all frames in insertion order
func (c *MapCache) FrameIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids
}

// Len returns the number of frames in the cache
func (c *MapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
