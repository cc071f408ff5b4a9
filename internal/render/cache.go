package render

import (
	"sync"

	"github.com/jmylchreest/callhud/internal/model"
)

type cacheKey struct {
	id        string
	visible   string
	relative  string
	countdown string
	width     int
	selected  bool
	plate     bool
	vehicle   bool
}

// Cache memoises rendered cards. A card is redrawn only when something it
// displays changes. The cache never decides what is shown.
type Cache struct {
	renderer *Renderer

	mu      sync.Mutex
	entries map[string]cacheEntry
	hits    int
	misses  int
}

type cacheEntry struct {
	key  cacheKey
	card string
}

// NewCache creates a cache in front of r.
func NewCache(r *Renderer) *Cache {
	return &Cache{
		renderer: r,
		entries:  make(map[string]cacheEntry),
	}
}

// Card returns the rendered card, drawing it only on a key change.
// One entry is kept per call id.
func (c *Cache) Card(call model.Call, relative string, opts Options) string {
	key := cacheKey{
		id:        call.ID,
		visible:   call.VisibleKey(),
		relative:  relative,
		countdown: Countdown(opts.Remaining),
		width:     opts.Width,
		selected:  opts.Selected,
		plate:     opts.ShowPlate,
		vehicle:   opts.ShowVehicle,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[call.ID]; ok && e.key == key {
		c.hits++
		return e.card
	}

	c.misses++
	card := c.renderer.Card(call, relative, opts)
	c.entries[call.ID] = cacheEntry{key: key, card: card}
	return card
}

// Retain drops entries for ids not in live.
func (c *Cache) Retain(live []model.Call) {
	keep := make(map[string]struct{}, len(live))
	for _, call := range live {
		keep[call.ID] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.entries {
		if _, ok := keep[id]; !ok {
			delete(c.entries, id)
		}
	}
}

// Reset replaces the renderer and clears every entry.
func (c *Cache) Reset(r *Renderer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderer = r
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of cached cards.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
