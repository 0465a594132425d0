package graph

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// labelCache is the process-local cache mentioned in spec.md §4.4: "a
// process-local cache suppresses repeated label-creation round-trips".
// Bounded by an LRU instead of an unbounded map, but otherwise grounded on
// the teacher's rpc.LabelCache (mutex-guarded map, lazily populated, no
// cross-process invalidation — acceptable per the Open Question in spec.md
// §9 since this core is a single-writer deployment).
type labelCache struct {
	mu    sync.Mutex
	known *lru.Cache[string, struct{}]
}

func newLabelCache() *labelCache {
	c, _ := lru.New[string, struct{}](4096)
	return &labelCache{known: c}
}

// seen reports whether label has already been observed as created, without
// a round-trip.
func (c *labelCache) seen(label string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.known.Get(label)
	return ok
}

// remember records that label has been validated and may be used without
// validating it again.
func (c *labelCache) remember(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known.Add(label, struct{}{})
}
