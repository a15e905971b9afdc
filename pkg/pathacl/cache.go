package pathacl

import "sync"

// decisionKey is the exact request tuple a decision is cached under.
type decisionKey struct {
	user       string
	ip         string
	path       string
	permission string
}

// decisionCache stores boolean decisions per request tuple. It is
// unbounded; entries live until Clear.
type decisionCache struct {
	mu      sync.RWMutex
	entries map[decisionKey]bool
}

func newDecisionCache() *decisionCache {
	return &decisionCache{
		entries: make(map[decisionKey]bool),
	}
}

func (c *decisionCache) get(key decisionKey) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	decision, ok := c.entries[key]
	return decision, ok
}

func (c *decisionCache) set(key decisionKey, decision bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = decision
}

func (c *decisionCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[decisionKey]bool)
}

func (c *decisionCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
