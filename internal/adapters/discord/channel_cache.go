package discord

import "sync"

// channelCache remembers resolved channel ids per guild so the feed does not
// list guild channels on every message.
type channelCache struct {
	mu    sync.RWMutex
	items map[channelKey]string
}

type channelKey struct {
	guildID string
	name    string
}

func newChannelCache() *channelCache {
	return &channelCache{items: make(map[channelKey]string)}
}

func (c *channelCache) Get(guildID, channelName string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.items[channelKey{guildID, channelName}]
	return id, ok
}

func (c *channelCache) Set(guildID, channelName, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[channelKey{guildID, channelName}] = id
}

func (c *channelCache) Invalidate(guildID, channelName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, channelKey{guildID, channelName})
}
