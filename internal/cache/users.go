// Package cache holds small in-process caches. The user cache sits in
// front of the users table on the hot path of the auth middleware: every
// request resolves the session's user id, and most of those lookups hit
// the same handful of users.
package cache

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/devmorchid/secureboard/internal/models"
)

type userEntry struct {
	user       *models.User
	expiration time.Time
}

type UserCache struct {
	store sync.Map
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once
}

func NewUserCache(ttl time.Duration) *UserCache {
	c := &UserCache{ttl: ttl, stop: make(chan struct{})}
	go c.cleanup()
	return c
}

func (c *UserCache) Get(id uuid.UUID) (*models.User, bool) {
	item, ok := c.store.Load(id)
	if !ok {
		return nil, false
	}
	entry := item.(*userEntry)
	if time.Now().After(entry.expiration) {
		c.store.Delete(id)
		return nil, false
	}
	return entry.user, true
}

func (c *UserCache) Set(user *models.User) {
	c.store.Store(user.ID, &userEntry{
		user:       user,
		expiration: time.Now().Add(c.ttl),
	})
}

// Invalidate must be called whenever a user row is mutated or deleted,
// otherwise the middleware keeps serving the stale role.
func (c *UserCache) Invalidate(id uuid.UUID) {
	c.store.Delete(id)
}

func (c *UserCache) Len() int {
	count := 0
	c.store.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (c *UserCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.store.Range(func(key, value interface{}) bool {
				if now.After(value.(*userEntry).expiration) {
					c.store.Delete(key)
				}
				return true
			})
		}
	}
}

func (c *UserCache) Close() {
	c.once.Do(func() { close(c.stop) })
}
