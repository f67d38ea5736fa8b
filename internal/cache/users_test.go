package cache

import (
	"testing"
	"time"

	"github.com/gofrs/uuid"

	"github.com/devmorchid/secureboard/internal/models"
)

func TestUserCacheSetGet(t *testing.T) {
	c := NewUserCache(time.Minute)
	defer c.Close()

	user := &models.User{ID: uuid.Must(uuid.NewV4()), Name: "Ada", Role: "manager"}
	c.Set(user)

	got, ok := c.Get(user.ID)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Name != "Ada" || got.Role != "manager" {
		t.Errorf("cached user = %+v", got)
	}

	if _, ok := c.Get(uuid.Must(uuid.NewV4())); ok {
		t.Error("expected miss for unknown id")
	}
}

func TestUserCacheExpiry(t *testing.T) {
	c := NewUserCache(10 * time.Millisecond)
	defer c.Close()

	user := &models.User{ID: uuid.Must(uuid.NewV4())}
	c.Set(user)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get(user.ID); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestUserCacheInvalidate(t *testing.T) {
	c := NewUserCache(time.Minute)
	defer c.Close()

	user := &models.User{ID: uuid.Must(uuid.NewV4())}
	c.Set(user)
	c.Invalidate(user.ID)

	if _, ok := c.Get(user.ID); ok {
		t.Error("expected invalidated entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}
