package cache

import (
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/intake/model"
	c "github.com/patrickmn/go-cache"
)

// Handle ties a rendered prompt to the session state it was rendered from.
type Handle struct {
	Workflow string
	UserId   string
	StepId   string
}

// HandleCache holds short lived presentation handles. Losing an entry is
// harmless: the caller treats it as stale and recovers from the store.
type HandleCache struct {
	cache *c.Cache
}

func NewHandleCache(ttl time.Duration) *HandleCache {
	cleanup := ttl
	if cleanup <= 0 {
		ttl = c.NoExpiration
		cleanup = 10 * time.Minute
	}
	return &HandleCache{
		cache: c.New(ttl, cleanup),
	}
}

// Issue stores a new handle for p and sets it on the prompt.
func (hc *HandleCache) Issue(userId string, p *model.Prompt) string {
	if p == nil {
		return ""
	}
	id := uuid.NewString()
	hc.cache.SetDefault(id, Handle{Workflow: p.Workflow, UserId: userId, StepId: p.StepId})
	p.Handle = id
	return id
}

func (hc *HandleCache) Resolve(handle string) (Handle, bool) {
	if handle == "" {
		return Handle{}, false
	}
	v, found := hc.cache.Get(handle)
	if !found {
		return Handle{}, false
	}
	return v.(Handle), true
}

// Valid reports whether handle was issued for this workflow and user.
func (hc *HandleCache) Valid(handle string, wfName string, userId string) (Handle, bool) {
	h, ok := hc.Resolve(handle)
	if !ok || h.Workflow != wfName || h.UserId != userId {
		return Handle{}, false
	}
	return h, true
}

func (hc *HandleCache) Invalidate(handle string) {
	hc.cache.Delete(handle)
}
