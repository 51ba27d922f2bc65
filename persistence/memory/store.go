package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mohitkumar/intake/persistence"
	c "github.com/patrickmn/go-cache"
)

var _ persistence.Store = new(Store)

// Store keeps lists and sets in a process local cache. Nothing expires.
type Store struct {
	mu    sync.Mutex
	cache *c.Cache
}

func NewStore() *Store {
	return &Store{
		cache: c.New(c.NoExpiration, 0),
	}
}

func (s *Store) list(key string) [][]byte {
	v, found := s.cache.Get(key)
	if !found {
		return nil
	}
	return v.([][]byte)
}

func (s *Store) set(key string) map[string]struct{} {
	v, found := s.cache.Get(key)
	if !found {
		return nil
	}
	return v.(map[string]struct{})
}

func (s *Store) Append(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := make([]byte, len(value))
	copy(item, value)
	old := s.list(key)
	l := make([][]byte, 0, len(old)+1)
	l = append(l, item)
	l = append(l, old...)
	s.cache.Set(key, l, c.NoExpiration)
	return nil
}

func (s *Store) Latest(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.list(key)
	if len(l) == 0 {
		return nil, persistence.ErrNotFound
	}
	return l[0], nil
}

func (s *Store) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.list(key)
	from, to, ok := persistence.Bounds(int64(len(l)), start, stop)
	if !ok {
		return [][]byte{}, nil
	}
	res := make([][]byte, to-from)
	copy(res, l[from:to])
	return res, nil
}

func (s *Store) Trim(ctx context.Context, key string, keep int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.list(key)
	if int64(len(l)) > keep {
		s.cache.Set(key, l[:keep], c.NoExpiration)
	}
	return nil
}

func (s *Store) AddMember(ctx context.Context, key string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.set(key)
	if set == nil {
		set = make(map[string]struct{})
		s.cache.Set(key, set, c.NoExpiration)
	}
	set[member] = struct{}{}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, key string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set := s.set(key); set != nil {
		delete(set, member)
	}
	return nil
}

// Members returns the set sorted, so callers see a stable order.
func (s *Store) Members(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.set(key)
	res := make([]string, 0, len(set))
	for m := range set {
		res = append(res, m)
	}
	sort.Strings(res)
	return res, nil
}

func (s *Store) Close() error {
	s.cache.Flush()
	return nil
}
