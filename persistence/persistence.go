package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

var ErrNotFound = errors.New("key not found")
var ErrSessionNotFound = errors.New("session not found")
var ErrSessionCorrupt = errors.New("session record unreadable")

const SESSION_KEY string = "SESSION"
const AUDIT_KEY string = "AUDIT"
const PROFILE_KEY string = "PROFILE"
const PENDING_KEY string = "PENDING"
const COMPLETED_KEY string = "COMPLETED"
const COMPLETED_SESSION_KEY string = "COMPLETED_SESSION"
const KNOWN_USERS_KEY string = "KNOWN_USERS"

func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Store is the backend contract. Lists are most-recent-first: Append pushes
// to the head and Latest reads index 0. Range follows LRANGE semantics with
// inclusive bounds and negative stop counted from the tail.
type Store interface {
	Append(ctx context.Context, key string, value []byte) error
	Latest(ctx context.Context, key string) ([]byte, error)
	Range(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	Trim(ctx context.Context, key string, keep int64) error
	AddMember(ctx context.Context, key string, member string) error
	RemoveMember(ctx context.Context, key string, member string) error
	Members(ctx context.Context, key string) ([]string, error)
	Close() error
}

// BoundedAppender is implemented by stores that can push and trim a list in
// one round trip.
type BoundedAppender interface {
	AppendBounded(ctx context.Context, key string, value []byte, keep int64) error
}

// Bounds converts LRANGE style bounds into a half open [from, to) window
// over a list of length n. ok is false when the window is empty.
func Bounds(n int64, start, stop int64) (from int64, to int64, ok bool) {
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop + 1, true
}
