package dispatch

import (
	"github.com/buraksezer/consistent"
	"github.com/spaolacci/murmur3"
)

type hasher struct {
}

func (h hasher) Sum64(data []byte) uint64 {
	return murmur3.Sum64(data)
}

type member string

func (m member) String() string {
	return string(m)
}

type RingConfig struct {
	PartitionCount int
}

// Ring maps user ids onto worker names with a consistent hash, so a user
// always lands on the same worker for a fixed worker set.
type Ring struct {
	hring *consistent.Consistent
}

func NewRing(c RingConfig, members []string) *Ring {
	cfg := consistent.Config{
		PartitionCount:    c.PartitionCount,
		ReplicationFactor: 20,
		Load:              1.25,
		Hasher:            hasher{},
	}
	ms := make([]consistent.Member, 0, len(members))
	for _, m := range members {
		ms = append(ms, member(m))
	}
	return &Ring{hring: consistent.New(ms, cfg)}
}

func (r *Ring) Locate(key string) string {
	return r.hring.LocateKey([]byte(key)).String()
}

func (r *Ring) Partition(key string) int {
	return r.hring.FindPartitionID([]byte(key))
}
