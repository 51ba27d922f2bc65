package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mohitkumar/intake/logger"
	"github.com/mohitkumar/intake/util"
	"go.uber.org/zap"
)

var ErrStopped = errors.New("dispatcher stopped")
var ErrJobPanicked = errors.New("job panicked")

type Config struct {
	// Workers is the number of shards the lane registry is split into.
	Workers        int
	PartitionCount int
	// Capacity is the queue length of one key's lane.
	Capacity int
}

type job struct {
	ctx  context.Context
	key  string
	fn   func()
	err  error
	done chan struct{}
}

// lane is the FIFO of a single key. It lives while jobs are pending and is
// dropped by the job that empties it.
type lane struct {
	worker  *util.Worker
	pending int
}

type shard struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// Dispatcher serializes work per key. Jobs for one key run one at a time in
// submission order on that key's own lane; different keys never wait on
// each other. The ring only picks the shard holding a key's lane.
type Dispatcher struct {
	ring     *Ring
	shards   map[string]*shard
	capacity int
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	stopc    chan struct{}
}

func NewDispatcher(conf Config) *Dispatcher {
	if conf.Workers <= 0 {
		conf.Workers = 1
	}
	if conf.PartitionCount <= 0 {
		conf.PartitionCount = 271
	}
	if conf.Capacity <= 0 {
		conf.Capacity = 64
	}
	d := &Dispatcher{
		shards:   make(map[string]*shard, conf.Workers),
		capacity: conf.Capacity,
		stopc:    make(chan struct{}),
	}
	names := make([]string, 0, conf.Workers)
	for i := 0; i < conf.Workers; i++ {
		name := fmt.Sprintf("session-shard-%d", i)
		names = append(names, name)
		d.shards[name] = &shard{lanes: make(map[string]*lane)}
	}
	d.ring = NewRing(RingConfig{PartitionCount: conf.PartitionCount}, names)
	return d
}

func (d *Dispatcher) Start() {
	logger.Info("dispatcher started", zap.Int("shards", len(d.shards)))
}

func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.stopc)
	d.mu.Unlock()
	for _, s := range d.shards {
		s.mu.Lock()
		for key, l := range s.lanes {
			l.worker.Stop()
			delete(s.lanes, key)
		}
		s.mu.Unlock()
	}
	d.wg.Wait()
	return nil
}

// WorkerFor names the shard that owns key.
func (d *Dispatcher) WorkerFor(key string) string {
	return d.ring.Locate(key)
}

// Lanes reports how many keys currently have a live lane.
func (d *Dispatcher) Lanes() int {
	n := 0
	for _, s := range d.shards {
		s.mu.Lock()
		n += len(s.lanes)
		s.mu.Unlock()
	}
	return n
}

func (d *Dispatcher) acquire(key string) (*shard, *lane) {
	s := d.shards[d.ring.Locate(key)]
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lanes[key]
	if !ok {
		l = &lane{worker: util.NewWorker(key, &d.wg, d.handle, d.capacity)}
		l.worker.Start()
		s.lanes[key] = l
	}
	l.pending++
	return s, l
}

func (d *Dispatcher) release(key string) {
	s := d.shards[d.ring.Locate(key)]
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lanes[key]
	if !ok {
		return
	}
	l.pending--
	if l.pending <= 0 {
		delete(s.lanes, key)
		l.worker.Stop()
	}
}

func (d *Dispatcher) handle(t util.Task) (err error) {
	j := t.(*job)
	defer d.release(j.key)
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			j.err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
			err = j.err
		}
	}()
	if ctxErr := j.ctx.Err(); ctxErr != nil {
		j.err = ctxErr
		return nil
	}
	j.fn()
	return nil
}

// Do runs fn on key's lane and waits for it to finish.
func (d *Dispatcher) Do(ctx context.Context, key string, fn func()) error {
	d.mu.RLock()
	if d.stopped {
		d.mu.RUnlock()
		return ErrStopped
	}
	_, l := d.acquire(key)
	j := &job{ctx: ctx, key: key, fn: fn, done: make(chan struct{})}
	select {
	case l.worker.Sender() <- j:
		d.mu.RUnlock()
	case <-ctx.Done():
		d.mu.RUnlock()
		d.release(key)
		return ctx.Err()
	}
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopc:
		return ErrStopped
	}
}
