package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mohitkumar/intake/dispatch"
	"github.com/mohitkumar/intake/engine"
	"github.com/mohitkumar/intake/flow"
	"github.com/mohitkumar/intake/model"
	"github.com/mohitkumar/intake/persistence"
	"github.com/mohitkumar/intake/persistence/memory"
	"github.com/mohitkumar/intake/recorder"
	"github.com/mohitkumar/intake/util"
	"github.com/stretchr/testify/require"
)

type countingNotifier struct {
	mu    sync.Mutex
	users []string
}

func (n *countingNotifier) Remind(ctx context.Context, userId string, prompt *model.Prompt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userId)
	return nil
}

func newService(t *testing.T) *engine.Service {
	t.Helper()
	flows, err := flow.LoadBuiltin()
	require.NoError(t, err)
	registry := flow.NewRegistry(flows...)
	store := memory.NewStore()
	sessions := persistence.NewSessionRepository(store, util.NewJsonEncoderDecoder[model.SessionState](), 10)
	rec := recorder.NewRecorder(
		persistence.NewAuditRepository(store, util.NewJsonEncoderDecoder[model.AuditEvent]()),
		persistence.NewProfileRepository(store, util.NewJsonEncoderDecoder[model.ProfileSnapshot]()),
	)
	controller := engine.NewController(registry, sessions, rec, nil, nil, engine.Config{})
	d := dispatch.NewDispatcher(dispatch.Config{Workers: 2})
	d.Start()
	t.Cleanup(func() { _ = d.Stop() })
	return engine.NewService(controller, d)
}

func TestSweepRemindsPendingUsersOnce(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	for _, id := range []string{"1", "2"} {
		_, err := svc.Start(ctx, flow.ONBOARDING, model.User{Id: id}, engine.START_RESET)
		require.NoError(t, err)
	}
	n := &countingNotifier{}
	r := NewReminder(svc, n, Config{Interval: time.Hour, Idle: 0}, &sync.WaitGroup{})

	require.Equal(t, 2, r.Sweep(ctx))
	require.ElementsMatch(t, []string{"1", "2"}, n.users)
	require.Equal(t, 0, r.Sweep(ctx))
}

func TestSweepSkipsRecentActivity(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	_, err := svc.Start(ctx, flow.ONBOARDING, model.User{Id: "1"}, engine.START_RESET)
	require.NoError(t, err)

	n := &countingNotifier{}
	r := NewReminder(svc, n, Config{Interval: time.Hour, Idle: time.Hour}, &sync.WaitGroup{})
	require.Equal(t, 0, r.Sweep(ctx))
	require.Empty(t, n.users)
}

func TestTickerDrivesSweep(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	_, err := svc.Start(ctx, flow.ONBOARDING, model.User{Id: "1"}, engine.START_RESET)
	require.NoError(t, err)

	n := &countingNotifier{}
	var wg sync.WaitGroup
	r := NewReminder(svc, n, Config{Interval: 10 * time.Millisecond, Idle: 0}, &wg)
	r.Start()
	require.Eventually(t, func() bool {
		n.mu.Lock()
		defer n.mu.Unlock()
		return len(n.users) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, r.Stop())
	wg.Wait()
}
