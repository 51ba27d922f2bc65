package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/mohitkumar/intake/model"
	"github.com/mohitkumar/intake/persistence"
	"github.com/mohitkumar/intake/persistence/memory"
	"github.com/mohitkumar/intake/util"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repo := persistence.NewSessionRepository(store, util.NewJsonEncoderDecoder[model.SessionState](), 2)

	_, err := repo.Load(ctx, "onboarding", "7")
	require.ErrorIs(t, err, persistence.ErrSessionNotFound)

	now := time.Now()
	state := model.NewSessionState("s1", "onboarding", "7", "name", now)
	require.NoError(t, repo.Save(ctx, state))

	state.Current = "important_today"
	state.MarkVisited("important_today")
	require.NoError(t, repo.Save(ctx, state))

	loaded, err := repo.Load(ctx, "onboarding", "7")
	require.NoError(t, err)
	require.Equal(t, "important_today", loaded.Current)
	require.Equal(t, []string{"name", "important_today"}, loaded.Visited)

	pending, err := repo.Pending(ctx, "onboarding")
	require.NoError(t, err)
	require.Equal(t, []string{"7"}, pending)

	state.Completed = true
	require.NoError(t, repo.Save(ctx, state))
	pending, err = repo.Pending(ctx, "onboarding")
	require.NoError(t, err)
	require.Empty(t, pending)
	completed, err := repo.Completed(ctx, "onboarding")
	require.NoError(t, err)
	require.Equal(t, []string{"7"}, completed)

	history, err := repo.History(ctx, "onboarding", "7", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestSessionRepositoryCorruptRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repo := persistence.NewSessionRepository(store, util.NewJsonEncoderDecoder[model.SessionState](), 0)

	require.NoError(t, store.Append(ctx, persistence.Key(persistence.SESSION_KEY, "onboarding", "9"), []byte("{not json")))
	_, err := repo.Load(ctx, "onboarding", "9")
	require.ErrorIs(t, err, persistence.ErrSessionCorrupt)
}

func TestAuditRepositoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewAuditRepository(memory.NewStore(), util.NewJsonEncoderDecoder[model.AuditEvent]())
	for _, action := range []string{"start", "name", "back"} {
		require.NoError(t, repo.Append(ctx, "1", model.AuditEvent{Action: action, At: time.Now()}))
	}
	events, err := repo.List(ctx, "1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "back", events[0].Action)
	require.Equal(t, "start", events[2].Action)

	events, err = repo.List(ctx, "1", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestProfileRepository(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repo := persistence.NewProfileRepository(store, util.NewJsonEncoderDecoder[model.ProfileSnapshot]())

	latest, err := repo.Latest(ctx, "1")
	require.NoError(t, err)
	require.Nil(t, latest)

	require.NoError(t, repo.Append(ctx, "1", model.ProfileSnapshot{FullName: "Анна"}))
	latest, err = repo.Latest(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "Анна", latest.FullName)

	known, err := store.Members(ctx, persistence.KNOWN_USERS_KEY)
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, known)
}

func TestBounds(t *testing.T) {
	from, to, ok := persistence.Bounds(5, 0, -1)
	require.True(t, ok)
	require.Equal(t, int64(0), from)
	require.Equal(t, int64(5), to)

	from, to, ok = persistence.Bounds(5, 1, 10)
	require.True(t, ok)
	require.Equal(t, int64(1), from)
	require.Equal(t, int64(5), to)

	_, _, ok = persistence.Bounds(0, 0, -1)
	require.False(t, ok)

	_, _, ok = persistence.Bounds(3, 2, 1)
	require.False(t, ok)
}

func TestSessionRepositoryLatestValid(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repo := persistence.NewSessionRepository(store, util.NewJsonEncoderDecoder[model.SessionState](), 10)

	_, err := repo.LatestValid(ctx, "onboarding", "5")
	require.ErrorIs(t, err, persistence.ErrSessionNotFound)

	state := model.NewSessionState("s1", "onboarding", "5", "name", time.Now())
	require.NoError(t, repo.Save(ctx, state))
	state.Current = "important_today"
	require.NoError(t, repo.Save(ctx, state))
	key := persistence.Key(persistence.SESSION_KEY, "onboarding", "5")
	require.NoError(t, store.Append(ctx, key, []byte("{garbage")))
	require.NoError(t, store.Append(ctx, key, []byte(`{"id":"x"}`)))

	_, err = repo.Load(ctx, "onboarding", "5")
	require.ErrorIs(t, err, persistence.ErrSessionCorrupt)
	valid, err := repo.LatestValid(ctx, "onboarding", "5")
	require.NoError(t, err)
	require.Equal(t, "important_today", valid.Current)
}

func TestSessionRepositoryLastCompletedSurvivesTrim(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewSessionRepository(memory.NewStore(), util.NewJsonEncoderDecoder[model.SessionState](), 1)

	last, err := repo.LastCompleted(ctx, "onboarding", "3")
	require.NoError(t, err)
	require.Nil(t, last)

	done := model.NewSessionState("s1", "onboarding", "3", "thanks", time.Now())
	done.Completed = true
	require.NoError(t, repo.Save(ctx, done))

	again := model.NewSessionState("s2", "onboarding", "3", "welcome", time.Now())
	require.NoError(t, repo.Save(ctx, again))
	again.Current = "preonboarding"
	require.NoError(t, repo.Save(ctx, again))

	last, err = repo.LastCompleted(ctx, "onboarding", "3")
	require.NoError(t, err)
	require.NotNil(t, last)
	require.Equal(t, "s1", last.Id)
}
