package gallery

import (
	"context"
	"testing"
	"time"

	"github.com/mohitkumar/intake/flow"
	"github.com/mohitkumar/intake/model"
	"github.com/mohitkumar/intake/persistence"
	"github.com/mohitkumar/intake/persistence/memory"
	"github.com/mohitkumar/intake/util"
	"github.com/stretchr/testify/require"
)

func completedSession(userId string, name string, photo string) *model.SessionState {
	s := model.NewSessionState(userId+"-s", flow.ONBOARDING, userId, "welcome", time.Now())
	s.Answers["name"] = model.AnswerRecord{StepId: "name", Text: name}
	s.Answers["no_photo"] = model.AnswerRecord{StepId: "no_photo", Media: &model.MediaRef{FileId: photo}}
	s.Answers["step_1"] = model.AnswerRecord{StepId: "step_1", Text: "hello"}
	s.Current = "thanks"
	s.Completed = true
	return s
}

func TestGalleryWrapsAround(t *testing.T) {
	ctx := context.Background()
	flows, err := flow.LoadBuiltin()
	require.NoError(t, err)
	registry := flow.NewRegistry(flows...)
	sessions := persistence.NewSessionRepository(memory.NewStore(), util.NewJsonEncoderDecoder[model.SessionState](), 10)

	_, err = NewGallery(registry, sessions).Page(ctx, flow.ONBOARDING, 0, "")
	require.ErrorIs(t, err, ErrEmpty)

	require.NoError(t, sessions.Save(ctx, completedSession("a", "Анна Иванова", "pa")))
	require.NoError(t, sessions.Save(ctx, completedSession("b", "Борис Петров", "pb")))
	require.NoError(t, sessions.Save(ctx, completedSession("c", "Вера Сидорова", "pc")))

	g := NewGallery(registry, sessions)
	page, err := g.Page(ctx, flow.ONBOARDING, 0, "b")
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 2, page.Prev)
	require.Equal(t, 1, page.Next)
	require.Equal(t, "Анна Иванова", page.Card.Name)
	require.Equal(t, "pa", page.Card.PhotoFileId)
	require.Equal(t, "hello", page.Card.Answers["step_1"])
	require.False(t, page.Card.Own)

	page, err = g.Page(ctx, flow.ONBOARDING, -1, "c")
	require.NoError(t, err)
	require.Equal(t, 2, page.Index)
	require.Equal(t, 0, page.Next)
	require.True(t, page.Card.Own)

	page, err = g.Page(ctx, flow.ONBOARDING, 4, "")
	require.NoError(t, err)
	require.Equal(t, "b", page.Card.UserId)
}

func TestGalleryUsesLastCompletedRun(t *testing.T) {
	ctx := context.Background()
	flows, err := flow.LoadBuiltin()
	require.NoError(t, err)
	registry := flow.NewRegistry(flows...)
	sessions := persistence.NewSessionRepository(memory.NewStore(), util.NewJsonEncoderDecoder[model.SessionState](), 10)

	require.NoError(t, sessions.Save(ctx, completedSession("a", "Анна Иванова", "pa")))
	restarted := model.NewSessionState("a-2", flow.ONBOARDING, "a", "welcome", time.Now())
	require.NoError(t, sessions.Save(ctx, restarted))

	page, err := NewGallery(registry, sessions).Page(ctx, flow.ONBOARDING, 0, "")
	require.NoError(t, err)
	require.Equal(t, "Анна Иванова", page.Card.Name)
}

func TestGalleryKeepsProfileAfterHistoryTrim(t *testing.T) {
	ctx := context.Background()
	flows, err := flow.LoadBuiltin()
	require.NoError(t, err)
	registry := flow.NewRegistry(flows...)
	sessions := persistence.NewSessionRepository(memory.NewStore(), util.NewJsonEncoderDecoder[model.SessionState](), 2)

	require.NoError(t, sessions.Save(ctx, completedSession("a", "Анна Иванова", "pa")))
	restarted := model.NewSessionState("a-2", flow.ONBOARDING, "a", "welcome", time.Now())
	for _, step := range []string{"preonboarding", "name", "important_today", "name", "important_today"} {
		restarted.Current = step
		restarted.MarkVisited(step)
		require.NoError(t, sessions.Save(ctx, restarted))
	}
	history, err := sessions.History(ctx, flow.ONBOARDING, "a", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	page, err := NewGallery(registry, sessions).Page(ctx, flow.ONBOARDING, 0, "")
	require.NoError(t, err)
	require.Equal(t, "Анна Иванова", page.Card.Name)
	require.Equal(t, "pa", page.Card.PhotoFileId)
}
