package engine

import (
	"context"

	"github.com/mohitkumar/intake/flow"
	"github.com/mohitkumar/intake/model"
	"github.com/mohitkumar/intake/persistence"
)

var _ MediaSource = new(SessionMediaSource)

// SessionMediaSource offers the photo from the user's most recent completed
// run of the same workflow.
type SessionMediaSource struct {
	flows    *flow.Registry
	sessions *persistence.SessionRepository
}

func NewSessionMediaSource(flows *flow.Registry, sessions *persistence.SessionRepository) *SessionMediaSource {
	return &SessionMediaSource{flows: flows, sessions: sessions}
}

func (ms *SessionMediaSource) ReusableMedia(ctx context.Context, wfName string, userId string) (*model.MediaRef, error) {
	f, ok := ms.flows.Get(wfName)
	if !ok {
		return nil, nil
	}
	var photoSteps []string
	for _, s := range f.Definition().Steps {
		if s.Kind == model.INPUT_PHOTO {
			photoSteps = append(photoSteps, s.Id)
		}
	}
	state, err := ms.sessions.LastCompleted(ctx, wfName, userId)
	if err != nil || state == nil {
		return nil, err
	}
	for _, id := range photoSteps {
		if a, ok := state.Answers[id]; ok && a.Media != nil {
			m := *a.Media
			return &m, nil
		}
	}
	return nil, nil
}
