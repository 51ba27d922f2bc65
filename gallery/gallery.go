package gallery

import (
	"context"
	"errors"
	"sort"

	"github.com/mohitkumar/intake/flow"
	"github.com/mohitkumar/intake/gate"
	"github.com/mohitkumar/intake/logger"
	"github.com/mohitkumar/intake/model"
	"github.com/mohitkumar/intake/persistence"
	"github.com/mohitkumar/intake/util"
	"go.uber.org/zap"
)

var ErrEmpty = errors.New("no completed profiles")

type Card struct {
	UserId      string            `json:"userId"`
	Name        string            `json:"name"`
	PhotoFileId string            `json:"photoFileId,omitempty"`
	Answers     map[string]string `json:"answers"`
	Own         bool              `json:"own"`
}

// Page is one card plus the wrapped indexes of its neighbours.
type Page struct {
	Index int  `json:"index"`
	Total int  `json:"total"`
	Prev  int  `json:"prev"`
	Next  int  `json:"next"`
	Card  Card `json:"card"`
}

type Gallery struct {
	flows    *flow.Registry
	sessions *persistence.SessionRepository
}

func NewGallery(flows *flow.Registry, sessions *persistence.SessionRepository) *Gallery {
	return &Gallery{flows: flows, sessions: sessions}
}

// Page returns the card at index among completed profiles. Out of range
// indexes wrap around in both directions.
func (g *Gallery) Page(ctx context.Context, wfName string, index int, viewer string) (*Page, error) {
	f, ok := g.flows.Get(wfName)
	if !ok {
		return nil, flow.ErrUnknownWorkflow
	}
	cards, err := g.cards(ctx, f, viewer)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, ErrEmpty
	}
	i := util.Wrap(index, len(cards))
	return &Page{
		Index: i,
		Total: len(cards),
		Prev:  util.Wrap(i-1, len(cards)),
		Next:  util.Wrap(i+1, len(cards)),
		Card:  cards[i],
	}, nil
}

func (g *Gallery) cards(ctx context.Context, f *flow.Flow, viewer string) ([]Card, error) {
	users, err := g.sessions.Completed(ctx, f.Name())
	if err != nil {
		return nil, err
	}
	sort.Strings(users)
	cards := make([]Card, 0, len(users))
	for _, u := range users {
		state, err := g.sessions.LastCompleted(ctx, f.Name(), u)
		if err != nil {
			logger.Warn("skipping profile in gallery", zap.String("user", u), zap.Error(err))
			continue
		}
		if state == nil {
			continue
		}
		cards = append(cards, card(f, state, viewer))
	}
	return cards, nil
}

func card(f *flow.Flow, s *model.SessionState, viewer string) Card {
	c := Card{
		UserId:  s.UserId,
		Answers: make(map[string]string),
		Own:     s.UserId == viewer,
	}
	for _, step := range f.Definition().Steps {
		a, ok := s.Answers[step.Id]
		if !ok {
			continue
		}
		switch {
		case step.Validator == gate.VALIDATOR_NAME:
			c.Name = a.Text
		case step.Kind == model.INPUT_PHOTO && a.Media != nil:
			c.PhotoFileId = a.Media.FileId
		case a.Text != "":
			c.Answers[step.Id] = a.Text
		}
	}
	return c
}
