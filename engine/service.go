package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mohitkumar/intake/dispatch"
	"github.com/mohitkumar/intake/logger"
	"github.com/mohitkumar/intake/model"
	"go.uber.org/zap"
)

// Service runs every controller operation for a user on that user's
// dispatcher worker. Lost sessions are recovered inside the same job.
type Service struct {
	controller *Controller
	dispatcher *dispatch.Dispatcher
}

func NewService(controller *Controller, dispatcher *dispatch.Dispatcher) *Service {
	return &Service{controller: controller, dispatcher: dispatcher}
}

func (s *Service) Controller() *Controller {
	return s.controller
}

func (s *Service) recover(ctx context.Context, wfName string, user model.User, cause error) (*model.Outcome, error) {
	logger.Info("recovering lost session", zap.String("workflow", wfName), zap.String("user", user.Id), zap.Error(cause))
	p, err := s.controller.Recover(ctx, wfName, user)
	if err != nil {
		return nil, err
	}
	return &model.Outcome{Recovered: true, Prompt: p}, nil
}

func (s *Service) Start(ctx context.Context, wfName string, user model.User, mode StartMode) (*model.Prompt, error) {
	var p *model.Prompt
	var err error
	if derr := s.dispatcher.Do(ctx, user.Id, func() {
		p, err = s.controller.Start(ctx, wfName, user, mode)
	}); derr != nil {
		return nil, derr
	}
	return p, err
}

func (s *Service) Submit(ctx context.Context, wfName string, user model.User, in model.Input) (*model.Outcome, error) {
	var out *model.Outcome
	var err error
	if derr := s.dispatcher.Do(ctx, user.Id, func() {
		out, err = s.controller.Submit(ctx, wfName, user, in)
		if isLost(err) {
			out, err = s.recover(ctx, wfName, user, err)
		}
	}); derr != nil {
		return nil, derr
	}
	return out, err
}

// SubmitExpecting submits in only when the session still sits on expectStep.
// Anything else means the caller rendered from stale state, so the active
// step is recovered and returned instead.
func (s *Service) SubmitExpecting(ctx context.Context, wfName string, user model.User, expectStep string, in model.Input) (*model.Outcome, error) {
	var out *model.Outcome
	var err error
	if derr := s.dispatcher.Do(ctx, user.Id, func() {
		var state *model.SessionState
		state, err = s.controller.Session(ctx, wfName, user.Id)
		if isLost(err) {
			out, err = s.recover(ctx, wfName, user, err)
			return
		}
		if err != nil {
			return
		}
		if state.Current != expectStep {
			out, err = s.recover(ctx, wfName, user, fmt.Errorf("stale prompt for step %s, session at %s", expectStep, state.Current))
			return
		}
		out, err = s.controller.Submit(ctx, wfName, user, in)
		if isLost(err) {
			out, err = s.recover(ctx, wfName, user, err)
		}
	}); derr != nil {
		return nil, derr
	}
	return out, err
}

func (s *Service) Back(ctx context.Context, wfName string, user model.User) (*model.Outcome, error) {
	return s.move(ctx, wfName, user, s.controller.Back)
}

func (s *Service) Next(ctx context.Context, wfName string, user model.User) (*model.Outcome, error) {
	return s.move(ctx, wfName, user, s.controller.Next)
}

func (s *Service) move(ctx context.Context, wfName string, user model.User,
	fn func(context.Context, string, model.User) (*model.Prompt, error)) (*model.Outcome, error) {
	var out *model.Outcome
	var err error
	if derr := s.dispatcher.Do(ctx, user.Id, func() {
		var p *model.Prompt
		p, err = fn(ctx, wfName, user)
		if isLost(err) {
			out, err = s.recover(ctx, wfName, user, err)
			return
		}
		if err == nil {
			out = &model.Outcome{Accepted: true, Prompt: p}
		}
	}); derr != nil {
		return nil, derr
	}
	return out, err
}

func (s *Service) NextAvailable(ctx context.Context, wfName string, user model.User) (bool, error) {
	var ok bool
	var err error
	if derr := s.dispatcher.Do(ctx, user.Id, func() {
		ok, err = s.controller.NextAvailable(ctx, wfName, user)
	}); derr != nil {
		return false, derr
	}
	return ok, err
}

func (s *Service) Recover(ctx context.Context, wfName string, user model.User) (*model.Prompt, error) {
	var p *model.Prompt
	var err error
	if derr := s.dispatcher.Do(ctx, user.Id, func() {
		p, err = s.controller.Recover(ctx, wfName, user)
	}); derr != nil {
		return nil, derr
	}
	return p, err
}

func (s *Service) Edit(ctx context.Context, wfName string, user model.User, stepId string, in model.Input) (*model.Outcome, error) {
	var out *model.Outcome
	var err error
	if derr := s.dispatcher.Do(ctx, user.Id, func() {
		out, err = s.controller.Edit(ctx, wfName, user, stepId, in)
	}); derr != nil {
		return nil, derr
	}
	return out, err
}

func (s *Service) Session(ctx context.Context, wfName string, userId string) (*model.SessionState, error) {
	var state *model.SessionState
	var err error
	if derr := s.dispatcher.Do(ctx, userId, func() {
		state, err = s.controller.Session(ctx, wfName, userId)
	}); derr != nil {
		return nil, derr
	}
	return state, err
}

func (s *Service) Prompt(ctx context.Context, wfName string, userId string) (*model.Prompt, error) {
	var p *model.Prompt
	var err error
	if derr := s.dispatcher.Do(ctx, userId, func() {
		p, err = s.controller.Prompt(ctx, wfName, userId)
	}); derr != nil {
		return nil, derr
	}
	return p, err
}

func (s *Service) RemindIfIdle(ctx context.Context, wfName string, userId string, idle time.Duration, notifier Notifier) (bool, error) {
	var sent bool
	var err error
	if derr := s.dispatcher.Do(ctx, userId, func() {
		sent, err = s.controller.RemindIfIdle(ctx, wfName, userId, idle, notifier)
	}); derr != nil {
		return false, derr
	}
	return sent, err
}

func (s *Service) PendingUsers(ctx context.Context, wfName string) ([]string, error) {
	return s.controller.sessions.Pending(ctx, wfName)
}

func (s *Service) Workflows() []string {
	return s.controller.flows.Names()
}
