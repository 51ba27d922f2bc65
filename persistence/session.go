package persistence

import (
	"context"
	"errors"

	"github.com/mohitkumar/intake/logger"
	"github.com/mohitkumar/intake/model"
	"github.com/mohitkumar/intake/util"
	"go.uber.org/zap"
)

// SessionRepository keeps an append-only history of session snapshots per
// (workflow, user); the newest snapshot is the live state.
type SessionRepository struct {
	store          Store
	encoderDecoder util.EncoderDecoder[model.SessionState]
	historyLimit   int64
}

func NewSessionRepository(store Store, encoderDecoder util.EncoderDecoder[model.SessionState], historyLimit int) *SessionRepository {
	return &SessionRepository{
		store:          store,
		encoderDecoder: encoderDecoder,
		historyLimit:   int64(historyLimit),
	}
}

const DEFAULT_HISTORY_SCAN int64 = 50

func sessionKey(wfName string, userId string) string {
	return Key(SESSION_KEY, wfName, userId)
}

func (r *SessionRepository) Load(ctx context.Context, wfName string, userId string) (*model.SessionState, error) {
	data, err := r.store.Latest(ctx, sessionKey(wfName, userId))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	state, err := r.encoderDecoder.Decode(data)
	if err != nil {
		logger.Error("error decoding session", zap.String("workflow", wfName), zap.String("user", userId), zap.Error(err))
		return nil, ErrSessionCorrupt
	}
	if state.Current == "" {
		return nil, ErrSessionCorrupt
	}
	state.Normalize()
	return state, nil
}

func (r *SessionRepository) Save(ctx context.Context, state *model.SessionState) error {
	data, err := r.encoderDecoder.Encode(*state)
	if err != nil {
		return err
	}
	key := sessionKey(state.Workflow, state.UserId)
	if bounded, ok := r.store.(BoundedAppender); ok && r.historyLimit > 0 {
		if err := bounded.AppendBounded(ctx, key, data, r.historyLimit); err != nil {
			return err
		}
	} else {
		if err := r.store.Append(ctx, key, data); err != nil {
			return err
		}
		if r.historyLimit > 0 {
			if err := r.store.Trim(ctx, key, r.historyLimit); err != nil {
				logger.Warn("error trimming session history", zap.String("key", key), zap.Error(err))
			}
		}
	}
	pending := Key(PENDING_KEY, state.Workflow)
	completed := Key(COMPLETED_KEY, state.Workflow)
	if state.Completed {
		if err := r.saveCompleted(ctx, state, data); err != nil {
			return err
		}
		if err := r.store.RemoveMember(ctx, pending, state.UserId); err != nil {
			return err
		}
		return r.store.AddMember(ctx, completed, state.UserId)
	}
	return r.store.AddMember(ctx, pending, state.UserId)
}

func completedKey(wfName string, userId string) string {
	return Key(COMPLETED_SESSION_KEY, wfName, userId)
}

// saveCompleted keeps the newest completed snapshot outside the trimmed
// session history.
func (r *SessionRepository) saveCompleted(ctx context.Context, state *model.SessionState, data []byte) error {
	key := completedKey(state.Workflow, state.UserId)
	if bounded, ok := r.store.(BoundedAppender); ok {
		return bounded.AppendBounded(ctx, key, data, 1)
	}
	if err := r.store.Append(ctx, key, data); err != nil {
		return err
	}
	if err := r.store.Trim(ctx, key, 1); err != nil {
		logger.Warn("error trimming completed session", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// LastCompleted returns the user's most recent completed run, or nil when the
// user never finished the workflow.
func (r *SessionRepository) LastCompleted(ctx context.Context, wfName string, userId string) (*model.SessionState, error) {
	data, err := r.store.Latest(ctx, completedKey(wfName, userId))
	switch {
	case err == nil:
		state, derr := r.encoderDecoder.Decode(data)
		if derr == nil && state.Completed {
			state.Normalize()
			return state, nil
		}
		logger.Warn("unreadable completed session, scanning history", zap.String("workflow", wfName), zap.String("user", userId))
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	depth := r.historyLimit
	if depth <= 0 {
		depth = DEFAULT_HISTORY_SCAN
	}
	history, err := r.History(ctx, wfName, userId, depth)
	if err != nil {
		return nil, err
	}
	for _, state := range history {
		if state.Completed {
			return state, nil
		}
	}
	return nil, nil
}

// History returns up to limit snapshots, newest first.
func (r *SessionRepository) History(ctx context.Context, wfName string, userId string, limit int64) ([]*model.SessionState, error) {
	items, err := r.store.Range(ctx, sessionKey(wfName, userId), 0, limit-1)
	if err != nil {
		return nil, err
	}
	res := make([]*model.SessionState, 0, len(items))
	for _, item := range items {
		state, err := r.encoderDecoder.Decode(item)
		if err != nil || state.Current == "" {
			continue
		}
		state.Normalize()
		res = append(res, state)
	}
	return res, nil
}

// LatestValid returns the newest stored snapshot that still decodes, looking
// back over the retained history. It returns ErrSessionNotFound when none does.
func (r *SessionRepository) LatestValid(ctx context.Context, wfName string, userId string) (*model.SessionState, error) {
	depth := r.historyLimit
	if depth <= 0 {
		depth = DEFAULT_HISTORY_SCAN
	}
	history, err := r.History(ctx, wfName, userId, depth)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, ErrSessionNotFound
	}
	return history[0], nil
}

func (r *SessionRepository) Pending(ctx context.Context, wfName string) ([]string, error) {
	return r.store.Members(ctx, Key(PENDING_KEY, wfName))
}

func (r *SessionRepository) Completed(ctx context.Context, wfName string) ([]string, error) {
	return r.store.Members(ctx, Key(COMPLETED_KEY, wfName))
}
