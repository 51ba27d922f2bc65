package recorder

import (
	"context"
	"time"

	"github.com/mohitkumar/intake/logger"
	"github.com/mohitkumar/intake/model"
	"github.com/mohitkumar/intake/persistence"
	"go.uber.org/zap"
)

type Recorder struct {
	audit    *persistence.AuditRepository
	profiles *persistence.ProfileRepository
	now      func() time.Time
}

func NewRecorder(audit *persistence.AuditRepository, profiles *persistence.ProfileRepository) *Recorder {
	return &Recorder{
		audit:    audit,
		profiles: profiles,
		now:      time.Now,
	}
}

// RecordAction appends an audit event. Storage failures are logged and
// never returned to the caller.
func (r *Recorder) RecordAction(ctx context.Context, userId string, action string, detail string) {
	ev := model.AuditEvent{Action: action, Detail: detail, At: r.now()}
	if err := r.audit.Append(ctx, userId, ev); err != nil {
		logger.Error("error recording action", zap.String("user", userId), zap.String("action", action), zap.Error(err))
	}
}

// RecordProfileIfChanged stores snapshot only when its comparable fields
// differ from the latest stored one. It reports whether a write happened.
func (r *Recorder) RecordProfileIfChanged(ctx context.Context, userId string, snapshot model.ProfileSnapshot) (bool, error) {
	latest, err := r.profiles.Latest(ctx, userId)
	if err != nil {
		return false, err
	}
	if latest != nil && latest.Comparable() == snapshot.Comparable() {
		return false, nil
	}
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = r.now()
	}
	if err := r.profiles.Append(ctx, userId, snapshot); err != nil {
		return false, err
	}
	logger.Debug("profile snapshot recorded", zap.String("user", userId))
	return true, nil
}

func (r *Recorder) Actions(ctx context.Context, userId string, limit int64) ([]model.AuditEvent, error) {
	return r.audit.List(ctx, userId, limit)
}

func (r *Recorder) Profiles(ctx context.Context, userId string) ([]model.ProfileSnapshot, error) {
	return r.profiles.List(ctx, userId)
}
