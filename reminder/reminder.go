package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mohitkumar/intake/engine"
	"github.com/mohitkumar/intake/logger"
	"github.com/mohitkumar/intake/model"
	"github.com/mohitkumar/intake/persistence"
	"github.com/mohitkumar/intake/util"
	"go.uber.org/zap"
)

var _ engine.Notifier = new(LogNotifier)

// LogNotifier only logs reminders. Messaging transports plug in their own
// engine.Notifier.
type LogNotifier struct{}

func (LogNotifier) Remind(ctx context.Context, userId string, prompt *model.Prompt) error {
	logger.Info("reminding idle user", zap.String("user", userId), zap.String("workflow", prompt.Workflow), zap.String("step", prompt.StepId))
	return nil
}

type Config struct {
	Interval time.Duration
	Idle     time.Duration
}

// Reminder periodically sweeps unfinished sessions and nudges idle users.
type Reminder struct {
	service  *engine.Service
	notifier engine.Notifier
	idle     time.Duration
	worker   *util.TickWorker
}

func NewReminder(service *engine.Service, notifier engine.Notifier, conf Config, wg *sync.WaitGroup) *Reminder {
	r := &Reminder{
		service:  service,
		notifier: notifier,
		idle:     conf.Idle,
	}
	r.worker = util.NewTickWorker("reminder", conf.Interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Interval)
		defer cancel()
		r.Sweep(ctx)
	}, wg)
	return r
}

// Sweep sends due reminders and returns how many went out.
func (r *Reminder) Sweep(ctx context.Context) int {
	sent := 0
	for _, wf := range r.service.Workflows() {
		users, err := r.service.PendingUsers(ctx, wf)
		if err != nil {
			logger.Error("error listing pending users", zap.String("workflow", wf), zap.Error(err))
			continue
		}
		for _, u := range users {
			ok, err := r.service.RemindIfIdle(ctx, wf, u, r.idle, r.notifier)
			if err != nil {
				if errors.Is(err, persistence.ErrSessionNotFound) || errors.Is(err, persistence.ErrSessionCorrupt) {
					continue
				}
				logger.Error("error sending reminder", zap.String("workflow", wf), zap.String("user", u), zap.Error(err))
				continue
			}
			if ok {
				sent++
			}
		}
	}
	return sent
}

func (r *Reminder) Start() {
	r.worker.Start()
}

func (r *Reminder) Stop() error {
	r.worker.Stop()
	return nil
}
