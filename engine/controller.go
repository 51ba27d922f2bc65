package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/mohitkumar/intake/analytics"
	"github.com/mohitkumar/intake/detector"
	"github.com/mohitkumar/intake/flow"
	"github.com/mohitkumar/intake/gate"
	"github.com/mohitkumar/intake/logger"
	"github.com/mohitkumar/intake/model"
	"github.com/mohitkumar/intake/persistence"
	"github.com/mohitkumar/intake/recorder"
	"github.com/mohitkumar/intake/util"
	"go.uber.org/zap"
)

type StartMode string

const START_RESET StartMode = "reset"
const START_RESUME StartMode = "resume"

var ErrUnknownWorkflow = flow.ErrUnknownWorkflow
var ErrWorkflowComplete = errors.New("workflow already completed")
var ErrNoBackTarget = errors.New("no step to go back to")
var ErrNextUnavailable = errors.New("next step not visited yet")
var ErrStepNotVisited = errors.New("step not visited in this session")
var ErrStoreUnavailable = errors.New("session could not be saved")

const FIELD_FACE_RATIO string = "face_ratio"

// MediaSource supplies media the user already has on file, offered for reuse
// on the media confirm step.
type MediaSource interface {
	ReusableMedia(ctx context.Context, wfName string, userId string) (*model.MediaRef, error)
}

// Notifier delivers a reminder for an idle session.
type Notifier interface {
	Remind(ctx context.Context, userId string, prompt *model.Prompt) error
}

type Config struct {
	MaxMediaBytes int64
	Alphabet      *unicode.RangeTable
}

// Controller owns the step graph traversal. It is not safe to call
// concurrently for the same user; Service provides that serialization.
type Controller struct {
	flows    *flow.Registry
	sessions *persistence.SessionRepository
	recorder *recorder.Recorder
	detector detector.Detector
	media    MediaSource
	conf     Config
	now      func() time.Time
	newId    func() string
}

func NewController(flows *flow.Registry, sessions *persistence.SessionRepository, rec *recorder.Recorder,
	det detector.Detector, media MediaSource, conf Config) *Controller {
	if conf.MaxMediaBytes <= 0 {
		conf.MaxMediaBytes = gate.MAX_MEDIA_BYTES
	}
	if conf.Alphabet == nil {
		conf.Alphabet = unicode.Cyrillic
	}
	return &Controller{
		flows:    flows,
		sessions: sessions,
		recorder: rec,
		detector: det,
		media:    media,
		conf:     conf,
		now:      time.Now,
		newId:    uuid.NewString,
	}
}

func (c *Controller) flow(wfName string) (*flow.Flow, error) {
	f, ok := c.flows.Get(wfName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, wfName)
	}
	return f, nil
}

func isLost(err error) bool {
	return errors.Is(err, persistence.ErrSessionNotFound) || errors.Is(err, persistence.ErrSessionCorrupt)
}

func (c *Controller) save(ctx context.Context, s *model.SessionState) error {
	if err := c.sessions.Save(ctx, s); err != nil {
		logger.Error("error saving session", zap.String("workflow", s.Workflow), zap.String("user", s.UserId), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (c *Controller) recordProfile(ctx context.Context, user model.User) {
	if user.FullName == "" && user.Username == "" {
		return
	}
	if _, err := c.recorder.RecordProfileIfChanged(ctx, user.Id, user.Snapshot(c.now())); err != nil {
		logger.Error("error recording profile", zap.String("user", user.Id), zap.Error(err))
	}
}

// Start opens a session. Reset always begins a new session at the first step;
// resume keeps an existing session and only creates one when none is stored.
func (c *Controller) Start(ctx context.Context, wfName string, user model.User, mode StartMode) (*model.Prompt, error) {
	f, err := c.flow(wfName)
	if err != nil {
		return nil, err
	}
	var s *model.SessionState
	if mode == START_RESUME {
		s, err = c.sessions.Load(ctx, wfName, user.Id)
		if err != nil && !isLost(err) {
			return nil, err
		}
		if s != nil {
			if _, ok := f.Step(s.Current); !ok {
				logger.Warn("stored step no longer defined, starting over", zap.String("workflow", wfName), zap.String("step", s.Current))
				s = nil
			}
		}
	}
	if s == nil {
		s = model.NewSessionState(c.newId(), wfName, user.Id, f.First(), c.now())
		if err := c.save(ctx, s); err != nil {
			return nil, err
		}
	}
	c.recorder.RecordAction(ctx, user.Id, model.ACTION_START, string(mode))
	c.recordProfile(ctx, user)
	return c.render(ctx, f, s), nil
}

// Submit runs the gates of the current step over in. A rejection leaves the
// session untouched and returns the same step with the verdict.
func (c *Controller) Submit(ctx context.Context, wfName string, user model.User, in model.Input) (*model.Outcome, error) {
	f, err := c.flow(wfName)
	if err != nil {
		return nil, err
	}
	s, err := c.sessions.Load(ctx, wfName, user.Id)
	if err != nil {
		return nil, err
	}
	if s.Completed {
		return nil, ErrWorkflowComplete
	}
	step, ok := f.Step(s.Current)
	if !ok {
		return nil, fmt.Errorf("%w: step %s", persistence.ErrSessionCorrupt, s.Current)
	}

	verdict, answer := c.evaluate(ctx, f, step, s, in)
	if !verdict.Accepted {
		c.reject(ctx, s, step, verdict)
		return &model.Outcome{Verdict: &verdict, Prompt: c.render(ctx, f, s)}, nil
	}

	if answer != nil {
		c.storeAnswer(s, *answer)
	}
	if step.Approves {
		s.Approved = true
	}
	var facts map[string]any
	if step.Branch != nil {
		facts = c.facts(ctx, s)
	}
	next, err := f.Forward(step.Id, facts)
	if err != nil {
		return nil, err
	}
	s.MarkVisited(step.Id)
	now := c.now()
	if next != "" {
		s.Forward[step.Id] = next
		s.EnteredFrom[next] = step.Id
		s.Current = next
		s.MarkVisited(next)
		if nextStep, _ := f.Step(next); nextStep.Terminal {
			s.Completed = true
			s.CompletedAt = &now
		}
	}
	s.UpdatedAt = now
	if err := c.save(ctx, s); err != nil {
		return nil, err
	}
	c.recorder.RecordAction(ctx, user.Id, step.Id, "")
	analytics.RecordStepAccepted(wfName, user.Id, step.Id, next, verdictMetrics(verdict))
	return &model.Outcome{Accepted: true, Verdict: &verdict, Prompt: c.render(ctx, f, s)}, nil
}

func (c *Controller) reject(ctx context.Context, s *model.SessionState, step flow.StepDef, verdict model.GateVerdict) {
	if verdict.Reason == model.REASON_DETECTOR_UNAVAILABLE {
		logger.Error("face detection unavailable", zap.String("workflow", s.Workflow), zap.String("user", s.UserId), zap.String("step", step.Id))
	}
	c.recorder.RecordAction(ctx, s.UserId, step.Id, string(verdict.Reason))
	analytics.RecordStepRejected(s.Workflow, s.UserId, step.Id, string(verdict.Reason))
}

// storeAnswer replaces the answer for its step unless the content is identical.
func (c *Controller) storeAnswer(s *model.SessionState, answer model.AnswerRecord) {
	if old, ok := s.Answers[answer.StepId]; ok && old.SameContent(answer) {
		return
	}
	s.Answers[answer.StepId] = answer
}

// evaluate runs content kind, size, then the step specific gate. The returned
// answer is nil for inputs that carry nothing to store.
func (c *Controller) evaluate(ctx context.Context, f *flow.Flow, step flow.StepDef, s *model.SessionState, in model.Input) (model.GateVerdict, *model.AnswerRecord) {
	if v := gate.ContentKind(step.Kind, step.Confirmable, in); !v.Accepted {
		return v, nil
	}
	if v := gate.MediaSize(in, c.conf.MaxMediaBytes); !v.Accepted {
		return v, nil
	}
	answer := &model.AnswerRecord{
		StepId:     step.Id,
		Text:       strings.TrimSpace(in.Text),
		CapturedAt: c.now(),
	}
	if in.HasMedia() {
		m := *in.Media
		m.Data = nil
		if m.Kind == "" {
			m.Kind = string(in.Kind)
		}
		answer.Media = &m
	}

	switch {
	case step.Validator == gate.VALIDATOR_NAME:
		v := gate.Name(in.Text, c.conf.Alphabet)
		if !v.Accepted {
			return v, nil
		}
		answer.Fields = v.Fields
		return v, answer
	case step.Kind == model.INPUT_PHOTO && in.Kind == model.CONTENT_CONFIRM:
		media := c.reusableMedia(ctx, s.Workflow, s.UserId)
		if media == nil {
			return model.Reject(model.REASON_WRONG_CONTENT), nil
		}
		answer.Media = media
		return model.Accept(), answer
	case step.Kind == model.INPUT_PHOTO:
		v := c.detect(ctx, in)
		if !v.Accepted {
			return v, nil
		}
		answer.Fields = map[string]string{FIELD_FACE_RATIO: strconv.FormatFloat(v.Ratio, 'f', 4, 64)}
		return v, answer
	case step.Kind == model.INPUT_CONFIRM:
		return model.Accept(), nil
	}
	return model.Accept(), answer
}

func (c *Controller) detect(ctx context.Context, in model.Input) model.GateVerdict {
	if c.detector == nil {
		return model.Reject(model.REASON_DETECTOR_UNAVAILABLE)
	}
	if len(in.Media.Data) == 0 {
		return model.Reject(model.REASON_DETECTION_FAILED)
	}
	return c.detector.Detect(ctx, in.Media.Data).GateVerdict()
}

func (c *Controller) reusableMedia(ctx context.Context, wfName string, userId string) *model.MediaRef {
	if c.media == nil {
		return nil
	}
	m, err := c.media.ReusableMedia(ctx, wfName, userId)
	if err != nil {
		logger.Warn("error looking up reusable media", zap.String("user", userId), zap.Error(err))
		return nil
	}
	return m
}

// facts is the document branch expressions and prompt params are evaluated on.
func (c *Controller) facts(ctx context.Context, s *model.SessionState) map[string]any {
	data := s.Data()
	media := map[string]any{"reusable": false}
	if m := c.reusableMedia(ctx, s.Workflow, s.UserId); m != nil {
		media["reusable"] = true
		media["file_id"] = m.FileId
	}
	data["media"] = media
	return data
}

func forwardTarget(f *flow.Flow, s *model.SessionState) string {
	if t, ok := s.Forward[s.Current]; ok {
		return t
	}
	return f.Successor(s.Current)
}

func (c *Controller) render(ctx context.Context, f *flow.Flow, s *model.SessionState) *model.Prompt {
	step, _ := f.Step(s.Current)
	p := &model.Prompt{
		Workflow: f.Name(),
		StepId:   step.Id,
		Kind:     step.Kind,
		Terminal: step.Terminal,
	}
	if len(step.Prompt) > 0 {
		var data map[string]any
		if step.Confirmable {
			data = c.facts(ctx, s)
		} else {
			data = s.Data()
		}
		p.Params = util.ResolveInputParams(data, step.Prompt)
	}
	_, p.CanGoBack = f.BackTarget(s.Current, s.EnteredFrom[s.Current], s.IsVisited)
	if t := forwardTarget(f, s); t != "" {
		p.CanGoNext = s.IsVisited(t)
	}
	return p
}

// Back moves to the step the user came from. Only visited steps qualify.
func (c *Controller) Back(ctx context.Context, wfName string, user model.User) (*model.Prompt, error) {
	f, err := c.flow(wfName)
	if err != nil {
		return nil, err
	}
	s, err := c.sessions.Load(ctx, wfName, user.Id)
	if err != nil {
		return nil, err
	}
	target, ok := f.BackTarget(s.Current, s.EnteredFrom[s.Current], s.IsVisited)
	if !ok {
		return nil, ErrNoBackTarget
	}
	s.Current = target
	s.UpdatedAt = c.now()
	if err := c.save(ctx, s); err != nil {
		return nil, err
	}
	c.recorder.RecordAction(ctx, user.Id, model.ACTION_BACK, target)
	return c.render(ctx, f, s), nil
}

// NextAvailable reports whether the forward target of the current step was
// already visited in this session.
func (c *Controller) NextAvailable(ctx context.Context, wfName string, user model.User) (bool, error) {
	f, err := c.flow(wfName)
	if err != nil {
		return false, err
	}
	s, err := c.sessions.Load(ctx, wfName, user.Id)
	if err != nil {
		return false, err
	}
	t := forwardTarget(f, s)
	return t != "" && s.IsVisited(t), nil
}

func (c *Controller) Next(ctx context.Context, wfName string, user model.User) (*model.Prompt, error) {
	f, err := c.flow(wfName)
	if err != nil {
		return nil, err
	}
	s, err := c.sessions.Load(ctx, wfName, user.Id)
	if err != nil {
		return nil, err
	}
	t := forwardTarget(f, s)
	if t == "" || !s.IsVisited(t) {
		return nil, ErrNextUnavailable
	}
	s.Current = t
	s.UpdatedAt = c.now()
	if err := c.save(ctx, s); err != nil {
		return nil, err
	}
	c.recorder.RecordAction(ctx, user.Id, model.ACTION_NEXT, t)
	return c.render(ctx, f, s), nil
}

// Recover re-renders the active step from persisted state only. With nothing
// usable stored it behaves like Start in resume mode.
func (c *Controller) Recover(ctx context.Context, wfName string, user model.User) (*model.Prompt, error) {
	f, err := c.flow(wfName)
	if err != nil {
		return nil, err
	}
	c.recorder.RecordAction(ctx, user.Id, model.ACTION_RESTART, "")
	s, err := c.sessions.Load(ctx, wfName, user.Id)
	restored := false
	if errors.Is(err, persistence.ErrSessionCorrupt) {
		s, err = c.sessions.LatestValid(ctx, wfName, user.Id)
		restored = err == nil
		if restored {
			logger.Warn("latest session snapshot unreadable, restored an earlier one",
				zap.String("workflow", wfName), zap.String("user", user.Id), zap.String("step", s.Current))
		}
	}
	if err != nil {
		if isLost(err) {
			logger.Info("no usable session to recover, starting", zap.String("workflow", wfName), zap.String("user", user.Id), zap.Error(err))
			return c.Start(ctx, wfName, user, START_RESUME)
		}
		return nil, err
	}
	if _, ok := f.Step(s.Current); !ok {
		return c.Start(ctx, wfName, user, START_RESET)
	}
	if restored || !s.IsVisited(s.Current) {
		s.MarkVisited(s.Current)
		if err := c.save(ctx, s); err != nil {
			return nil, err
		}
	}
	c.recordProfile(ctx, user)
	return c.render(ctx, f, s), nil
}

// Edit replaces the answer of an already visited step without moving the
// current step pointer.
func (c *Controller) Edit(ctx context.Context, wfName string, user model.User, stepId string, in model.Input) (*model.Outcome, error) {
	f, err := c.flow(wfName)
	if err != nil {
		return nil, err
	}
	s, err := c.sessions.Load(ctx, wfName, user.Id)
	if err != nil {
		return nil, err
	}
	step, ok := f.Step(stepId)
	if !ok {
		return nil, fmt.Errorf("%w: %s", flow.ErrStepNotFound, stepId)
	}
	if !s.IsVisited(stepId) {
		return nil, ErrStepNotVisited
	}
	verdict, answer := c.evaluate(ctx, f, step, s, in)
	if !verdict.Accepted {
		c.reject(ctx, s, step, verdict)
		return &model.Outcome{Verdict: &verdict, Prompt: c.render(ctx, f, s)}, nil
	}
	if answer != nil {
		c.storeAnswer(s, *answer)
		s.UpdatedAt = c.now()
		if err := c.save(ctx, s); err != nil {
			return nil, err
		}
	}
	c.recorder.RecordAction(ctx, user.Id, model.ACTION_EDIT, stepId)
	return &model.Outcome{Accepted: true, Verdict: &verdict, Prompt: c.render(ctx, f, s)}, nil
}

func (c *Controller) Session(ctx context.Context, wfName string, userId string) (*model.SessionState, error) {
	if _, err := c.flow(wfName); err != nil {
		return nil, err
	}
	return c.sessions.Load(ctx, wfName, userId)
}

// Prompt renders the current step of a stored session without changing it.
func (c *Controller) Prompt(ctx context.Context, wfName string, userId string) (*model.Prompt, error) {
	f, err := c.flow(wfName)
	if err != nil {
		return nil, err
	}
	s, err := c.sessions.Load(ctx, wfName, userId)
	if err != nil {
		return nil, err
	}
	return c.render(ctx, f, s), nil
}

// RemindIfIdle notifies a user whose unfinished session has not moved for
// idle, at most once per period of inactivity.
func (c *Controller) RemindIfIdle(ctx context.Context, wfName string, userId string, idle time.Duration, notifier Notifier) (bool, error) {
	f, err := c.flow(wfName)
	if err != nil {
		return false, err
	}
	s, err := c.sessions.Load(ctx, wfName, userId)
	if err != nil {
		return false, err
	}
	now := c.now()
	if s.Completed || now.Sub(s.UpdatedAt) < idle {
		return false, nil
	}
	if s.RemindedAt != nil && !s.RemindedAt.Before(s.UpdatedAt) {
		return false, nil
	}
	if err := notifier.Remind(ctx, userId, c.render(ctx, f, s)); err != nil {
		return false, err
	}
	s.RemindedAt = &now
	if err := c.save(ctx, s); err != nil {
		return false, err
	}
	c.recorder.RecordAction(ctx, userId, model.ACTION_REMIND, s.Current)
	return true, nil
}

func verdictMetrics(v model.GateVerdict) map[string]any {
	if v.Ratio == 0 {
		return nil
	}
	return map[string]any{FIELD_FACE_RATIO: v.Ratio}
}
