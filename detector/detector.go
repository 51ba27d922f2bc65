package detector

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mohitkumar/intake/logger"
	"github.com/mohitkumar/intake/model"
	"go.uber.org/zap"
)

var ErrDetectorUnavailable = errors.New("face detector unavailable")

type Outcome string

const OUTCOME_ACCEPTED Outcome = "ACCEPTED"
const OUTCOME_NO_SUBJECT Outcome = "NO_SUBJECT"
const OUTCOME_MULTIPLE_SUBJECTS Outcome = "MULTIPLE_SUBJECTS"
const OUTCOME_TOO_SMALL Outcome = "TOO_SMALL"
const OUTCOME_ERROR Outcome = "ERROR"
const OUTCOME_UNAVAILABLE Outcome = "UNAVAILABLE"

const DEFAULT_THRESHOLD float64 = 0.15

type Verdict struct {
	Outcome Outcome
	Ratio   float64
	Message string
}

func (v Verdict) Accepted() bool {
	return v.Outcome == OUTCOME_ACCEPTED
}

// GateVerdict maps a detector verdict onto the gate vocabulary.
func (v Verdict) GateVerdict() model.GateVerdict {
	switch v.Outcome {
	case OUTCOME_ACCEPTED:
		g := model.Accept()
		g.Ratio = v.Ratio
		return g
	case OUTCOME_NO_SUBJECT:
		return model.Reject(model.REASON_SUBJECT_NOT_DETECTED)
	case OUTCOME_MULTIPLE_SUBJECTS:
		return model.Reject(model.REASON_MULTIPLE_SUBJECTS)
	case OUTCOME_TOO_SMALL:
		g := model.Reject(model.REASON_SUBJECT_TOO_SMALL)
		g.Ratio = v.Ratio
		return g
	case OUTCOME_UNAVAILABLE:
		return model.Reject(model.REASON_DETECTOR_UNAVAILABLE)
	default:
		return model.Reject(model.REASON_DETECTION_FAILED)
	}
}

type Detector interface {
	Detect(ctx context.Context, image []byte) Verdict
}

type Config struct {
	Url       string
	Timeout   time.Duration
	Threshold float64
}

// classify turns a face count and the largest face's area ratio into a verdict.
func classify(faces int, ratio float64, threshold float64) Verdict {
	switch {
	case faces == 0:
		return Verdict{Outcome: OUTCOME_NO_SUBJECT}
	case faces > 1:
		return Verdict{Outcome: OUTCOME_MULTIPLE_SUBJECTS}
	case ratio <= threshold:
		return Verdict{Outcome: OUTCOME_TOO_SMALL, Ratio: ratio}
	}
	return Verdict{Outcome: OUTCOME_ACCEPTED, Ratio: ratio}
}

var _ Detector = new(Client)

// Client prefers the in-process detector and falls back to the remote
// service when the local one is absent or reports itself unavailable.
type Client struct {
	local   *LocalDetector
	remote  *RemoteDetector
	timeout time.Duration
}

func NewClient(conf Config, locator Locator, httpClient *http.Client) *Client {
	if conf.Threshold <= 0 {
		conf.Threshold = DEFAULT_THRESHOLD
	}
	c := &Client{timeout: conf.Timeout}
	if locator != nil {
		c.local = NewLocalDetector(locator, conf.Threshold)
	}
	if conf.Url != "" {
		c.remote = NewRemoteDetector(conf.Url, conf.Threshold, httpClient)
	}
	if c.local == nil && c.remote == nil {
		logger.Error("no face detector configured, photo steps will be rejected")
	}
	return c
}

func (c *Client) Available() bool {
	return c.local != nil || c.remote != nil
}

func (c *Client) Detect(ctx context.Context, image []byte) Verdict {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if c.local != nil {
		v := c.local.Detect(ctx, image)
		if v.Outcome != OUTCOME_UNAVAILABLE || c.remote == nil {
			return v
		}
		logger.Warn("local detector unavailable, falling back to remote", zap.String("reason", v.Message))
	}
	if c.remote != nil {
		return c.remote.Detect(ctx, image)
	}
	return Verdict{Outcome: OUTCOME_UNAVAILABLE, Message: ErrDetectorUnavailable.Error()}
}
