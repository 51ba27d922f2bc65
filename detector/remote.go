package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/mohitkumar/intake/logger"
	"go.uber.org/zap"
)

type remoteResponse struct {
	Success   bool    `json:"success"`
	Error     string  `json:"error,omitempty"`
	FaceRatio float64 `json:"face_ratio,omitempty"`
}

// RemoteDetector uploads the image to an HTTP detection service.
type RemoteDetector struct {
	url        string
	threshold  float64
	httpClient *http.Client
}

func NewRemoteDetector(url string, threshold float64, httpClient *http.Client) *RemoteDetector {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteDetector{url: url, threshold: threshold, httpClient: httpClient}
}

func (d *RemoteDetector) Detect(ctx context.Context, data []byte) Verdict {
	body, contentType, err := multipartBody(data)
	if err != nil {
		return Verdict{Outcome: OUTCOME_ERROR, Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, body)
	if err != nil {
		return Verdict{Outcome: OUTCOME_ERROR, Message: err.Error()}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Error("face detector timed out", zap.String("url", d.url), zap.Error(err))
			return Verdict{Outcome: OUTCOME_UNAVAILABLE, Message: err.Error()}
		}
		logger.Error("error calling face detector", zap.String("url", d.url), zap.Error(err))
		return Verdict{Outcome: OUTCOME_ERROR, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Error("face detector timed out reading response", zap.String("url", d.url), zap.Error(err))
			return Verdict{Outcome: OUTCOME_UNAVAILABLE, Message: err.Error()}
		}
		logger.Error("error reading face detector response", zap.String("url", d.url), zap.Error(err))
		return Verdict{Outcome: OUTCOME_ERROR, Message: err.Error()}
	}
	var res remoteResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		logger.Error("unreadable face detector response", zap.Int("status", resp.StatusCode), zap.Error(err))
		return Verdict{Outcome: OUTCOME_ERROR, Message: fmt.Sprintf("unexpected response, status %d", resp.StatusCode)}
	}
	return d.verdict(res)
}

func (d *RemoteDetector) verdict(res remoteResponse) Verdict {
	if res.Success {
		if res.FaceRatio > 0 && res.FaceRatio <= d.threshold {
			return Verdict{Outcome: OUTCOME_TOO_SMALL, Ratio: res.FaceRatio}
		}
		return Verdict{Outcome: OUTCOME_ACCEPTED, Ratio: res.FaceRatio}
	}
	msg := strings.ToLower(res.Error)
	switch {
	case strings.Contains(msg, "not found"), strings.Contains(msg, "no face"):
		return Verdict{Outcome: OUTCOME_NO_SUBJECT, Message: res.Error}
	case strings.Contains(msg, "multiple"):
		return Verdict{Outcome: OUTCOME_MULTIPLE_SUBJECTS, Message: res.Error}
	case strings.Contains(msg, "too small"):
		return Verdict{Outcome: OUTCOME_TOO_SMALL, Ratio: res.FaceRatio, Message: res.Error}
	}
	return Verdict{Outcome: OUTCOME_ERROR, Message: res.Error}
}

func multipartBody(data []byte) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("image", "photo.jpg")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
