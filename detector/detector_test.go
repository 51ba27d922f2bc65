package detector

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohitkumar/intake/model"
	"github.com/stretchr/testify/require"
)

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	img.Set(1, 1, color.White)
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func fixedFaces(faces ...image.Rectangle) Locator {
	return LocatorFunc(func(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
		return faces, nil
	})
}

func TestLocalDetector(t *testing.T) {
	data := testImage(t)
	for scenario, tc := range map[string]struct {
		faces   []image.Rectangle
		outcome Outcome
	}{
		"no face":        {nil, OUTCOME_NO_SUBJECT},
		"two faces":      {[]image.Rectangle{image.Rect(0, 0, 50, 50), image.Rect(50, 50, 100, 100)}, OUTCOME_MULTIPLE_SUBJECTS},
		"small face":     {[]image.Rectangle{image.Rect(0, 0, 10, 10)}, OUTCOME_TOO_SMALL},
		"at threshold":   {[]image.Rectangle{image.Rect(0, 0, 100, 15)}, OUTCOME_TOO_SMALL},
		"large face":     {[]image.Rectangle{image.Rect(0, 0, 50, 50)}, OUTCOME_ACCEPTED},
		"clipped to img": {[]image.Rectangle{image.Rect(50, 50, 200, 200)}, OUTCOME_ACCEPTED},
	} {
		t.Run(scenario, func(t *testing.T) {
			d := NewLocalDetector(fixedFaces(tc.faces...), DEFAULT_THRESHOLD)
			v := d.Detect(context.Background(), data)
			require.Equal(t, tc.outcome, v.Outcome)
		})
	}
}

func TestLocalDetectorReportsRatio(t *testing.T) {
	d := NewLocalDetector(fixedFaces(image.Rect(0, 0, 50, 50)), DEFAULT_THRESHOLD)
	v := d.Detect(context.Background(), testImage(t))
	require.True(t, v.Accepted())
	require.InDelta(t, 0.25, v.Ratio, 1e-9)
	require.InDelta(t, 0.25, v.GateVerdict().Ratio, 1e-9)
}

func TestLocalDetectorUndecodableImage(t *testing.T) {
	d := NewLocalDetector(fixedFaces(image.Rect(0, 0, 50, 50)), DEFAULT_THRESHOLD)
	v := d.Detect(context.Background(), []byte("not an image"))
	require.Equal(t, OUTCOME_ERROR, v.Outcome)
	require.Equal(t, model.REASON_DETECTION_FAILED, v.GateVerdict().Reason)
}

func TestThresholdIsConfigurable(t *testing.T) {
	d := NewLocalDetector(fixedFaces(image.Rect(0, 0, 100, 12)), 0.10)
	v := d.Detect(context.Background(), testImage(t))
	require.Equal(t, OUTCOME_ACCEPTED, v.Outcome)
}

func TestThresholdBoundary(t *testing.T) {
	for scenario, tc := range map[string]struct {
		face    image.Rectangle
		outcome Outcome
		ratio   float64
	}{
		"just below": {image.Rect(0, 0, 100, 9), OUTCOME_TOO_SMALL, 0.09},
		"at":         {image.Rect(0, 0, 100, 10), OUTCOME_TOO_SMALL, 0.10},
		"just above": {image.Rect(0, 0, 100, 11), OUTCOME_ACCEPTED, 0.11},
	} {
		t.Run(scenario, func(t *testing.T) {
			d := NewLocalDetector(fixedFaces(tc.face), 0.10)
			v := d.Detect(context.Background(), testImage(t))
			require.Equal(t, tc.outcome, v.Outcome)
			require.InDelta(t, tc.ratio, v.Ratio, 1e-9)
		})
	}
}

func TestRemoteThresholdBoundary(t *testing.T) {
	for scenario, tc := range map[string]struct {
		body    string
		outcome Outcome
		ratio   float64
	}{
		"just below": {`{"success": true, "face_ratio": 0.09}`, OUTCOME_TOO_SMALL, 0.09},
		"just above": {`{"success": true, "face_ratio": 0.11}`, OUTCOME_ACCEPTED, 0.11},
	} {
		t.Run(scenario, func(t *testing.T) {
			srv := remoteServer(t, tc.body, 0)
			client := NewClient(Config{Url: srv.URL, Threshold: 0.10, Timeout: 2 * time.Second}, nil, srv.Client())
			v := client.Detect(context.Background(), testImage(t))
			require.Equal(t, tc.outcome, v.Outcome)
			require.InDelta(t, tc.ratio, v.Ratio, 1e-9)
			require.InDelta(t, tc.ratio, v.GateVerdict().Ratio, 1e-9)
		})
	}
}

func remoteServer(t *testing.T, body string, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("image"); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteDetector(t *testing.T) {
	for scenario, tc := range map[string]struct {
		body    string
		outcome Outcome
	}{
		"accepted":       {`{"success": true, "face_ratio": 0.3}`, OUTCOME_ACCEPTED},
		"not found":      {`{"success": false, "error": "Face not found"}`, OUTCOME_NO_SUBJECT},
		"multiple":       {`{"success": false, "error": "Multiple faces detected"}`, OUTCOME_MULTIPLE_SUBJECTS},
		"too small":      {`{"success": false, "error": "Face is too small", "face_ratio": 0.05}`, OUTCOME_TOO_SMALL},
		"small ratio":    {`{"success": true, "face_ratio": 0.1}`, OUTCOME_TOO_SMALL},
		"unknown error":  {`{"success": false, "error": "boom"}`, OUTCOME_ERROR},
		"malformed body": {`<html>`, OUTCOME_ERROR},
	} {
		t.Run(scenario, func(t *testing.T) {
			srv := remoteServer(t, tc.body, 0)
			client := NewClient(Config{Url: srv.URL, Timeout: 2 * time.Second}, nil, srv.Client())
			v := client.Detect(context.Background(), testImage(t))
			require.Equal(t, tc.outcome, v.Outcome)
		})
	}
}

func TestRemoteDetectorTimeout(t *testing.T) {
	srv := remoteServer(t, `{"success": true, "face_ratio": 0.3}`, time.Second)
	client := NewClient(Config{Url: srv.URL, Timeout: 50 * time.Millisecond}, nil, srv.Client())
	v := client.Detect(context.Background(), testImage(t))
	require.Equal(t, OUTCOME_UNAVAILABLE, v.Outcome)
	require.Equal(t, model.REASON_DETECTOR_UNAVAILABLE, v.GateVerdict().Reason)
}

func TestRemoteDetectorTimeoutWhileReadingBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success": true,`))
		w.(http.Flusher).Flush()
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
			return
		}
		w.Write([]byte(` "face_ratio": 0.3}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{Url: srv.URL, Timeout: 100 * time.Millisecond}, nil, srv.Client())
	v := client.Detect(context.Background(), testImage(t))
	require.Equal(t, OUTCOME_UNAVAILABLE, v.Outcome)
	require.Equal(t, model.REASON_DETECTOR_UNAVAILABLE, v.GateVerdict().Reason)
}

func TestClientPrefersLocal(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(`{"success": false, "error": "Face not found"}`))
	}))
	defer srv.Close()
	client := NewClient(Config{Url: srv.URL}, fixedFaces(image.Rect(0, 0, 50, 50)), srv.Client())
	v := client.Detect(context.Background(), testImage(t))
	require.True(t, v.Accepted())
	require.False(t, called)
}

func TestClientWithoutDetectors(t *testing.T) {
	client := NewClient(Config{}, nil, nil)
	require.False(t, client.Available())
	v := client.Detect(context.Background(), testImage(t))
	require.Equal(t, OUTCOME_UNAVAILABLE, v.Outcome)
}
