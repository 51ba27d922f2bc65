package detector

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/mohitkumar/intake/logger"
	"go.uber.org/zap"
)

// Locator finds face bounding boxes in a decoded image.
type Locator interface {
	Locate(ctx context.Context, img image.Image) ([]image.Rectangle, error)
}

type LocatorFunc func(ctx context.Context, img image.Image) ([]image.Rectangle, error)

func (f LocatorFunc) Locate(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	return f(ctx, img)
}

type LocalDetector struct {
	locator   Locator
	threshold float64
}

func NewLocalDetector(locator Locator, threshold float64) *LocalDetector {
	return &LocalDetector{locator: locator, threshold: threshold}
}

func (d *LocalDetector) Detect(ctx context.Context, data []byte) Verdict {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Info("error decoding image for detection", zap.Error(err))
		return Verdict{Outcome: OUTCOME_ERROR, Message: err.Error()}
	}
	faces, err := d.locator.Locate(ctx, img)
	if err != nil {
		if ctx.Err() != nil {
			return Verdict{Outcome: OUTCOME_UNAVAILABLE, Message: ctx.Err().Error()}
		}
		logger.Error("error locating faces", zap.String("format", format), zap.Error(err))
		return Verdict{Outcome: OUTCOME_ERROR, Message: err.Error()}
	}
	return classify(len(faces), areaRatio(img.Bounds(), faces), d.threshold)
}

func areaRatio(bounds image.Rectangle, faces []image.Rectangle) float64 {
	total := bounds.Dx() * bounds.Dy()
	if total == 0 || len(faces) == 0 {
		return 0
	}
	largest := 0
	for _, f := range faces {
		f = f.Intersect(bounds)
		if a := f.Dx() * f.Dy(); a > largest {
			largest = a
		}
	}
	return float64(largest) / float64(total)
}
