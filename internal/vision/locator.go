package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// CascadeLocator finds the first frontal face in an image with a Haar cascade.
type CascadeLocator struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	minSize    int
}

// NewCascadeLocator loads the cascade XML. Faces smaller than minSize pixels are ignored.
func NewCascadeLocator(cascadePath string, minSize int) (*CascadeLocator, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade file %s", cascadePath)
	}
	return &CascadeLocator{classifier: classifier, minSize: minSize}, nil
}

// Locate returns the JPEG-encoded crop of the first detected face.
func (l *CascadeLocator) Locate(_ context.Context, data []byte) ([]byte, bool, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, false, errors.New("failed to decode image: empty matrix")
	}

	rect, found := l.detect(img)
	if !found {
		return nil, false, nil
	}

	face := img.Region(rect)
	defer face.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, face)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode face: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory that buf.Close releases.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, true, nil
}

func (l *CascadeLocator) detect(img gocv.Mat) (image.Rectangle, bool) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	l.mu.Lock()
	faces := l.classifier.DetectMultiScaleWithParams(
		gray,
		1.1, // scale factor
		5,   // min neighbors
		0,   // flags
		image.Pt(l.minSize, l.minSize),
		image.Pt(0, 0),
	)
	l.mu.Unlock()

	if len(faces) == 0 {
		return image.Rectangle{}, false
	}
	return faces[0], true
}

func (l *CascadeLocator) Close() error {
	return l.classifier.Close()
}
