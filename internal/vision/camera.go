package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// ErrCameraClosed is returned when the capture device stops producing frames.
var ErrCameraClosed = errors.New("camera stopped producing frames")

// maxEmptyReads bounds consecutive failed reads before the camera is treated as gone.
const maxEmptyReads = 50

// Camera is a FrameSource reading JPEG frames from a video capture device.
type Camera struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

func OpenCamera(device int) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("error opening video capture device %d: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture device %d is not available", device)
	}
	return &Camera{capture: capture, frame: gocv.NewMat()}, nil
}

// Next blocks until the device delivers a frame and returns it JPEG-encoded.
func (c *Camera) Next(ctx context.Context) ([]byte, error) {
	for range maxEmptyReads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, c.frame)
		if err != nil {
			return nil, fmt.Errorf("failed to encode frame: %w", err)
		}
		out := make([]byte, buf.Len())
		copy(out, buf.GetBytes())
		buf.Close()
		return out, nil
	}
	return nil, ErrCameraClosed
}

func (c *Camera) Close() error {
	c.frame.Close()
	return c.capture.Close()
}
