package capture

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/imaging"
)

// Facing selects which camera a live capture reads from.
type Facing string

const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// DefaultFacing is the rear camera, which is what you point at a plate.
const DefaultFacing = FacingEnvironment

// ParseFacing validates a facing name. Empty selects DefaultFacing.
func ParseFacing(s string) (Facing, error) {
	switch Facing(s) {
	case "":
		return DefaultFacing, nil
	case FacingUser, FacingEnvironment:
		return Facing(s), nil
	case "front":
		return FacingUser, nil
	case "rear", "back":
		return FacingEnvironment, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown camera facing %q (want user or environment)", s))
}

// Toggle returns the opposite facing.
func (f Facing) Toggle() Facing {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

// Camera produces still frames. A nil error with an empty frame means the
// feed is not ready yet.
type Camera interface {
	Snapshot(ctx context.Context, facing Facing) ([]byte, error)
}

// NormalizeFunc matches imaging.Normalize.
type NormalizeFunc func(image string, maxDimension int, quality float64) (string, error)

// Options configures a Source.
type Options struct {
	// Camera is required for Shutter; file capture works without one
	Camera Camera

	Facing       Facing
	MaxDimension int
	Quality      float64

	// OnCapture receives every successfully captured payload
	OnCapture func(image string)

	// Normalize defaults to imaging.Normalize
	Normalize NormalizeFunc
}

// Source acquires images from a camera or files, normalizes them, and hands
// them to OnCapture. Only one capture may be in flight at a time.
type Source struct {
	camera       Camera
	maxDimension int
	quality      float64
	onCapture    func(string)
	normalize    NormalizeFunc

	mu     sync.Mutex
	facing Facing

	busy atomic.Bool
}

// New creates a Source. Zero-valued options take the package defaults.
func New(opts Options) *Source {
	s := &Source{
		camera:       opts.Camera,
		facing:       opts.Facing,
		maxDimension: opts.MaxDimension,
		quality:      opts.Quality,
		onCapture:    opts.OnCapture,
		normalize:    opts.Normalize,
	}
	if s.facing == "" {
		s.facing = DefaultFacing
	}
	if s.maxDimension <= 0 {
		s.maxDimension = imaging.DefaultMaxDimension
	}
	if s.quality <= 0 || s.quality > 1 {
		s.quality = imaging.DefaultQuality
	}
	if s.normalize == nil {
		s.normalize = imaging.Normalize
	}
	return s
}

// Facing returns the active camera facing.
func (s *Source) Facing() Facing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facing
}

// ToggleFacing switches between front and rear cameras and returns the new facing.
func (s *Source) ToggleFacing() Facing {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facing = s.facing.Toggle()
	return s.facing
}

// HasCamera reports whether a camera is configured for Shutter.
func (s *Source) HasCamera() bool {
	return s.camera != nil
}

// Busy reports whether a capture is in flight.
func (s *Source) Busy() bool {
	return s.busy.Load()
}

// Shutter grabs one still from the active camera. If the feed has no frame
// ready it fails with NO_FRAME_AVAILABLE and emits nothing.
func (s *Source) Shutter(ctx context.Context) (string, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return "", errors.NewCaptureBusy()
	}
	defer s.busy.Store(false)

	facing := s.Facing()
	if s.camera == nil {
		return "", errors.NewNoFrameAvailable(string(facing), stderrors.New("no camera configured"))
	}
	frame, err := s.camera.Snapshot(ctx, facing)
	if err != nil {
		return "", errors.NewNoFrameAvailable(string(facing), err)
	}
	if len(frame) == 0 {
		return "", errors.NewNoFrameAvailable(string(facing), nil)
	}

	return s.emit(imaging.EncodeDataURI("", frame)), nil
}

// CaptureFile reads a user-selected file fully into memory and captures it.
func (s *Source) CaptureFile(path string) (string, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return "", errors.NewCaptureBusy()
	}
	defer s.busy.Store(false)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("cannot read %s: %v", path, err))
	}
	return s.captureBytes(data)
}

// CaptureReader captures the full contents of r.
func (s *Source) CaptureReader(r io.Reader) (string, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return "", errors.NewCaptureBusy()
	}
	defer s.busy.Store(false)

	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("cannot read image: %v", err))
	}
	return s.captureBytes(data)
}

// captureBytes forwards any bytes, image or not; decoding is the
// normalizer's job.
func (s *Source) captureBytes(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.NewMissingInput("selected file is empty")
	}
	return s.emit(imaging.EncodeDataURI("", data)), nil
}

// emit normalizes raw and invokes OnCapture. A normalizer failure forwards
// the original payload instead.
func (s *Source) emit(raw string) string {
	out, err := s.normalize(raw, s.maxDimension, s.quality)
	if err != nil {
		log.Printf("capture: normalization failed, using original (%d KB): %v", imaging.EstimateSizeKB(raw), err)
		out = raw
	}
	if s.onCapture != nil {
		s.onCapture(out)
	}
	return out
}
