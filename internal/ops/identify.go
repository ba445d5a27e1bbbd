package ops

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/hpungsan/fishscroll/internal/capture"
	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/fish"
	"github.com/hpungsan/fishscroll/internal/history"
	"github.com/hpungsan/fishscroll/internal/imaging"
	"github.com/hpungsan/fishscroll/internal/session"
)

// Pipeline is what Identify needs: a capture source, an analyzer and the
// history store results are recorded in.
type Pipeline struct {
	Capture  *capture.Source
	Analyzer session.Analyzer
	History  *history.Store
}

// IdentifyInput names exactly one image source.
type IdentifyInput struct {
	Image  string // data URI
	Path   string // local file
	Camera bool   // snapshot from the configured camera
	Facing string // camera facing; default keeps the current one
}

// IdentifyOutput contains the result of the Identify operation.
type IdentifyOutput struct {
	EntryID  string         `json:"entry_id"`
	Analysis *fish.Analysis `json:"analysis"`
	ImageKB  int            `json:"image_kb"`
	Facing   string         `json:"facing,omitempty"`
}

// Identify captures an image, analyzes it and records the result in history.
// It runs one capture-analyze cycle of a fresh session.
func Identify(ctx context.Context, p Pipeline, input IdentifyInput) (*IdentifyOutput, error) {
	image, facing, err := acquire(ctx, p.Capture, input)
	if err != nil {
		return nil, err
	}

	sess := session.New(p.Analyzer, p.History)
	if err := sess.Capture(image); err != nil {
		return nil, err
	}
	analysis, err := sess.Analyze(ctx)
	if err != nil {
		return nil, err
	}

	return &IdentifyOutput{
		EntryID:  sess.View().EntryID,
		Analysis: analysis,
		ImageKB:  imaging.EstimateSizeKB(image),
		Facing:   facing,
	}, nil
}

func acquire(ctx context.Context, src *capture.Source, input IdentifyInput) (image, facing string, err error) {
	image = strings.TrimSpace(input.Image)
	path := strings.TrimSpace(input.Path)

	sources := 0
	for _, set := range []bool{image != "", path != "", input.Camera} {
		if set {
			sources++
		}
	}
	switch {
	case sources == 0:
		return "", "", errors.NewMissingInput("one of image, path or camera is required")
	case sources > 1:
		return "", "", errors.NewInvalidRequest("provide only one of image, path or camera")
	}

	switch {
	case input.Camera:
		if input.Facing != "" {
			want, err := capture.ParseFacing(input.Facing)
			if err != nil {
				return "", "", err
			}
			if src.Facing() != want {
				src.ToggleFacing()
			}
		}
		image, err = src.Shutter(ctx)
		return image, string(src.Facing()), err

	case path != "":
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return "", "", errors.NewFileNotFound(path)
		}
		image, err = src.CaptureFile(path)
		return image, "", err

	default:
		uri, err := imaging.ParseDataURI(image)
		if err != nil {
			return "", "", errors.NewInvalidRequest(err.Error())
		}
		image, err = src.CaptureReader(bytes.NewReader(uri.Data))
		return image, "", err
	}
}
