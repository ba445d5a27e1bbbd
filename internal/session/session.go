package session

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/fish"
	"github.com/hpungsan/fishscroll/internal/history"
)

// State is the session phase.
type State string

const (
	StateIdle      State = "idle"
	StateCaptured  State = "captured"
	StateAnalyzing State = "analyzing"
	StateResult    State = "result"
	StateFailed    State = "failed"
)

// Analyzer identifies the fish in an image.
type Analyzer interface {
	Analyze(ctx context.Context, image string) (*fish.Analysis, error)
}

// Recorder stores successful analyses.
type Recorder interface {
	Add(ctx context.Context, image string, analysis *fish.Analysis) (history.Entry, error)
	Get(id string) (history.Entry, bool)
}

// View is a point-in-time copy of the session.
type View struct {
	State    State          `json:"state"`
	Image    string         `json:"image,omitempty"`
	Analysis *fish.Analysis `json:"analysis,omitempty"`

	// EntryID is the history entry backing a Result, if any
	EntryID string `json:"entry_id,omitempty"`

	Error       string `json:"error,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
	RawResponse string `json:"raw_response,omitempty"`

	// Replay is true when the result came from history rather than a fresh analysis
	Replay bool `json:"replay"`
}

// Session wires capture, analysis and history for one user. All methods are
// safe for concurrent use; transitions apply in call order.
type Session struct {
	analyzer Analyzer
	history  Recorder

	mu          sync.Mutex
	state       State
	image       string
	analysis    *fish.Analysis
	entryID     string
	errMsg      string
	errCode     string
	rawResponse string
	replay      bool

	// generation changes whenever the session moves on, so an analysis
	// started earlier can tell its result is stale
	generation uint64
}

// New creates an idle session.
func New(analyzer Analyzer, recorder Recorder) *Session {
	return &Session{
		analyzer: analyzer,
		history:  recorder,
		state:    StateIdle,
	}
}

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Capture stores a new image and moves to Captured, discarding any previous
// analysis or error. Rejected while an analysis is in flight.
func (s *Session) Capture(image string) error {
	if strings.TrimSpace(image) == "" {
		return errors.NewMissingInput("captured image is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAnalyzing {
		return errors.NewCaptureBusy()
	}
	s.clearLocked()
	s.state = StateCaptured
	s.image = image
	return nil
}

// Analyze sends the captured image for identification. It is allowed from
// Captured, or from Failed to retry without recapturing. On success the
// result is added to history before the session enters Result.
func (s *Session) Analyze(ctx context.Context) (*fish.Analysis, error) {
	s.mu.Lock()
	if s.state != StateCaptured && s.state != StateFailed {
		state := s.state
		s.mu.Unlock()
		return nil, errors.NewInvalidState(string(state), "analyze")
	}
	s.state = StateAnalyzing
	s.errMsg, s.errCode, s.rawResponse = "", "", ""
	image := s.image
	gen := s.generation
	s.mu.Unlock()

	analysis, err := s.analyzer.Analyze(ctx, image)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return nil, errors.NewStaleResult()
	}

	if err != nil {
		s.state = StateFailed
		s.errMsg = displayMessage(err)
		s.rawResponse = errors.RawResponse(err)
		if fErr, ok := errors.As(err); ok {
			s.errCode = string(fErr.Code)
		}
		return nil, err
	}

	// history.Add failures are persistence warnings; the entry still exists in memory
	entry, herr := s.history.Add(ctx, image, analysis)
	if herr != nil {
		log.Printf("session: %v", herr)
	}

	s.state = StateResult
	s.analysis = analysis
	s.entryID = entry.ID
	s.replay = false
	return cloneAnalysis(analysis), nil
}

// Reset returns to Idle from any state. History is not touched.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.state = StateIdle
}

// Select replays a history entry: the session jumps straight to Result with
// the stored image and analysis.
func (s *Session) Select(id string) (history.Entry, error) {
	entry, ok := s.history.Get(id)
	if !ok {
		return history.Entry{}, errors.NewNotFound(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
	s.state = StateResult
	s.image = entry.Image
	a := entry.Analysis.Clone()
	s.analysis = &a
	s.entryID = entry.ID
	s.replay = true
	return entry, nil
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		State:       s.state,
		Image:       s.image,
		Analysis:    cloneAnalysis(s.analysis),
		EntryID:     s.entryID,
		Error:       s.errMsg,
		ErrorCode:   s.errCode,
		RawResponse: s.rawResponse,
		Replay:      s.replay,
	}
}

// clearLocked drops transient data and invalidates in-flight analyses.
func (s *Session) clearLocked() {
	s.generation++
	s.image = ""
	s.analysis = nil
	s.entryID = ""
	s.errMsg, s.errCode, s.rawResponse = "", "", ""
	s.replay = false
}

// displayMessage is the user-facing text for an analysis failure.
func displayMessage(err error) string {
	if fErr, ok := errors.As(err); ok {
		return fErr.Message
	}
	return err.Error()
}

func cloneAnalysis(a *fish.Analysis) *fish.Analysis {
	if a == nil {
		return nil
	}
	c := a.Clone()
	return &c
}
