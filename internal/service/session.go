package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/smart-attendance/internal/models"
)

// Session is one camera loop. It moves from RUNNING to STOPPED exactly once.
type Session struct {
	id        string
	mode      models.SessionMode
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	mu         sync.Mutex
	state      models.SessionState
	stoppedAt  *time.Time
	reason     models.StopReason
	err        error
	frames     int
	detections int
	unknown    int
	captured   int
	marked     []string
}

func newSession(id string, mode models.SessionMode, startedAt time.Time, cancel context.CancelFunc) *Session {
	return &Session{
		id:        id,
		mode:      mode,
		startedAt: startedAt,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     models.SessionStateRunning,
		marked:    []string{},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Mode returns what the session does with frames.
func (s *Session) Mode() models.SessionMode { return s.mode }

// Stop requests cancellation. The loop observes it at the next iteration boundary.
func (s *Session) Stop() { s.cancel() }

// Done is closed once the session has released the camera.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session stops and returns its summary.
func (s *Session) Wait() models.SessionSummary {
	<-s.done
	return s.Summary()
}

// Err returns the error that stopped the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Summary returns a snapshot of the session counters.
func (s *Session) Summary() models.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := models.SessionSummary{
		SessionID:   s.id,
		Mode:        s.mode,
		State:       s.state,
		StartedAt:   s.startedAt,
		StoppedAt:   s.stoppedAt,
		Frames:      s.frames,
		Detections:  s.detections,
		MarkedIDs:   append([]string(nil), s.marked...),
		MarkedCount: len(s.marked),
		Captured:    s.captured,
		Unknown:     s.unknown,
		Reason:      s.reason,
	}
	if s.err != nil {
		summary.Error = s.err.Error()
	}
	return summary
}

func (s *Session) recordFrame(detections int) {
	s.mu.Lock()
	s.frames++
	s.detections += detections
	s.mu.Unlock()
}

func (s *Session) recordMarked(id string) {
	s.mu.Lock()
	s.marked = append(s.marked, id)
	s.mu.Unlock()
}

func (s *Session) recordUnknown() {
	s.mu.Lock()
	s.unknown++
	s.mu.Unlock()
}

func (s *Session) recordCaptured() {
	s.mu.Lock()
	s.captured++
	s.mu.Unlock()
}

func (s *Session) markedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.marked)
}

func (s *Session) finish(at time.Time, reason models.StopReason, err error) {
	s.mu.Lock()
	s.state = models.SessionStateStopped
	s.stoppedAt = &at
	s.reason = reason
	s.err = err
	s.mu.Unlock()
	close(s.done)
}
