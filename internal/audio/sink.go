package audio

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/mensetsu/internal/eventloop"
)

const (
	defaultRetryDelay  = 20 * time.Millisecond
	defaultMaxAttempts = 250
)

var (
	ErrBusy          = errors.New("audio target busy")
	ErrAppendStalled = errors.New("audio append retries exhausted")
)

// Target is the playback device the Sink feeds. Append returns ErrBusy when
// the device cannot take more data yet.
type Target interface {
	Ready() bool
	Append(chunk []byte) error
	Play()
	Pause()
	Reset()
	Close()
}

type TargetFactory func() (Target, error)

type State int

const (
	StateUninitialized State = iota
	StateReady
	StatePlaying
	StatePaused
	StateStopped
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type SinkConfig struct {
	RetryDelay  time.Duration
	MaxAttempts int
	OnError     func(error)
	OnReady     func()
}

// Sink owns the playback buffer of the current turn. All methods must be
// called on the scheduler's loop.
type Sink struct {
	sched     eventloop.Scheduler
	newTarget TargetFactory
	cfg       SinkConfig

	target        Target
	targetReady   bool
	state         State
	audioID       string
	generation    uint64
	backlog       [][]byte
	attempts      int
	retryCancel   eventloop.Cancel
	dropReason    string
	playRequested bool
	accepted      []byte
}

func NewSink(sched eventloop.Scheduler, newTarget TargetFactory, cfg SinkConfig) *Sink {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Sink{
		sched:     sched,
		newTarget: newTarget,
		cfg:       cfg,
	}
}

// Reset starts a fresh turn. Playback stops, queued and buffered audio of the
// previous turn is discarded, and pending retries are cancelled.
func (s *Sink) Reset(audioID string) {
	if s.state == StateClosed {
		return
	}
	s.clearTurn()
	s.audioID = audioID
	if s.target != nil {
		s.target.Reset()
	} else if err := s.openTarget(); err != nil {
		s.reportError(err)
		return
	}
	s.state = StateUninitialized
	if s.targetReady {
		s.state = StateReady
	}
	s.checkReady()
	slog.Debug("audio sink reset", "audio_id", audioID, "state", s.state.String())
}

func (s *Sink) Append(chunk []byte) {
	switch {
	case s.state == StateClosed:
		slog.Debug("dropping audio chunk; sink closed", "bytes", len(chunk))
		return
	case s.dropReason != "":
		slog.Debug("dropping audio chunk", "audio_id", s.audioID, "reason", s.dropReason, "bytes", len(chunk))
		return
	case len(chunk) == 0:
		return
	}
	if s.target == nil {
		if err := s.openTarget(); err != nil {
			s.reportError(err)
			return
		}
	}
	s.backlog = append(s.backlog, bytes.Clone(chunk))
	if s.retryCancel != nil {
		return
	}
	s.drain()
}

func (s *Sink) Play() {
	if s.target == nil || s.state == StateClosed {
		return
	}
	s.playRequested = true
	s.maybeStartPlayback()
}

func (s *Sink) Pause() {
	if s.target == nil || s.state == StateClosed {
		return
	}
	s.playRequested = false
	switch s.state {
	case StatePlaying:
		s.target.Pause()
		s.state = StatePaused
	case StateReady:
		s.state = StatePaused
	}
}

// Stop pauses playback and discards audio that was not yet accepted. Further
// chunks of the current turn are ignored until the next Reset. Audio already
// buffered stays available to Play and Snapshot.
func (s *Sink) Stop() {
	if s.target == nil || s.state == StateClosed || s.state == StateStopped {
		return
	}
	s.cancelRetry()
	s.backlog = nil
	s.attempts = 0
	s.playRequested = false
	s.dropReason = "stopped"
	s.target.Pause()
	s.state = StateStopped
}

// Close tears the sink down for good.
func (s *Sink) Close() {
	if s.state == StateClosed {
		return
	}
	s.clearTurn()
	if s.target != nil {
		s.target.Reset()
		s.target.Close()
		s.target = nil
	}
	s.targetReady = false
	s.state = StateClosed
}

func (s *Sink) Ready() bool {
	return s.target != nil && s.targetReady
}

func (s *Sink) State() State {
	return s.state
}

func (s *Sink) AudioID() string {
	return s.audioID
}

// Backlog reports chunks waiting for the target to accept them.
func (s *Sink) Backlog() int {
	return len(s.backlog)
}

// Accepted reports how many bytes of the current turn the target accepted.
func (s *Sink) Accepted() int {
	return len(s.accepted)
}

// Snapshot returns a copy of the audio accepted for the current turn.
func (s *Sink) Snapshot() []byte {
	return bytes.Clone(s.accepted)
}

func (s *Sink) openTarget() error {
	if s.newTarget == nil {
		return errors.New("audio target factory is not configured")
	}
	t, err := s.newTarget()
	if err != nil {
		return fmt.Errorf("open audio target: %w", err)
	}
	s.target = t
	s.targetReady = false
	return nil
}

func (s *Sink) checkReady() bool {
	if s.targetReady {
		return true
	}
	if !s.target.Ready() {
		return false
	}
	s.targetReady = true
	if s.state == StateUninitialized {
		s.state = StateReady
	}
	slog.Debug("audio target ready", "audio_id", s.audioID)
	if s.cfg.OnReady != nil {
		s.cfg.OnReady()
	}
	return true
}

func (s *Sink) drain() {
	for len(s.backlog) > 0 {
		if !s.checkReady() {
			s.scheduleRetry()
			return
		}
		err := s.target.Append(s.backlog[0])
		if errors.Is(err, ErrBusy) {
			s.scheduleRetry()
			return
		}
		chunk := s.backlog[0]
		s.backlog[0] = nil
		s.backlog = s.backlog[1:]
		s.attempts = 0
		if err != nil {
			s.reportError(fmt.Errorf("append audio chunk: %w", err))
			continue
		}
		s.accepted = append(s.accepted, chunk...)
	}
	s.backlog = nil
	s.maybeStartPlayback()
}

func (s *Sink) scheduleRetry() {
	s.attempts++
	if s.attempts > s.cfg.MaxAttempts {
		s.stall()
		return
	}
	gen := s.generation
	s.retryCancel = s.sched.AfterFunc(s.cfg.RetryDelay, func() {
		if gen != s.generation {
			return
		}
		s.retryCancel = nil
		s.drain()
	})
}

func (s *Sink) stall() {
	dropped := len(s.backlog)
	s.backlog = nil
	s.attempts = 0
	s.dropReason = "stalled"
	slog.Warn("audio append retries exhausted; discarding rest of turn", "audio_id", s.audioID, "dropped_chunks", dropped)
	s.reportError(fmt.Errorf("%w: %d chunks dropped", ErrAppendStalled, dropped))
}

func (s *Sink) maybeStartPlayback() {
	if !s.playRequested || !s.targetReady || len(s.accepted) == 0 {
		return
	}
	if s.state == StatePlaying {
		return
	}
	s.target.Play()
	s.state = StatePlaying
}

func (s *Sink) cancelRetry() {
	s.generation++
	if s.retryCancel != nil {
		s.retryCancel()
		s.retryCancel = nil
	}
}

func (s *Sink) clearTurn() {
	s.cancelRetry()
	s.backlog = nil
	s.attempts = 0
	s.dropReason = ""
	s.playRequested = false
	s.accepted = nil
}

func (s *Sink) reportError(err error) {
	slog.Error("audio sink error", "audio_id", s.audioID, "error", err)
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}
