package audio

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/foxseedlab/mensetsu/internal/eventloop/looptest"
)

type mockTarget struct {
	ready      bool
	busyFor    int
	busyRandom *rand.Rand
	failNext   error

	buffered   []byte
	appendLog  [][]byte
	appendCall int
	playCalls  int
	pauseCalls int
	resetCalls int
	closed     bool
	playing    bool
}

func (m *mockTarget) Ready() bool { return m.ready }

func (m *mockTarget) Append(chunk []byte) error {
	m.appendCall++
	if m.busyFor > 0 {
		m.busyFor--
		return ErrBusy
	}
	if m.busyRandom != nil && m.busyRandom.Intn(3) == 0 {
		return ErrBusy
	}
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.buffered = append(m.buffered, chunk...)
	m.appendLog = append(m.appendLog, bytes.Clone(chunk))
	return nil
}

func (m *mockTarget) Play()  { m.playCalls++; m.playing = true }
func (m *mockTarget) Pause() { m.pauseCalls++; m.playing = false }
func (m *mockTarget) Reset() {
	m.resetCalls++
	m.playing = false
	m.buffered = nil
	m.appendLog = nil
}
func (m *mockTarget) Close() { m.closed = true }

func newTestSink(target *mockTarget, cfg SinkConfig) (*Sink, *looptest.Manual) {
	sched := looptest.NewManual()
	return NewSink(sched, func() (Target, error) { return target, nil }, cfg), sched
}

func TestSink_AppendOrderPreservedAcrossRandomPartitions(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		rng := rand.New(rand.NewSource(seed))
		payload := make([]byte, 2048+rng.Intn(8192))
		rng.Read(payload)

		target := &mockTarget{ready: true, busyRandom: rand.New(rand.NewSource(seed * 7))}
		sink, sched := newTestSink(target, SinkConfig{MaxAttempts: 1000})
		sink.Reset("turn")

		rest := payload
		for len(rest) > 0 {
			n := 1 + rng.Intn(700)
			if n > len(rest) {
				n = len(rest)
			}
			sink.Append(rest[:n])
			rest = rest[n:]
			if rng.Intn(2) == 0 {
				sched.Advance(20 * time.Millisecond)
			}
		}
		for i := 0; sink.Backlog() > 0 && i < 10000; i++ {
			sched.Advance(20 * time.Millisecond)
		}

		if !bytes.Equal(target.buffered, payload) {
			t.Fatalf("seed %d: played bytes differ from appended bytes (got %d, want %d)", seed, len(target.buffered), len(payload))
		}
		if !bytes.Equal(sink.Snapshot(), payload) {
			t.Fatalf("seed %d: snapshot differs from appended bytes", seed)
		}
	}
}

func TestSink_QueuesUntilTargetReady(t *testing.T) {
	target := &mockTarget{}
	readyCalls := 0
	sink, sched := newTestSink(target, SinkConfig{OnReady: func() { readyCalls++ }})
	sink.Reset("turn")
	if sink.State() != StateUninitialized {
		t.Fatalf("unexpected state: %s", sink.State())
	}

	sink.Append([]byte("abc"))
	sink.Play()
	if len(target.buffered) != 0 || target.playCalls != 0 {
		t.Fatal("expected no append or playback before ready")
	}

	target.ready = true
	sched.Advance(20 * time.Millisecond)
	if string(target.buffered) != "abc" {
		t.Fatalf("unexpected buffered audio: %q", target.buffered)
	}
	if readyCalls != 1 {
		t.Fatalf("unexpected ready notifications: %d", readyCalls)
	}
	if sink.State() != StatePlaying || target.playCalls != 1 {
		t.Fatalf("expected playback to start once data arrived, state=%s plays=%d", sink.State(), target.playCalls)
	}
}

func TestSink_ResetDiscardsPreviousTurn(t *testing.T) {
	target := &mockTarget{ready: true}
	sink, sched := newTestSink(target, SinkConfig{})
	sink.Reset("old")
	sink.Append([]byte("old-1"))
	target.busyFor = 5
	sink.Append([]byte("old-2"))
	sink.Append([]byte("old-3"))
	if sink.Backlog() != 2 {
		t.Fatalf("unexpected backlog: %d", sink.Backlog())
	}

	sink.Reset("new")
	target.busyFor = 0
	sink.Append([]byte("new-1"))
	sched.Advance(time.Second)

	if len(target.appendLog) != 1 || string(target.appendLog[0]) != "new-1" {
		t.Fatalf("stale audio reached the target after reset: %q", target.appendLog)
	}
	if sink.AudioID() != "new" || sink.Accepted() != len("new-1") {
		t.Fatalf("unexpected turn state: id=%s accepted=%d", sink.AudioID(), sink.Accepted())
	}
}

func TestSink_RetryExhaustionStallsTurn(t *testing.T) {
	target := &mockTarget{ready: true, busyFor: 1 << 30}
	var errs []error
	sink, sched := newTestSink(target, SinkConfig{MaxAttempts: 3, OnError: func(err error) { errs = append(errs, err) }})
	sink.Reset("turn")
	sink.Append([]byte("a"))
	sink.Append([]byte("b"))
	sched.Advance(time.Second)

	if len(errs) != 1 || !errors.Is(errs[0], ErrAppendStalled) {
		t.Fatalf("expected one stall error, got %v", errs)
	}
	if sink.Backlog() != 0 {
		t.Fatalf("expected backlog discarded, got %d", sink.Backlog())
	}
	target.busyFor = 0
	sink.Append([]byte("c"))
	if len(target.buffered) != 0 {
		t.Fatal("expected chunks of a stalled turn to be dropped")
	}

	sink.Reset("next")
	sink.Append([]byte("d"))
	if string(target.buffered) != "d" {
		t.Fatalf("expected new turn to accept audio, got %q", target.buffered)
	}
	if sched.PendingTimers() != 0 {
		t.Fatalf("unexpected pending timers: %d", sched.PendingTimers())
	}
}

func TestSink_NonBusyErrorDropsChunk(t *testing.T) {
	target := &mockTarget{ready: true, failNext: errors.New("decoder rejected data")}
	var errs []error
	sink, _ := newTestSink(target, SinkConfig{OnError: func(err error) { errs = append(errs, err) }})
	sink.Reset("turn")
	sink.Append([]byte("bad"))
	sink.Append([]byte("good"))
	if len(errs) != 1 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if string(target.buffered) != "good" {
		t.Fatalf("unexpected buffered audio: %q", target.buffered)
	}
}

func TestSink_ControlsAreNoOpsWithoutTarget(t *testing.T) {
	sink := NewSink(looptest.NewManual(), func() (Target, error) { return &mockTarget{}, nil }, SinkConfig{})
	sink.Play()
	sink.Pause()
	sink.Stop()
	sink.Stop()
	if sink.State() != StateUninitialized || sink.Ready() {
		t.Fatalf("unexpected state: %s", sink.State())
	}
}

func TestSink_PlayPauseStopIdempotent(t *testing.T) {
	target := &mockTarget{ready: true}
	sink, _ := newTestSink(target, SinkConfig{})
	sink.Reset("turn")
	sink.Append([]byte("abc"))

	sink.Play()
	sink.Play()
	if target.playCalls != 1 || sink.State() != StatePlaying {
		t.Fatalf("unexpected play handling: calls=%d state=%s", target.playCalls, sink.State())
	}
	sink.Pause()
	sink.Pause()
	if target.pauseCalls != 1 || sink.State() != StatePaused {
		t.Fatalf("unexpected pause handling: calls=%d state=%s", target.pauseCalls, sink.State())
	}
	sink.Stop()
	sink.Stop()
	if sink.State() != StateStopped {
		t.Fatalf("unexpected state after stop: %s", sink.State())
	}

	sink.Append([]byte("late"))
	if string(target.buffered) != "abc" {
		t.Fatalf("expected appends ignored after stop, got %q", target.buffered)
	}
	if string(sink.Snapshot()) != "abc" {
		t.Fatalf("expected accepted audio kept after stop, got %q", sink.Snapshot())
	}
}

func TestSink_CloseIsTerminal(t *testing.T) {
	target := &mockTarget{ready: true}
	sink, _ := newTestSink(target, SinkConfig{})
	sink.Reset("turn")
	sink.Append([]byte("abc"))
	sink.Close()

	if !target.closed || sink.State() != StateClosed {
		t.Fatalf("expected closed target, state=%s", sink.State())
	}
	sink.Reset("again")
	sink.Append([]byte("x"))
	sink.Play()
	if sink.State() != StateClosed || sink.Accepted() != 0 {
		t.Fatalf("expected closed sink to ignore calls, state=%s accepted=%d", sink.State(), sink.Accepted())
	}
}
