package audio

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/foxseedlab/mensetsu/internal/audio"
	"github.com/foxseedlab/mensetsu/internal/config"
	"github.com/foxseedlab/mensetsu/internal/eventloop/looptest"
)

func TestDiscardTarget(t *testing.T) {
	target := NewDiscardTarget().(*discardTarget)
	if !target.Ready() {
		t.Fatal("expected discard target to be ready")
	}
	_ = target.Append([]byte("abc"))
	target.Play()
	if target.received != 3 || !target.playing {
		t.Fatalf("unexpected state: received=%d playing=%v", target.received, target.playing)
	}
	target.Reset()
	if target.received != 0 || target.playing {
		t.Fatalf("unexpected state after reset: received=%d playing=%v", target.received, target.playing)
	}
}

func TestDumpTarget_TruncatesPerTurn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reply.mp3")
	target := NewDumpTarget(NewDiscardTarget(), path)

	_ = target.Append([]byte("first-"))
	_ = target.Append([]byte("turn"))
	target.Reset()
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if string(got) != "first-turn" {
		t.Fatalf("unexpected dump content: %q", got)
	}

	_ = target.Append([]byte("second"))
	target.Close()
	got, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("unexpected dump content: %q", got)
	}
}

type busyTarget struct{ discardTarget }

func (b *busyTarget) Append([]byte) error { return audio.ErrBusy }

func TestDumpTarget_SkipsRejectedChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reply.mp3")
	target := NewDumpTarget(&busyTarget{}, path)
	if err := target.Append([]byte("x")); !errors.Is(err, audio.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	target.Close()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no dump file, got %v", err)
	}
}

func TestMP3Stream_BusyAndDrain(t *testing.T) {
	s := newMP3Stream(4)
	s.SetConsuming(true)
	if err := s.Write([]byte("abc")); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if err := s.Write([]byte("de")); !errors.Is(err, audio.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	buf := make([]byte, 2)
	n, err := s.Read(buf)
	if err != nil || n != 2 {
		t.Fatalf("unexpected read: n=%d err=%v", n, err)
	}
	if err := s.Write([]byte("de")); err != nil {
		t.Fatalf("unexpected write error after drain: %v", err)
	}
	if s.Pending() != 3 {
		t.Fatalf("unexpected pending bytes: %d", s.Pending())
	}
}

func TestMP3Stream_OversizedChunkAcceptedWhenEmpty(t *testing.T) {
	s := newMP3Stream(2)
	s.SetConsuming(true)
	if err := s.Write([]byte("oversized")); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
}

func TestMP3Stream_CloseUnblocksReader(t *testing.T) {
	s := newMP3Stream(0)
	done := make(chan error, 1)
	go func() {
		_, err := s.Read(make([]byte, 8))
		done <- err
	}()
	s.Close()
	if err := <-done; !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if err := s.Write([]byte("x")); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected ErrClosedPipe, got %v", err)
	}
}

func TestNewTargetFactory_DiscardWithDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reply.mp3")
	factory := NewTargetFactory(&config.Config{AudioOutput: config.AudioOutputDiscard, AudioDumpPath: path})
	target, err := factory()
	if err != nil {
		t.Fatalf("unexpected factory error: %v", err)
	}
	_ = target.Append([]byte{0xff, 0xfb})
	target.Close()
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, []byte{0xff, 0xfb}) {
		t.Fatalf("unexpected dump content: %v", got)
	}
}

func TestMP3Stream_NoLimitWhileNotConsuming(t *testing.T) {
	s := newMP3Stream(4)
	if err := s.Write([]byte("abc")); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if err := s.Write([]byte("de")); err != nil {
		t.Fatalf("unexpected write error while not consuming: %v", err)
	}
	s.SetConsuming(true)
	if err := s.Write([]byte("f")); !errors.Is(err, audio.ErrBusy) {
		t.Fatalf("expected ErrBusy once consuming, got %v", err)
	}
	s.SetConsuming(false)
	if err := s.Write([]byte("f")); err != nil {
		t.Fatalf("unexpected write error after pause: %v", err)
	}
	if s.Pending() != 6 {
		t.Fatalf("unexpected pending bytes: %d", s.Pending())
	}
}

// streamTarget drives an mp3Stream the way the speaker target does, without a
// device reading from it.
type streamTarget struct {
	stream *mp3Stream
}

func (t *streamTarget) Ready() bool               { return true }
func (t *streamTarget) Append(chunk []byte) error { return t.stream.Write(chunk) }
func (t *streamTarget) Play()                     { t.stream.SetConsuming(true) }
func (t *streamTarget) Pause()                    { t.stream.SetConsuming(false) }
func (t *streamTarget) Reset()                    {}
func (t *streamTarget) Close()                    { t.stream.Close() }

func TestSink_PausedReplyKeepsEveryChunk(t *testing.T) {
	const (
		maxPending = 262144
		chunkSize  = 4096
		chunks     = 100
	)
	sched := looptest.NewManual()
	target := &streamTarget{stream: newMP3Stream(maxPending)}
	var sinkErr error
	sink := audio.NewSink(sched, func() (audio.Target, error) { return target, nil }, audio.SinkConfig{
		OnError: func(err error) { sinkErr = err },
	})

	sink.Reset("reply-1")
	sink.Pause()
	for i := 0; i < chunks; i++ {
		sink.Append(bytes.Repeat([]byte{byte(i)}, chunkSize))
	}
	sched.Advance(6 * time.Second)

	if sinkErr != nil {
		t.Fatalf("unexpected sink error: %v", sinkErr)
	}
	if sink.Accepted() != chunks*chunkSize || sink.Backlog() != 0 {
		t.Fatalf("paused reply lost audio: accepted=%d backlog=%d", sink.Accepted(), sink.Backlog())
	}
	if target.stream.Pending() != chunks*chunkSize {
		t.Fatalf("unexpected pending bytes: %d", target.stream.Pending())
	}
}
