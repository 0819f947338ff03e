package audio

import (
	"io"
	"sync"

	"github.com/foxseedlab/mensetsu/internal/audio"
)

// mp3Stream is the encoded byte queue between the loop, which writes, and the
// decoder on the playback goroutine, which reads.
type mp3Stream struct {
	mu         sync.Mutex
	cond       *sync.Cond
	buf        []byte
	maxPending int
	consuming  bool
	closed     bool
}

func newMP3Stream(maxPending int) *mp3Stream {
	s := &mp3Stream{maxPending: maxPending}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Write never blocks. While a player is consuming, it returns audio.ErrBusy
// once the unread backlog reaches its limit. Paused or not yet started streams
// are not limited.
func (s *mp3Stream) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	if s.consuming && s.maxPending > 0 && len(s.buf) > 0 && len(s.buf)+len(data) > s.maxPending {
		return audio.ErrBusy
	}
	s.buf = append(s.buf, data...)
	s.cond.Signal()
	return nil
}

// Read blocks until data arrives or the stream is closed.
func (s *mp3Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// SetConsuming reports whether a player is currently draining the stream.
func (s *mp3Stream) SetConsuming(consuming bool) {
	s.mu.Lock()
	s.consuming = consuming
	s.mu.Unlock()
}

func (s *mp3Stream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

func (s *mp3Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.buf = nil
	s.cond.Broadcast()
	s.mu.Unlock()
}
