package audio

import "github.com/foxseedlab/mensetsu/internal/audio"

// discardTarget accepts everything and plays nothing. It backs headless runs.
type discardTarget struct {
	received int
	playing  bool
}

func NewDiscardTarget() audio.Target {
	return &discardTarget{}
}

func (t *discardTarget) Ready() bool { return true }

func (t *discardTarget) Append(chunk []byte) error {
	t.received += len(chunk)
	return nil
}

func (t *discardTarget) Play()  { t.playing = true }
func (t *discardTarget) Pause() { t.playing = false }

func (t *discardTarget) Reset() {
	t.received = 0
	t.playing = false
}

func (t *discardTarget) Close() {}
