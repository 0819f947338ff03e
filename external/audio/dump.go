package audio

import (
	"log/slog"
	"os"

	"github.com/foxseedlab/mensetsu/internal/audio"
)

// dumpTarget copies every chunk the wrapped target accepts into a file. The
// file is truncated at each turn, so it always holds the latest reply.
type dumpTarget struct {
	inner audio.Target
	path  string
	file  *os.File
}

func NewDumpTarget(inner audio.Target, path string) audio.Target {
	return &dumpTarget{inner: inner, path: path}
}

func (t *dumpTarget) Ready() bool { return t.inner.Ready() }

func (t *dumpTarget) Append(chunk []byte) error {
	if err := t.inner.Append(chunk); err != nil {
		return err
	}
	if t.file == nil {
		f, err := os.Create(t.path)
		if err != nil {
			slog.Warn("failed to open audio dump file", "path", t.path, "error", err)
			return nil
		}
		t.file = f
	}
	if _, err := t.file.Write(chunk); err != nil {
		slog.Warn("failed to write audio dump", "path", t.path, "error", err)
	}
	return nil
}

func (t *dumpTarget) Play()  { t.inner.Play() }
func (t *dumpTarget) Pause() { t.inner.Pause() }

func (t *dumpTarget) Reset() {
	t.inner.Reset()
	t.closeFile()
}

func (t *dumpTarget) Close() {
	t.inner.Close()
	t.closeFile()
}

func (t *dumpTarget) closeFile() {
	if t.file == nil {
		return
	}
	if err := t.file.Close(); err != nil {
		slog.Warn("failed to close audio dump file", "path", t.path, "error", err)
	}
	t.file = nil
}
