package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/foxseedlab/mensetsu/internal/session"
)

// console serializes terminal output from the loop and the input goroutine.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) TurnAppended(turn session.Turn) {
	c.Println(session.FormatTurn(turn))
}

func (c *console) Notice(message string) {
	c.Println("* " + message)
}

func (c *console) Println(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, text)
}
