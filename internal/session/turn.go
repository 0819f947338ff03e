package session

import (
	"slices"
	"time"

	"github.com/foxseedlab/mensetsu/internal/frame"
)

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Turn is one entry of the interview history. Turns are never modified after
// they are appended.
type Turn struct {
	Role         Role
	Text         string
	Feedback     frame.Feedback
	Improvements []string
	Score        *float64
	AudioID      string
	CreatedAt    time.Time
}

type History struct {
	turns []Turn
}

func (h *History) Append(t Turn) {
	h.turns = append(h.turns, t)
}

func (h *History) Len() int {
	return len(h.turns)
}

// Turns returns a copy of the history in insertion order.
func (h *History) Turns() []Turn {
	return slices.Clone(h.turns)
}

func (h *History) Last() (Turn, bool) {
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}
