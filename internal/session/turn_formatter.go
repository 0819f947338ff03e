package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const turnTimeLayout = "15:04:05"

// FormatTurn renders a turn for the terminal transcript.
func FormatTurn(t Turn) string {
	lines := []string{fmt.Sprintf("%s %s: %s", t.CreatedAt.Format(turnTimeLayout), speakerLabel(t.Role), t.Text)}
	if t.Score != nil {
		lines = append(lines, "  score: "+strconv.FormatFloat(*t.Score, 'f', -1, 64))
	}
	if len(t.Feedback) > 0 {
		lines = append(lines, "  feedback:")
		for _, category := range t.Feedback.Categories() {
			lines = append(lines, fmt.Sprintf("    %s: %s", category, t.Feedback[category]))
		}
	}
	if len(t.Improvements) > 0 {
		lines = append(lines, "  suggested improvements:")
		for _, imp := range t.Improvements {
			if strings.TrimSpace(imp) == "" {
				continue
			}
			lines = append(lines, "    - "+imp)
		}
	}
	return strings.Join(lines, "\n")
}

// FormatHistory renders the whole session with a short header.
func FormatHistory(sctx Context, turns []Turn) string {
	lines := []string{
		fmt.Sprintf("Session: %s", sctx.SessionID),
		fmt.Sprintf("Position: %s", sctx.JobTitle),
		fmt.Sprintf("Turns: %d", len(turns)),
	}
	if len(turns) > 0 {
		lines = append(lines, fmt.Sprintf("Duration: %s", formatElapsed(turns[len(turns)-1].CreatedAt.Sub(turns[0].CreatedAt))))
	}
	lines = append(lines, "")
	for _, t := range turns {
		lines = append(lines, FormatTurn(t))
	}
	return strings.Join(lines, "\n")
}

func speakerLabel(r Role) string {
	switch r {
	case RoleAI:
		return "Interviewer"
	case RoleUser:
		return "You"
	default:
		return string(r)
	}
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
