package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	return string(body)
}

func TestMetrics_RecordsInterviewActivity(t *testing.T) {
	m := NewMetrics()
	m.TurnSubmitted("stream")
	m.TurnSubmitted("stream")
	m.TurnRejected("not_connected")
	m.ReplyReceived("batch")
	m.AudioReceived(1750)
	m.StaleAudioDropped(10)
	m.FrameDropped()
	m.ConnectionState("open", false)
	m.SinkError()

	body := scrape(t, m)
	for _, want := range []string{
		`mensetsu_turns_submitted_total{mode="stream"} 2`,
		`mensetsu_turns_rejected_total{reason="not_connected"} 1`,
		`mensetsu_replies_received_total{mode="batch"} 1`,
		`mensetsu_audio_bytes_total{disposition="buffered"} 1750`,
		`mensetsu_audio_bytes_total{disposition="stale"} 10`,
		`mensetsu_frames_dropped_total 1`,
		`mensetsu_connection_open 1`,
		`mensetsu_audio_sink_errors_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output:\n%s", want, body)
		}
	}
}

func TestMetrics_ConnectionGaugeDropsOnClose(t *testing.T) {
	m := NewMetrics()
	m.ConnectionState("open", false)
	m.ConnectionState("error", true)

	body := scrape(t, m)
	if !strings.Contains(body, `mensetsu_connection_open 0`) {
		t.Fatalf("expected closed gauge in scrape output:\n%s", body)
	}
	if !strings.Contains(body, `mensetsu_connection_state_changes_total{state="error",terminal="true"} 1`) {
		t.Fatalf("expected terminal transition in scrape output:\n%s", body)
	}
}
