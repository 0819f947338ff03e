package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/mensetsu/internal/batch"
	"github.com/foxseedlab/mensetsu/internal/eventloop"
	"github.com/foxseedlab/mensetsu/internal/frame"
	"github.com/foxseedlab/mensetsu/internal/telemetry"
	"github.com/foxseedlab/mensetsu/internal/transcriber"
	"github.com/foxseedlab/mensetsu/internal/transport"
	"github.com/google/uuid"
)

var (
	ErrSessionEnded     = errors.New("session has ended")
	ErrEmptyInput       = errors.New("input is empty")
	ErrNotConnected     = errors.New("not connected")
	ErrBatchUnavailable = errors.New("batch client is not configured")
)

const (
	modeStream      = "stream"
	modeBatch       = "batch"
	modeHeaderBatch = "header_batch"
)

// Channel is the persistent connection to the interview service.
type Channel interface {
	Connect()
	Reconnect()
	Close()
	Send(data []byte) error
	State() transport.State
	OnMessage(h transport.MessageHandler)
	OnState(h transport.StateHandler)
}

// Player is the streaming audio sink for assistant speech.
type Player interface {
	Reset(audioID string)
	Append(chunk []byte)
	Play()
	Pause()
	Stop()
	Close()
	Snapshot() []byte
}

// Notifier shows turns and notices to the user.
type Notifier interface {
	TurnAppended(turn Turn)
	Notice(message string)
}

type BatchMode int

const (
	BatchMultipart BatchMode = iota
	BatchHeaders
)

type Options struct {
	AutoPlay       bool
	WelcomeMessage string
	MaxRetries     int
}

type phase int

const (
	phaseIdle phase = iota
	phaseAwaitingReply
	phaseStreaming
)

// Manager runs one interview session. Every method must be called on the
// scheduler's loop; background work posts its results back to it.
type Manager struct {
	sched       eventloop.Scheduler
	sctx        Context
	opts        Options
	channel     Channel
	player      Player
	batch       batch.Client
	transcriber transcriber.Transcriber
	notifier    Notifier
	metrics     telemetry.Recorder
	now         func() time.Time

	history    History
	phase      phase
	audioID    string
	firstChunk bool
	ended      bool
	welcomed   bool
}

func NewManager(sched eventloop.Scheduler, sctx Context, opts Options, channel Channel, player Player, bc batch.Client, stt transcriber.Transcriber, notifier Notifier, metrics telemetry.Recorder) *Manager {
	if metrics == nil {
		metrics = telemetry.Noop{}
	}
	if stt == nil {
		stt = transcriber.Disabled{}
	}
	m := &Manager{
		sched:       sched,
		sctx:        sctx,
		opts:        opts,
		channel:     channel,
		player:      player,
		batch:       bc,
		transcriber: stt,
		notifier:    notifier,
		metrics:     metrics,
		now:         time.Now,
	}
	channel.OnMessage(m.HandleMessage)
	channel.OnState(m.HandleState)
	return m
}

func (m *Manager) Context() Context {
	return m.sctx
}

func (m *Manager) SetVoice(voice string) {
	voice = strings.TrimSpace(voice)
	if voice == "" {
		return
	}
	slog.Info("voice changed", "session_id", m.sctx.SessionID, "voice", voice)
	m.sctx.Voice = voice
}

func (m *Manager) History() []Turn {
	return m.history.Turns()
}

func (m *Manager) Ended() bool {
	return m.ended
}

func (m *Manager) Connect() {
	if m.ended {
		m.notice(messageSessionEnded)
		return
	}
	m.channel.Connect()
}

func (m *Manager) Reconnect() {
	if m.ended {
		m.notice(messageSessionEnded)
		return
	}
	m.channel.Reconnect()
}

func (m *Manager) Play()  { m.player.Play() }
func (m *Manager) Pause() { m.player.Pause() }
func (m *Manager) Stop()  { m.player.Stop() }

// LastAudio returns the audio buffered for the most recent turn.
func (m *Manager) LastAudio() []byte {
	return m.player.Snapshot()
}

// SubmitTurn sends one typed answer over the persistent channel.
func (m *Manager) SubmitTurn(input string) error {
	text, err := m.checkInput(input)
	if err != nil {
		return err
	}
	if m.channel.State() != transport.StateOpen {
		return m.reject(ErrNotConnected, messageNotConnected)
	}

	payload, err := frame.EncodeTurn(m.turnRequest(text))
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}

	m.appendTurn(Turn{Role: RoleUser, Text: text, CreatedAt: m.now()})
	m.player.Reset("")
	m.phase = phaseAwaitingReply
	m.audioID = ""
	m.firstChunk = false

	if err := m.channel.Send(payload); err != nil {
		slog.Error("failed to send turn", "session_id", m.sctx.SessionID, "error", err)
		m.phase = phaseIdle
		m.notice(messageSendFailed)
		return fmt.Errorf("send turn: %w", err)
	}
	m.metrics.TurnSubmitted(modeStream)
	slog.Info("turn submitted", "session_id", m.sctx.SessionID, "chars", len(text))
	return nil
}

// HandleMessage processes one inbound message from the channel.
func (m *Manager) HandleMessage(kind frame.Kind, data []byte) {
	if m.ended {
		return
	}
	f, err := frame.Decode(kind, data)
	if err != nil {
		slog.Debug("dropping non-protocol frame", "session_id", m.sctx.SessionID, "kind", kind.String(), "error", err)
		m.metrics.FrameDropped()
		return
	}
	switch f := f.(type) {
	case frame.TextFrame:
		m.handleReply(f.Reply)
	case frame.AudioFrame:
		m.handleAudio(f.Data)
	}
}

func (m *Manager) handleReply(reply frame.Reply) {
	turn := aiTurn(reply, uuid.NewString(), m.now())
	m.appendTurn(turn)
	m.phase = phaseStreaming
	m.audioID = turn.AudioID
	m.firstChunk = true
	m.metrics.ReplyReceived(modeStream)
	slog.Info("reply received", "session_id", m.sctx.SessionID, "audio_id", turn.AudioID)
}

func (m *Manager) handleAudio(chunk []byte) {
	if m.phase != phaseStreaming {
		slog.Debug("discarding audio outside an active reply", "session_id", m.sctx.SessionID, "bytes", len(chunk), "awaiting_reply", m.phase == phaseAwaitingReply)
		m.metrics.StaleAudioDropped(len(chunk))
		return
	}
	m.metrics.AudioReceived(len(chunk))
	if m.firstChunk {
		m.firstChunk = false
		m.player.Reset(m.audioID)
		m.player.Append(chunk)
		if m.opts.AutoPlay {
			m.player.Play()
		}
		return
	}
	m.player.Append(chunk)
}

// HandleState reacts to channel state transitions.
func (m *Manager) HandleState(ev transport.StateEvent) {
	m.metrics.ConnectionState(ev.State.String(), ev.Terminal)
	if m.ended {
		return
	}
	switch ev.State {
	case transport.StateOpen:
		m.welcome()
	case transport.StateClosed:
		m.phase = phaseIdle
		m.player.Stop()
		m.notice(messageConnectionClosed)
	case transport.StateError:
		m.phase = phaseIdle
		if ev.Terminal {
			m.notice(messageGaveUp)
			return
		}
		m.notice(retryingMessage(ev, m.opts.MaxRetries))
	}
}

func (m *Manager) welcome() {
	if m.welcomed {
		return
	}
	m.welcomed = true
	if m.opts.WelcomeMessage == "" {
		return
	}
	m.appendTurn(Turn{Role: RoleAI, Text: m.opts.WelcomeMessage, CreatedAt: m.now()})
}

// SubmitBatchTurn sends one answer in a single request/response round trip.
// Exchange failures are reported through the notifier.
func (m *Manager) SubmitBatchTurn(ctx context.Context, input string, mode BatchMode) error {
	text, err := m.checkInput(input)
	if err != nil {
		return err
	}
	if m.batch == nil {
		return m.reject(ErrBatchUnavailable, messageBatchUnavailable)
	}

	req := m.turnRequest(text)
	m.appendTurn(Turn{Role: RoleUser, Text: text, CreatedAt: m.now()})
	metricMode := modeBatch
	if mode == BatchHeaders {
		metricMode = modeHeaderBatch
	}
	m.metrics.TurnSubmitted(metricMode)

	go func() {
		var res batch.Result
		var err error
		if mode == BatchHeaders {
			res, err = m.batch.ExchangeWithHeaders(ctx, req)
		} else {
			res, err = m.batch.Exchange(ctx, req)
		}
		m.sched.Post(func() {
			m.handleBatchResult(metricMode, res, err)
		})
	}()
	return nil
}

func (m *Manager) handleBatchResult(mode string, res batch.Result, err error) {
	if m.ended {
		return
	}
	if err != nil {
		slog.Error("batch exchange failed", "session_id", m.sctx.SessionID, "mode", mode, "error", err)
		m.notice(batchFailedMessage(err))
		return
	}
	turn := aiTurn(res.Reply, uuid.NewString(), m.now())
	m.appendTurn(turn)
	m.metrics.ReplyReceived(mode)
	m.playWhole(turn.AudioID, res.Audio, m.opts.AutoPlay)
}

// Speak synthesizes text with the session voice and plays it.
func (m *Manager) Speak(ctx context.Context, text string) error {
	text, err := m.checkInput(text)
	if err != nil {
		return err
	}
	if m.batch == nil {
		return m.reject(ErrBatchUnavailable, messageBatchUnavailable)
	}
	req := frame.SpeechRequest{Text: text, Voice: m.sctx.Voice, Speed: m.sctx.SpeechSpeed}
	go func() {
		audio, err := m.batch.Synthesize(ctx, req)
		m.sched.Post(func() {
			if m.ended {
				return
			}
			if err != nil {
				slog.Error("speech synthesis failed", "session_id", m.sctx.SessionID, "error", err)
				m.notice(speechFailedMessage(err))
				return
			}
			m.playWhole(uuid.NewString(), audio, true)
		})
	}()
	return nil
}

// SubmitSpokenTurn transcribes a recorded answer and submits the text as a turn.
func (m *Manager) SubmitSpokenTurn(ctx context.Context, rec transcriber.Recording) error {
	if m.ended {
		return m.reject(ErrSessionEnded, messageSessionEnded)
	}
	if len(rec.Data) == 0 {
		return m.reject(ErrEmptyInput, messageEmptyInput)
	}
	if m.channel.State() != transport.StateOpen {
		return m.reject(ErrNotConnected, messageNotConnected)
	}
	sessionID := m.sctx.SessionID
	go func() {
		text, err := m.transcriber.Transcribe(ctx, sessionID, rec)
		m.sched.Post(func() {
			if m.ended {
				return
			}
			if err != nil {
				slog.Error("transcription failed", "session_id", sessionID, "error", err)
				m.notice(transcribeFailedMessage(err))
				return
			}
			if strings.TrimSpace(text) == "" {
				m.notice(messageNoSpeech)
				return
			}
			if err := m.SubmitTurn(text); err != nil {
				slog.Warn("spoken turn rejected", "session_id", sessionID, "error", err)
			}
		})
	}()
	return nil
}

// End finishes the session. It cannot be resumed.
func (m *Manager) End() {
	if m.ended {
		return
	}
	m.ended = true
	m.phase = phaseIdle
	m.player.Close()
	m.channel.Close()
	slog.Info("session ended", "session_id", m.sctx.SessionID, "turns", m.history.Len())
	m.notice(messageInterviewEnded)
}

func (m *Manager) playWhole(audioID string, audio []byte, play bool) {
	m.phase = phaseIdle
	m.audioID = ""
	m.firstChunk = false
	m.player.Reset(audioID)
	if len(audio) == 0 {
		return
	}
	m.player.Append(audio)
	if play {
		m.player.Play()
	}
}

func (m *Manager) checkInput(input string) (string, error) {
	if m.ended {
		return "", m.reject(ErrSessionEnded, messageSessionEnded)
	}
	text := strings.TrimSpace(input)
	if text == "" {
		return "", m.reject(ErrEmptyInput, messageEmptyInput)
	}
	return text, nil
}

func (m *Manager) reject(err error, message string) error {
	slog.Warn("turn rejected", "session_id", m.sctx.SessionID, "reason", err.Error())
	m.metrics.TurnRejected(err.Error())
	m.notice(message)
	return err
}

func (m *Manager) turnRequest(text string) frame.TurnRequest {
	return frame.TurnRequest{
		UserInput:     text,
		JobTitle:      m.sctx.JobTitle,
		JobDesc:       m.sctx.JobDesc,
		Voice:         m.sctx.Voice,
		TTSModel:      m.sctx.TTSModel,
		SessionID:     m.sctx.SessionID,
		InterviewType: m.sctx.InterviewType,
	}
}

func (m *Manager) appendTurn(t Turn) {
	m.history.Append(t)
	if m.notifier != nil {
		m.notifier.TurnAppended(t)
	}
}

func (m *Manager) notice(message string) {
	if m.notifier != nil {
		m.notifier.Notice(message)
	}
}

func aiTurn(reply frame.Reply, audioID string, at time.Time) Turn {
	return Turn{
		Role:         RoleAI,
		Text:         reply.AIResponse,
		Feedback:     reply.Feedback,
		Improvements: reply.SuggestedImprovements,
		Score:        reply.Score,
		AudioID:      audioID,
		CreatedAt:    at,
	}
}
