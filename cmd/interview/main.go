package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/mensetsu/external/audio"
	configloader "github.com/foxseedlab/mensetsu/external/config"
	"github.com/foxseedlab/mensetsu/external/httpapi"
	metricsimpl "github.com/foxseedlab/mensetsu/external/metrics"
	transcriberimpl "github.com/foxseedlab/mensetsu/external/transcriber"
	wsimpl "github.com/foxseedlab/mensetsu/external/websocket"
	"github.com/foxseedlab/mensetsu/internal/config"
	"github.com/foxseedlab/mensetsu/internal/eventloop"
	"github.com/foxseedlab/mensetsu/internal/session"
	"github.com/foxseedlab/mensetsu/internal/transcriber"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 5 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "session_id", cfg.SessionID)

	out := newConsole(os.Stdout)
	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg, out)

	runInterview(cfg, injector, out)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// Logs go to stderr so they do not interleave with the transcript on stdout.
func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config, notifier session.Notifier) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, notifier)
	metricsimpl.RegisterDI(injector)
	wsimpl.RegisterDI(injector)
	httpapi.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	session.RegisterDI(injector)

	return injector
}

func runInterview(cfg *config.Config, injector do.Injector, out *console) {
	loop, err := do.Invoke[*eventloop.Loop](injector)
	if err != nil {
		slog.Error("failed to resolve event loop", "error", err)
		os.Exit(1)
	}
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}
	stt := do.MustInvoke[transcriber.Transcriber](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		m := do.MustInvoke[*metricsimpl.Metrics](injector)
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				slog.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(loopCtx)
	}()

	out.Println(fmt.Sprintf("Mock interview for %s (session %s). Type /help for commands.", cfg.JobTitle, cfg.SessionID))
	loop.Post(manager.Connect)

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		readCommands(ctx, os.Stdin, loop, manager, out)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case <-inputDone:
	}

	endCtx, cancelEnd := context.WithTimeout(context.Background(), shutdownTimeout)
	if err := loop.Call(endCtx, manager.End); err != nil {
		slog.Warn("failed to end session cleanly", "error", err)
	}
	cancelEnd()
	stopLoop()
	<-loopDone
	if closer, ok := stt.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			slog.Warn("failed to close transcriber", "error", err)
		}
	}
}

func readCommands(ctx context.Context, in io.Reader, loop *eventloop.Loop, manager *session.Manager, out *console) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		cmd, err := parseCommand(scanner.Text())
		if err != nil {
			out.Println("* " + err.Error())
			continue
		}
		if cmd.kind == cmdEnd {
			return
		}
		if err := dispatch(ctx, cmd, loop, manager, out); err != nil {
			if errors.Is(err, eventloop.ErrStopped) || errors.Is(err, context.Canceled) {
				return
			}
			slog.Debug("command failed", "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Error("failed to read input", "error", err)
	}
}

// dispatch runs blocking file I/O on the caller's goroutine and session calls
// on the loop.
func dispatch(ctx context.Context, cmd command, loop *eventloop.Loop, manager *session.Manager, out *console) error {
	var result error
	onLoop := func(fn func() error) error {
		if err := loop.Call(ctx, func() { result = fn() }); err != nil {
			return err
		}
		return result
	}
	action := func(fn func()) error {
		return loop.Call(ctx, fn)
	}

	switch cmd.kind {
	case cmdTurn:
		return onLoop(func() error { return manager.SubmitTurn(cmd.arg) })
	case cmdBatch:
		return onLoop(func() error { return manager.SubmitBatchTurn(ctx, cmd.arg, session.BatchMultipart) })
	case cmdHeaders:
		return onLoop(func() error { return manager.SubmitBatchTurn(ctx, cmd.arg, session.BatchHeaders) })
	case cmdSay:
		return onLoop(func() error { return manager.Speak(ctx, cmd.arg) })
	case cmdAnswer:
		data, err := os.ReadFile(cmd.arg)
		if err != nil {
			out.Println("* " + err.Error())
			return err
		}
		rec := transcriber.Recording{Filename: filepath.Base(cmd.arg), ContentType: "audio/wav", Data: data}
		return onLoop(func() error { return manager.SubmitSpokenTurn(ctx, rec) })
	case cmdPlay:
		return action(manager.Play)
	case cmdPause:
		return action(manager.Pause)
	case cmdStop:
		return action(manager.Stop)
	case cmdSave:
		var audio []byte
		if err := action(func() { audio = manager.LastAudio() }); err != nil {
			return err
		}
		if len(audio) == 0 {
			out.Println("* No reply audio to save yet.")
			return nil
		}
		if err := os.WriteFile(cmd.arg, audio, 0o644); err != nil {
			out.Println("* " + err.Error())
			return err
		}
		out.Println(fmt.Sprintf("* Saved %d bytes to %s", len(audio), cmd.arg))
		return nil
	case cmdVoice:
		return action(func() { manager.SetVoice(cmd.arg) })
	case cmdConnect:
		return action(manager.Connect)
	case cmdReconnect:
		return action(manager.Reconnect)
	case cmdHistory:
		var text string
		if err := action(func() { text = session.FormatHistory(manager.Context(), manager.History()) }); err != nil {
			return err
		}
		out.Println(text)
		return nil
	case cmdHelp:
		out.Println(helpText())
		return nil
	default:
		return fmt.Errorf("unhandled command %d", cmd.kind)
	}
}
