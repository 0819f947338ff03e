package main

import (
	"errors"
	"fmt"
	"strings"
)

type commandKind int

const (
	cmdTurn commandKind = iota
	cmdBatch
	cmdHeaders
	cmdSay
	cmdAnswer
	cmdPlay
	cmdPause
	cmdStop
	cmdSave
	cmdVoice
	cmdConnect
	cmdReconnect
	cmdHistory
	cmdHelp
	cmdEnd
)

type command struct {
	kind commandKind
	arg  string
}

type commandSpec struct {
	kind        commandKind
	usage       string
	description string
	needsArg    bool
}

var commandSpecs = map[string]commandSpec{
	"/batch":     {kind: cmdBatch, usage: "/batch <answer>", description: "send an answer in one multipart round trip", needsArg: true},
	"/headers":   {kind: cmdHeaders, usage: "/headers <answer>", description: "send an answer and read the reply from response headers", needsArg: true},
	"/say":       {kind: cmdSay, usage: "/say <text>", description: "speak text with the session voice", needsArg: true},
	"/answer":    {kind: cmdAnswer, usage: "/answer <file.wav>", description: "transcribe a recorded answer and send it", needsArg: true},
	"/play":      {kind: cmdPlay, usage: "/play", description: "resume playback"},
	"/pause":     {kind: cmdPause, usage: "/pause", description: "pause playback"},
	"/stop":      {kind: cmdStop, usage: "/stop", description: "stop playback and drop the rest of the reply"},
	"/save":      {kind: cmdSave, usage: "/save <file.mp3>", description: "write the latest reply audio to a file", needsArg: true},
	"/voice":     {kind: cmdVoice, usage: "/voice <id>", description: "change the interviewer voice", needsArg: true},
	"/connect":   {kind: cmdConnect, usage: "/connect", description: "connect after giving up"},
	"/reconnect": {kind: cmdReconnect, usage: "/reconnect", description: "drop and reopen the connection"},
	"/history":   {kind: cmdHistory, usage: "/history", description: "print the transcript so far"},
	"/help":      {kind: cmdHelp, usage: "/help", description: "list commands"},
	"/end":       {kind: cmdEnd, usage: "/end", description: "finish the interview"},
}

var errUnknownCommand = errors.New("unknown command")

// parseCommand treats any line that does not start with "/" as an answer.
func parseCommand(line string) (command, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return command{kind: cmdTurn, arg: trimmed}, nil
	}
	name, arg, _ := strings.Cut(trimmed, " ")
	spec, ok := commandSpecs[strings.ToLower(name)]
	if !ok {
		return command{}, fmt.Errorf("%w: %s", errUnknownCommand, name)
	}
	arg = strings.TrimSpace(arg)
	if spec.needsArg && arg == "" {
		return command{}, fmt.Errorf("usage: %s", spec.usage)
	}
	return command{kind: spec.kind, arg: arg}, nil
}

func helpText() string {
	order := []string{"/batch", "/headers", "/say", "/answer", "/play", "/pause", "/stop", "/save", "/voice", "/connect", "/reconnect", "/history", "/help", "/end"}
	lines := []string{"Type an answer and press enter, or use a command:"}
	for _, name := range order {
		spec := commandSpecs[name]
		lines = append(lines, fmt.Sprintf("  %-20s %s", spec.usage, spec.description))
	}
	return strings.Join(lines, "\n")
}
