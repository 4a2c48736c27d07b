package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CommandKind is the value of the "action" discriminator sent by a networked device.
type CommandKind string

// Supported commands
const (
	CommandStartRecording CommandKind = "start_recording"
	CommandStopRecording  CommandKind = "stop_recording"
	CommandPing           CommandKind = "ping"
	CommandClearHistory   CommandKind = "clear_history"
	CommandUnknown        CommandKind = ""
)

// EventKind is the value of the "event" discriminator emitted by a serial device.
type EventKind string

// Supported events
const (
	EventReady          EventKind = "ready"
	EventRecordingStart EventKind = "recording_start"
	EventRecordingStop  EventKind = "recording_stop"
	EventStatus         EventKind = "status"
	EventUnknown        EventKind = ""
)

// StatusKind is the value of the "status" discriminator sent back to a networked device.
type StatusKind string

// Supported status replies
const (
	StatusRecording      StatusKind = "recording"
	StatusTranscribing   StatusKind = "transcribing"
	StatusTranscribed    StatusKind = "transcribed"
	StatusThinking       StatusKind = "thinking"
	StatusResponse       StatusKind = "response"
	StatusError          StatusKind = "error"
	StatusPong           StatusKind = "pong"
	StatusHistoryCleared StatusKind = "history_cleared"
)

// Fixed error messages sent to the device
const (
	MessageNoAudio            = "No audio data"
	MessageCouldNotTranscribe = "Could not transcribe audio"
)

// Command is a parsed device→host command. Raw keeps the original line for logging.
type Command struct {
	Kind CommandKind
	// Name holds the raw action value, set even when Kind is CommandUnknown.
	Name string
	Raw  json.RawMessage
}

// Event is a parsed device notification from the serial link.
type Event struct {
	Kind    EventKind
	Name    string
	Message string
	Packets int
	LevelDB float64
	Raw     json.RawMessage
}

// Status is a host→device reply. Only the fields relevant to Kind are encoded.
type Status struct {
	Status        StatusKind `json:"status"`
	Text          string     `json:"text,omitempty"`
	Message       string     `json:"message,omitempty"`
	UserText      string     `json:"user_text,omitempty"`
	AssistantText string     `json:"assistant_text,omitempty"`
}

// ParseCommand decodes one control line. A malformed line is an error; an
// unrecognized action is not, it yields CommandUnknown.
func ParseCommand(line []byte) (Command, error) {
	var msg struct {
		Action *string `json:"action"`
	}
	raw := bytes.TrimSpace(line)
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Command{}, fmt.Errorf("invalid JSON format: %w", err)
	}
	if msg.Action == nil {
		return Command{}, fmt.Errorf("message missing action field")
	}

	cmd := Command{Name: *msg.Action, Raw: json.RawMessage(raw)}
	switch kind := CommandKind(*msg.Action); kind {
	case CommandStartRecording, CommandStopRecording, CommandPing, CommandClearHistory:
		cmd.Kind = kind
	default:
		cmd.Kind = CommandUnknown
	}
	return cmd, nil
}

// ParseEvent decodes one serial event line. Missing fields take the device
// defaults: level_db -100, packets 0.
func ParseEvent(line []byte) (Event, error) {
	var msg struct {
		Event   *string  `json:"event"`
		Message string   `json:"message"`
		Packets int      `json:"packets"`
		LevelDB *float64 `json:"level_db"`
	}
	raw := bytes.TrimSpace(line)
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Event{}, fmt.Errorf("invalid JSON format: %w", err)
	}
	if msg.Event == nil {
		return Event{}, fmt.Errorf("message missing event field")
	}

	evt := Event{
		Name:    *msg.Event,
		Message: msg.Message,
		Packets: msg.Packets,
		LevelDB: -100,
		Raw:     json.RawMessage(raw),
	}
	if msg.LevelDB != nil {
		evt.LevelDB = *msg.LevelDB
	}

	switch kind := EventKind(*msg.Event); kind {
	case EventReady, EventRecordingStart, EventRecordingStop, EventStatus:
		evt.Kind = kind
	default:
		evt.Kind = EventUnknown
	}
	return evt, nil
}

// Encode serializes the status as a single JSON object without a trailing newline.
func (s Status) Encode() ([]byte, error) {
	if s.Status == "" {
		return nil, fmt.Errorf("status is required")
	}
	return json.Marshal(s)
}

// NewRecordingStatus creates the reply for a started recording
func NewRecordingStatus() Status {
	return Status{Status: StatusRecording}
}

// NewTranscribingStatus creates the reply sent before transcription starts
func NewTranscribingStatus() Status {
	return Status{Status: StatusTranscribing}
}

// NewTranscribedStatus creates the reply carrying the transcript
func NewTranscribedStatus(text string) Status {
	return Status{Status: StatusTranscribed, Text: text}
}

// NewThinkingStatus creates the reply sent before the chat backend is called
func NewThinkingStatus() Status {
	return Status{Status: StatusThinking}
}

// NewResponseStatus creates the final reply of an utterance
func NewResponseStatus(userText, assistantText string) Status {
	return Status{Status: StatusResponse, UserText: userText, AssistantText: assistantText}
}

// NewErrorStatus creates an error reply
func NewErrorStatus(message string) Status {
	return Status{Status: StatusError, Message: message}
}

// NewPongStatus creates a pong reply
func NewPongStatus() Status {
	return Status{Status: StatusPong}
}

// NewHistoryClearedStatus acknowledges clear_history
func NewHistoryClearedStatus() Status {
	return Status{Status: StatusHistoryCleared}
}
