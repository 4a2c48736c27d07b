package session

import (
	"fmt"

	"github.com/jarvis-assistant/host/internal/protocol"
)

// State is the recording state of a connection
type State int

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// InputKind enumerates what can drive a session
type InputKind int

const (
	InputStart InputKind = iota + 1
	InputStop
	InputPing
	InputClearHistory
	InputAudio
	InputUnknown
)

func (k InputKind) String() string {
	switch k {
	case InputStart:
		return "start"
	case InputStop:
		return "stop"
	case InputPing:
		return "ping"
	case InputClearHistory:
		return "clear_history"
	case InputAudio:
		return "audio"
	case InputUnknown:
		return "unknown"
	}
	return fmt.Sprintf("InputKind(%d)", int(k))
}

// Input is one unit after parsing
type Input struct {
	Kind    InputKind
	Samples []int16 // InputAudio
	Name    string  // raw discriminator, for logging unknown inputs
}

// EffectKind enumerates what the driver has to do after a transition
type EffectKind int

const (
	EffectClearBuffer EffectKind = iota + 1
	EffectAppendAudio
	EffectDropAudio
	EffectEmit
	EffectRunPipeline
	EffectReleaseBuffer
	EffectClearHistory
	EffectIgnore
)

// Effect is one action requested by Transition
type Effect struct {
	Kind    EffectKind
	Status  protocol.Status // EffectEmit
	Samples []int16         // EffectAppendAudio, EffectDropAudio
}

// Transition computes the next state and the effects of in. buffered is the
// number of samples currently held for the utterance. Effects must be
// executed in order.
func Transition(state State, buffered int, in Input) (State, []Effect) {
	switch in.Kind {
	case InputStart:
		return StateRecording, []Effect{
			{Kind: EffectClearBuffer},
			{Kind: EffectEmit, Status: protocol.NewRecordingStatus()},
		}

	case InputStop:
		if buffered == 0 {
			return StateIdle, []Effect{
				{Kind: EffectEmit, Status: protocol.NewErrorStatus(protocol.MessageNoAudio)},
			}
		}
		return StateIdle, []Effect{
			{Kind: EffectRunPipeline},
			{Kind: EffectReleaseBuffer},
		}

	case InputPing:
		return state, []Effect{{Kind: EffectEmit, Status: protocol.NewPongStatus()}}

	case InputClearHistory:
		return state, []Effect{
			{Kind: EffectClearHistory},
			{Kind: EffectEmit, Status: protocol.NewHistoryClearedStatus()},
		}

	case InputAudio:
		if state != StateRecording {
			return state, []Effect{{Kind: EffectDropAudio, Samples: in.Samples}}
		}
		return state, []Effect{{Kind: EffectAppendAudio, Samples: in.Samples}}
	}

	return state, []Effect{{Kind: EffectIgnore}}
}

// CommandInput maps a network command to a session input
func CommandInput(cmd protocol.Command) Input {
	switch cmd.Kind {
	case protocol.CommandStartRecording:
		return Input{Kind: InputStart, Name: cmd.Name}
	case protocol.CommandStopRecording:
		return Input{Kind: InputStop, Name: cmd.Name}
	case protocol.CommandPing:
		return Input{Kind: InputPing, Name: cmd.Name}
	case protocol.CommandClearHistory:
		return Input{Kind: InputClearHistory, Name: cmd.Name}
	}
	return Input{Kind: InputUnknown, Name: cmd.Name}
}

// EventInput maps a serial event to a session input. ready and status are
// informational and leave the session alone.
func EventInput(evt protocol.Event) Input {
	switch evt.Kind {
	case protocol.EventRecordingStart:
		return Input{Kind: InputStart, Name: evt.Name}
	case protocol.EventRecordingStop:
		return Input{Kind: InputStop, Name: evt.Name}
	}
	return Input{Kind: InputUnknown, Name: evt.Name}
}

// AudioInput wraps decoded samples
func AudioInput(samples []int16) Input {
	return Input{Kind: InputAudio, Samples: samples}
}
