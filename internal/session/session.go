package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jarvis-assistant/host/domain/entities"
	"github.com/jarvis-assistant/host/usecase"
)

// Pipeline processes one finished utterance
type Pipeline interface {
	Process(ctx context.Context, samples []int16, conv *entities.Conversation, out usecase.Output) error
}

// Session owns the state of one device connection. It is driven by a single
// goroutine and is not safe for concurrent use.
type Session struct {
	state    State
	buffer   []int16
	history  *entities.Conversation
	pipeline Pipeline
	out      usecase.Output
	logger   *zap.Logger
	frames   int
}

// New creates an idle session with an empty history
func New(pipeline Pipeline, out usecase.Output, logger *zap.Logger) *Session {
	return &Session{
		state:    StateIdle,
		history:  entities.NewConversation(),
		pipeline: pipeline,
		out:      out,
		logger:   logger,
	}
}

// State returns the current state
func (s *Session) State() State {
	return s.state
}

// Buffered returns the number of samples held for the current utterance
func (s *Session) Buffered() int {
	return len(s.buffer)
}

// Frames returns how many audio units were appended since recording started
func (s *Session) Frames() int {
	return s.frames
}

// History returns the conversation of this connection
func (s *Session) History() *entities.Conversation {
	return s.history
}

// Handle applies one input. Any pipeline run happens inline, so the caller
// reads no further input until Handle returns. The returned error comes from
// the output only; the session itself is always left in a valid state.
func (s *Session) Handle(ctx context.Context, in Input) error {
	next, effects := Transition(s.state, len(s.buffer), in)
	if next != s.state {
		s.logger.Debug("Session state changed",
			zap.Stringer("from", s.state),
			zap.Stringer("to", next),
			zap.Stringer("input", in.Kind))
	}
	s.state = next

	for _, effect := range effects {
		if err := s.apply(ctx, in, effect); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) apply(ctx context.Context, in Input, effect Effect) error {
	switch effect.Kind {
	case EffectClearBuffer:
		s.buffer = s.buffer[:0]
		s.frames = 0
		s.logger.Info("Recording started")

	case EffectAppendAudio:
		s.buffer = append(s.buffer, effect.Samples...)
		s.frames++

	case EffectDropAudio:
		s.logger.Debug("Dropping audio while idle", zap.Int("samples", len(effect.Samples)))

	case EffectEmit:
		return s.out.Emit(ctx, effect.Status)

	case EffectRunPipeline:
		s.logger.Info("Recording stopped",
			zap.Int("samples", len(s.buffer)),
			zap.Int("frames", s.frames))
		if err := s.pipeline.Process(ctx, s.buffer, s.history, s.out); err != nil {
			s.buffer = nil
			s.frames = 0
			return fmt.Errorf("utterance pipeline: %w", err)
		}

	case EffectReleaseBuffer:
		s.buffer = nil
		s.frames = 0

	case EffectClearHistory:
		s.history.Clear()
		s.logger.Info("Conversation history cleared")

	case EffectIgnore:
		s.logger.Warn("Ignoring unknown input", zap.String("name", in.Name))
	}
	return nil
}
