package stt

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/jarvis-assistant/host/domain/repositories"
)

// silence below this peak amplitude yields an empty transcript
const mockSilenceThreshold = 0.01

// MockSpeechToText returns canned transcripts based on utterance length
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{logger: logger}
}

// Transcribe implements repositories.SpeechToText
func (s *MockSpeechToText) Transcribe(ctx context.Context, samples []float32, config repositories.AudioConfig) (string, error) {
	var peak float64
	for _, v := range samples {
		peak = math.Max(peak, math.Abs(float64(v)))
	}

	seconds := 0.0
	if config.SampleRate > 0 {
		seconds = float64(len(samples)) / float64(config.SampleRate)
	}

	s.logger.Info("Processing mock speech-to-text",
		zap.Int("samples", len(samples)),
		zap.Float64("seconds", seconds),
		zap.Float64("peak", peak))

	switch {
	case peak < mockSilenceThreshold:
		return "", nil
	case seconds > 3:
		return "Jarvis, what's on my schedule for the rest of the day?", nil
	case seconds > 1:
		return "What time is it?", nil
	default:
		return "Hello Jarvis", nil
	}
}
