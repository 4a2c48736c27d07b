package repositories

import "context"

// SpeechToText abstracts speech recognition services
type SpeechToText interface {
	// Transcribe converts normalized mono samples in [-1, 1) to text.
	// An empty string means nothing was recognized.
	Transcribe(ctx context.Context, samples []float32, config AudioConfig) (string, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language"`
}
