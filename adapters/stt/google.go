package stt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/jarvis-assistant/host/domain/repositories"
	"github.com/jarvis-assistant/host/internal/audio"
)

// streaming requests are capped at 25KB of audio each
const googleChunkSize = 16 * 1024

// GoogleSpeechToText implements SpeechToText for Google Cloud. Credentials
// come from Application Default Credentials. The client is created on first use.
type GoogleSpeechToText struct {
	logger *zap.Logger

	once    sync.Once
	client  *speech.Client
	initErr error
}

// NewGoogleSpeechToText creates a new Google Cloud speech recognizer
func NewGoogleSpeechToText(logger *zap.Logger) *GoogleSpeechToText {
	return &GoogleSpeechToText{logger: logger}
}

func (g *GoogleSpeechToText) speechClient() (*speech.Client, error) {
	g.once.Do(func() {
		g.client, g.initErr = speech.NewClient(context.Background())
		if g.initErr != nil {
			g.initErr = fmt.Errorf("failed to create speech client: %w", g.initErr)
		}
	})
	return g.client, g.initErr
}

// Transcribe streams one utterance as LINEAR16 and returns the final transcript
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, samples []float32, config repositories.AudioConfig) (string, error) {
	client, err := g.speechClient()
	if err != nil {
		return "", err
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    config.Language,
				},
				InterimResults:  false,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		return "", fmt.Errorf("failed to send streaming config: %w", err)
	}

	pcm := audio.FloatToPCM(samples)
	for start := 0; start < len(pcm); start += googleChunkSize {
		end := start + googleChunkSize
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: pcm[start:end],
			},
		}); err != nil {
			if err == io.EOF {
				// server closed early; Recv reports why
				break
			}
			return "", fmt.Errorf("failed to send audio data: %w", err)
		}
	}

	if err := stream.CloseSend(); err != nil {
		return "", fmt.Errorf("failed to close send stream: %w", err)
	}

	var transcript []string
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to receive response: %w", err)
		}
		for _, result := range resp.Results {
			if result.IsFinal && len(result.Alternatives) > 0 {
				transcript = append(transcript, result.Alternatives[0].Transcript)
			}
		}
	}

	text := strings.TrimSpace(strings.Join(transcript, " "))
	g.logger.Debug("Google transcription finished",
		zap.Int("samples", len(samples)),
		zap.String("text", text))
	return text, nil
}

// Close releases the underlying client
func (g *GoogleSpeechToText) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
