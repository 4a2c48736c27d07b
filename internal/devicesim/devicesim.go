// Package devicesim plays the part of a networked capture device: it sends a
// recorded utterance to the host as JAUD frames and collects the replies.
package devicesim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jarvis-assistant/host/internal/audio"
	"github.com/jarvis-assistant/host/internal/protocol"
)

// Config controls a simulated utterance
type Config struct {
	URL string
	// ChunkSamples is the number of samples per frame.
	ChunkSamples int
	// Interval paces frames like a live microphone. Zero sends as fast as possible.
	Interval time.Duration
	// Timeout bounds the wait for the final reply.
	Timeout time.Duration
}

// DefaultConfig matches a device capturing 16 kHz audio in 32 ms frames
func DefaultConfig() Config {
	return Config{
		URL:          "ws://localhost:8765/ws",
		ChunkSamples: 512,
		Interval:     32 * time.Millisecond,
		Timeout:      60 * time.Second,
	}
}

// Result is what the host sent back for one utterance
type Result struct {
	Statuses   []protocol.Status
	AudioBytes int
	// Final is the response or error status that ended the exchange.
	Final protocol.Status
}

// LoadAudio reads mono s16le samples from a WAV file or a raw PCM file
func LoadAudio(path string) ([]int16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if bytes.HasPrefix(data, []byte("RIFF")) {
		samples, _, err := audio.DecodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return samples, nil
	}
	return protocol.BytesToSamples(data), nil
}

// Run connects to the host, records samples as one utterance and waits for
// the reply. onStatus, if set, sees every status as it arrives.
func Run(ctx context.Context, config Config, samples []int16, onStatus func(protocol.Status), logger *zap.Logger) (Result, error) {
	if config.ChunkSamples <= 0 {
		return Result{}, fmt.Errorf("chunk size must be positive")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.URL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("dial %s: %w", config.URL, err)
	}
	defer conn.Close()
	logger.Info("Connected to host", zap.String("url", config.URL))

	if err := sendCommand(conn, protocol.CommandStartRecording); err != nil {
		return Result{}, err
	}

	var seq uint32
	start := time.Now()
	for off := 0; off < len(samples); off += config.ChunkSamples {
		end := min(off+config.ChunkSamples, len(samples))
		ts := uint32(time.Since(start).Milliseconds())
		if err := conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeFrame(seq, ts, samples[off:end])); err != nil {
			return Result{}, fmt.Errorf("send frame %d: %w", seq, err)
		}
		seq++

		if config.Interval > 0 {
			select {
			case <-time.After(config.Interval):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}
	}
	logger.Info("Finished sending audio",
		zap.Uint32("frames", seq),
		zap.Int("samples", len(samples)),
		zap.Duration("elapsed", time.Since(start)))

	if err := sendCommand(conn, protocol.CommandStopRecording); err != nil {
		return Result{}, err
	}

	return awaitReply(ctx, conn, config.Timeout, onStatus)
}

func sendCommand(conn *websocket.Conn, kind protocol.CommandKind) error {
	payload, err := json.Marshal(map[string]string{"action": string(kind)})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	return nil
}

func awaitReply(ctx context.Context, conn *websocket.Conn, timeout time.Duration, onStatus func(protocol.Status)) (Result, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)

	var result Result
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return result, fmt.Errorf("waiting for reply: %w", err)
		}

		if messageType == websocket.BinaryMessage {
			result.AudioBytes += len(data)
			continue
		}

		var status protocol.Status
		if err := json.Unmarshal(data, &status); err != nil {
			return result, fmt.Errorf("invalid status %q: %w", data, err)
		}
		result.Statuses = append(result.Statuses, status)
		if onStatus != nil {
			onStatus(status)
		}

		switch status.Status {
		case protocol.StatusResponse:
			result.Final = status
			return result, nil
		case protocol.StatusError:
			result.Final = status
			return result, errors.New(status.Message)
		}
	}
}
