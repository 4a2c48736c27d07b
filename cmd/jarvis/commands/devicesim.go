package commands

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jarvis-assistant/host/internal/devicesim"
	"github.com/jarvis-assistant/host/internal/protocol"
)

var (
	simURL      string
	simFile     string
	simChunk    int
	simRealtime bool
)

var deviceSimCmd = &cobra.Command{
	Use:   "device-sim",
	Short: "Send a recorded utterance to a running server",
	Long: `Send a recorded utterance to a running server.

The file is a mono 16-bit WAV file or raw s16le PCM. It is streamed to /ws
as JAUD frames between start_recording and stop_recording, and every status
the server sends back is printed.

Examples:
  jarvis device-sim --file utterance.wav
  jarvis device-sim --url ws://192.168.1.20:8765/ws --file utterance.pcm --chunk 1024`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := cfg.Log.NewLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		samples, err := devicesim.LoadAudio(simFile)
		if err != nil {
			return err
		}

		simConfig := devicesim.DefaultConfig()
		simConfig.URL = simURL
		simConfig.ChunkSamples = simChunk
		simConfig.Interval = 0
		if simRealtime {
			simConfig.Interval = time.Duration(simChunk) * time.Second / time.Duration(cfg.Audio.SampleRate)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		result, err := devicesim.Run(ctx, simConfig, samples, printStatus, logger)
		if result.AudioBytes > 0 {
			fmt.Printf("received %d bytes of audio\n", result.AudioBytes)
		}
		return err
	},
}

func printStatus(s protocol.Status) {
	switch s.Status {
	case protocol.StatusTranscribed:
		fmt.Printf("[%s] %s\n", s.Status, s.Text)
	case protocol.StatusResponse:
		fmt.Printf("[You]: %s\n[Jarvis]: %s\n", s.UserText, s.AssistantText)
	case protocol.StatusError:
		fmt.Printf("[%s] %s\n", s.Status, s.Message)
	default:
		fmt.Printf("[%s]\n", s.Status)
	}
}

func init() {
	deviceSimCmd.Flags().StringVar(&simURL, "url", "ws://localhost:8765/ws", "server WebSocket URL")
	deviceSimCmd.Flags().StringVarP(&simFile, "file", "f", "", "WAV or raw s16le PCM file to send")
	deviceSimCmd.Flags().IntVar(&simChunk, "chunk", 512, "samples per audio frame")
	deviceSimCmd.Flags().BoolVar(&simRealtime, "realtime", true, "pace frames at the configured sample rate")
	deviceSimCmd.MarkFlagRequired("file")
}
