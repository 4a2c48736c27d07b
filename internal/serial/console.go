package serial

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jarvis-assistant/host/internal/protocol"
)

// levelThresholdDB hides status levels of a silent microphone.
const levelThresholdDB = -50

// Theme defines the console colors
type Theme struct {
	Primary lipgloss.Color
	User    lipgloss.Color
	Error   lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is the stock console theme
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00d7ff"),
	User:    lipgloss.Color("#00ff9f"),
	Error:   lipgloss.Color("#ff5f5f"),
	Dim:     lipgloss.Color("#6e7681"),
}

type styles struct {
	title     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	event     lipgloss.Style
	err       lipgloss.Style
	dim       lipgloss.Style
}

// Console is the operator view of a serial device. The device has no
// display, so every status of an utterance is printed here instead.
type Console struct {
	w      io.Writer
	styles styles
	// progress is true while a "Recording..." line is being rewritten in place.
	progress bool
}

// NewConsole renders to w. Colors are used only when w is a terminal.
func NewConsole(w io.Writer, theme Theme) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w: w,
		styles: styles{
			title:     r.NewStyle().Bold(true).Foreground(theme.Primary),
			user:      r.NewStyle().Bold(true).Foreground(theme.User),
			assistant: r.NewStyle().Bold(true).Foreground(theme.Primary),
			event:     r.NewStyle().Foreground(theme.Primary),
			err:       r.NewStyle().Foreground(theme.Error),
			dim:       r.NewStyle().Foreground(theme.Dim),
		},
	}
}

// Banner prints the greeting shown once the port is open
func (c *Console) Banner() error {
	rule := strings.Repeat("=", 50)
	return c.println(
		"\n" + c.styles.title.Render(rule) + "\n" +
			c.styles.title.Render("  Jarvis Voice Assistant") + "\n" +
			c.styles.dim.Render("  Press BOOT button on ESP32 to talk") + "\n" +
			c.styles.title.Render(rule) + "\n")
}

// Ready reports the device boot message
func (c *Console) Ready(message string) error {
	if message == "" {
		message = "Ready"
	}
	return c.println(c.styles.event.Render("ESP32: " + message))
}

// Level reports the microphone level when it is above the noise floor
func (c *Console) Level(db float64) error {
	if db <= levelThresholdDB {
		return nil
	}
	return c.println(c.styles.dim.Render(fmt.Sprintf("[Status] Level: %.1f dB", db)))
}

// Progress rewrites the recording line with the received packet count
func (c *Console) Progress(packets int) error {
	c.progress = true
	_, err := fmt.Fprintf(c.w, "\rRecording... %d packets", packets)
	return err
}

// Stopped reports the packet count announced by the device
func (c *Console) Stopped(packets int) error {
	return c.println("\n" + c.styles.event.Render(fmt.Sprintf(">> Recording stopped (%d packets)", packets)))
}

// Emit implements usecase.Output
func (c *Console) Emit(ctx context.Context, status protocol.Status) error {
	switch status.Status {
	case protocol.StatusRecording:
		return c.println("\n" + c.styles.event.Render(">> Recording started..."))
	case protocol.StatusTranscribing:
		return c.println(c.styles.dim.Render("Transcribing..."))
	case protocol.StatusTranscribed:
		return c.println("\n" + c.styles.user.Render("[You]:") + " " + status.Text)
	case protocol.StatusThinking:
		return c.println(c.styles.dim.Render("Thinking..."))
	case protocol.StatusResponse:
		return c.println(c.styles.assistant.Render("[Jarvis]:") + " " + status.AssistantText + "\n")
	case protocol.StatusError:
		return c.println(c.styles.err.Render(status.Message))
	case protocol.StatusPong:
		return c.println(c.styles.dim.Render("pong"))
	case protocol.StatusHistoryCleared:
		return c.println(c.styles.event.Render(">> Conversation history cleared"))
	}
	return nil
}

// SendAudio implements usecase.Output. The serial link carries no
// playback channel, so synthesized audio is dropped.
func (c *Console) SendAudio(ctx context.Context, audio []byte) error {
	return nil
}

func (c *Console) println(s string) error {
	if c.progress {
		c.progress = false
		if !strings.HasPrefix(s, "\n") {
			s = "\n" + s
		}
	}
	_, err := fmt.Fprintln(c.w, s)
	return err
}
