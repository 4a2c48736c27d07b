// Package serial drives a device attached over USB serial. Control events,
// audio frames and the device's own log output share one byte stream.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	goserial "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"github.com/jarvis-assistant/host/internal/protocol"
	"github.com/jarvis-assistant/host/internal/session"
)

// readTimeout is how long a single port read waits before reporting no data.
const readTimeout = 100 * time.Millisecond

// PortConfig describes how to open the device
type PortConfig struct {
	Name     string
	BaudRate int
	// BootDelay gives the device time to restart after the port opens.
	BootDelay time.Duration
}

// Open opens the port, waits for the device to boot and discards whatever
// it printed meanwhile.
func Open(ctx context.Context, config PortConfig, logger *zap.Logger) (goserial.Port, error) {
	logger.Info("Connecting to serial port",
		zap.String("port", config.Name),
		zap.Int("baud", config.BaudRate))

	port, err := goserial.Open(config.Name, &goserial.Mode{BaudRate: config.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", config.Name, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	select {
	case <-time.After(config.BootDelay):
	case <-ctx.Done():
		port.Close()
		return nil, ctx.Err()
	}

	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("reset input buffer: %w", err)
	}

	logger.Info("Serial port connected", zap.String("port", config.Name))
	return port, nil
}

// PortInfo describes one serial port found on the host
type PortInfo struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Product string
}

// ListPorts enumerates the serial ports of the host
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:    d.Name,
			USB:     d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Product: d.Product,
		})
	}
	return ports, nil
}

// Host runs one serial device. It is driven by a single goroutine.
type Host struct {
	classifier *protocol.Classifier
	session    *session.Session
	console    *Console
	logger     *zap.Logger
}

// NewHost reads device units from r. r must report a read timeout without
// data as protocol.ErrIdle; wrap ports in protocol.IdleReader.
func NewHost(r io.Reader, pipeline session.Pipeline, console *Console, unitTimeout time.Duration, logger *zap.Logger) *Host {
	return &Host{
		classifier: protocol.NewClassifier(r, unitTimeout),
		session:    session.New(pipeline, console, logger),
		console:    console,
		logger:     logger,
	}
}

// Session exposes the device session
func (h *Host) Session() *session.Session {
	return h.session
}

// Run processes units until ctx is done or the stream ends. Framing errors
// are logged and the unit is skipped. End of stream returns nil.
func (h *Host) Run(ctx context.Context) error {
	if err := h.console.Banner(); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		unit, err := h.classifier.Next()
		switch {
		case err == nil:
		case errors.Is(err, protocol.ErrNoUnit):
			continue
		case errors.Is(err, io.EOF):
			h.logger.Info("Serial stream closed")
			return nil
		case errors.Is(err, protocol.ErrTruncatedFrame),
			errors.Is(err, protocol.ErrTruncatedLine),
			errors.Is(err, protocol.ErrLineTooLong),
			errors.Is(err, protocol.ErrFrameTooLarge):
			h.logger.Warn("Dropping incomplete unit", zap.Error(err))
			continue
		default:
			return fmt.Errorf("read serial: %w", err)
		}

		if err := h.handle(ctx, unit); err != nil {
			return err
		}
	}
}

func (h *Host) handle(ctx context.Context, unit protocol.Unit) error {
	switch unit.Kind {
	case protocol.UnitControl:
		evt, err := protocol.ParseEvent(unit.Line)
		if err != nil {
			h.logger.Debug("Dropping malformed event", zap.Error(err), zap.ByteString("line", unit.Line))
			return nil
		}
		return h.handleEvent(ctx, evt)

	case protocol.UnitAudio:
		if err := h.session.Handle(ctx, session.AudioInput(unit.Frame.Samples)); err != nil {
			return err
		}
		if h.session.State() == session.StateRecording {
			return h.console.Progress(h.session.Frames())
		}

	case protocol.UnitForeign:
		h.logger.Debug("Device output", zap.ByteString("line", unit.Line))
	}
	return nil
}

func (h *Host) handleEvent(ctx context.Context, evt protocol.Event) error {
	switch evt.Kind {
	case protocol.EventReady:
		return h.console.Ready(evt.Message)
	case protocol.EventStatus:
		return h.console.Level(evt.LevelDB)
	case protocol.EventRecordingStop:
		if err := h.console.Stopped(evt.Packets); err != nil {
			return err
		}
	}
	return h.session.Handle(ctx, session.EventInput(evt))
}
