package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	// MaxLineSize bounds a single JSON or diagnostic line.
	MaxLineSize = 64 * 1024

	// DefaultUnitTimeout is how long a started unit may stall before it is dropped.
	DefaultUnitTimeout = 2 * time.Second
)

var (
	// ErrIdle must be returned by the underlying reader when a read timed out
	// without data. The classifier never treats it as fatal.
	ErrIdle = errors.New("no data available")

	// ErrNoUnit is returned by Next when nothing is waiting at a unit boundary.
	ErrNoUnit = errors.New("no unit ready")

	// ErrTruncatedLine is returned when a line stalls past the unit timeout.
	ErrTruncatedLine = errors.New("truncated line")

	// ErrLineTooLong is returned when a line exceeds MaxLineSize. The line is discarded.
	ErrLineTooLong = errors.New("line too long")
)

// UnitKind tells what a classified unit carries.
type UnitKind int

const (
	UnitControl UnitKind = iota + 1 // JSON line starting with '{'
	UnitAudio                       // JAUD frame
	UnitForeign                     // anything else, e.g. ESP_LOG output
)

func (k UnitKind) String() string {
	switch k {
	case UnitControl:
		return "control"
	case UnitAudio:
		return "audio"
	case UnitForeign:
		return "foreign"
	}
	return fmt.Sprintf("UnitKind(%d)", int(k))
}

// Unit is one classified piece of a shared byte stream.
type Unit struct {
	Kind  UnitKind
	Line  []byte      // control and foreign units, without the line terminator
	Frame *AudioFrame // audio units
}

// Classifier splits an interleaved byte stream into control lines, audio
// frames and foreign output. It is not safe for concurrent use.
type Classifier struct {
	r           *bufio.Reader
	unitTimeout time.Duration
	now         func() time.Time
}

// NewClassifier wraps r. unitTimeout <= 0 selects DefaultUnitTimeout.
func NewClassifier(r io.Reader, unitTimeout time.Duration) *Classifier {
	if unitTimeout <= 0 {
		unitTimeout = DefaultUnitTimeout
	}
	return &Classifier{
		r:           bufio.NewReaderSize(r, 4096),
		unitTimeout: unitTimeout,
		now:         time.Now,
	}
}

// Next returns the next complete unit. It returns ErrNoUnit when the source
// has no data at a unit boundary, io.EOF when the source is exhausted, and
// ErrTruncatedFrame / ErrTruncatedLine when a unit could not be completed.
// A truncated unit is consumed and never returned. A header declaring too
// many samples yields ErrFrameTooLarge with only the header consumed, so the
// next call resynchronizes on whatever follows.
func (c *Classifier) Next() (Unit, error) {
	first, err := c.r.Peek(1)
	if err != nil {
		if errors.Is(err, ErrIdle) {
			return Unit{}, ErrNoUnit
		}
		return Unit{}, err
	}

	deadline := c.now().Add(c.unitTimeout)

	switch first[0] {
	case '{':
		line, err := c.readLine(deadline)
		if err != nil {
			return Unit{}, err
		}
		return Unit{Kind: UnitControl, Line: line}, nil

	case Magic[0]:
		head, err := c.peek(MagicSize, deadline)
		if err != nil && !errors.Is(err, io.EOF) {
			return Unit{}, err
		}
		if bytes.Equal(head, Magic) {
			if _, err := c.r.Discard(MagicSize); err != nil {
				return Unit{}, err
			}
			frame, err := c.readFrame(deadline)
			if err != nil {
				return Unit{}, err
			}
			return Unit{Kind: UnitAudio, Frame: frame}, nil
		}
	}

	line, err := c.readLine(deadline)
	if err != nil {
		return Unit{}, err
	}
	return Unit{Kind: UnitForeign, Line: line}, nil
}

func (c *Classifier) expired(deadline time.Time) bool {
	return c.now().After(deadline)
}

// peek waits for n buffered bytes. At EOF it returns what is available.
func (c *Classifier) peek(n int, deadline time.Time) ([]byte, error) {
	for {
		b, err := c.r.Peek(n)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrIdle) {
			return b, err
		}
		if c.expired(deadline) {
			return nil, fmt.Errorf("%w: waiting for magic", ErrTruncatedFrame)
		}
	}
}

// readLine reads through the next '\n'. A final unterminated line at EOF is
// returned as is.
func (c *Classifier) readLine(deadline time.Time) ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := c.r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > MaxLineSize {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}

		switch {
		case err == nil:
			if tooLong {
				return nil, ErrLineTooLong
			}
			return bytes.TrimRight(line, "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, ErrIdle):
			if c.expired(deadline) {
				return nil, ErrTruncatedLine
			}
		case errors.Is(err, io.EOF):
			if tooLong {
				return nil, ErrLineTooLong
			}
			if len(line) == 0 {
				return nil, io.EOF
			}
			return bytes.TrimRight(line, "\r\n"), nil
		default:
			return nil, err
		}
	}
}

func (c *Classifier) readFull(buf []byte, deadline time.Time) error {
	n := 0
	for n < len(buf) {
		m, err := c.r.Read(buf[n:])
		n += m
		if n == len(buf) {
			return nil
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrIdle):
			if c.expired(deadline) {
				return fmt.Errorf("%w: got %d of %d bytes before timeout", ErrTruncatedFrame, n, len(buf))
			}
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: got %d of %d bytes", ErrTruncatedFrame, n, len(buf))
		default:
			return err
		}
	}
	return nil
}

func (c *Classifier) readFrame(deadline time.Time) (*AudioFrame, error) {
	head := make([]byte, HeaderBodySize)
	if err := c.readFull(head, deadline); err != nil {
		return nil, err
	}
	header, err := ParseHeaderBody(head)
	if err != nil {
		return nil, err
	}
	if err := header.checkSize(); err != nil {
		return nil, err
	}

	payload := make([]byte, header.PayloadSize())
	if err := c.readFull(payload, deadline); err != nil {
		return nil, err
	}
	return &AudioFrame{Header: header, Samples: BytesToSamples(payload)}, nil
}

// IdleReader adapts readers that signal a read timeout as (0, nil), such as
// serial ports, to the ErrIdle convention.
type IdleReader struct {
	R io.Reader
}

func (r IdleReader) Read(p []byte) (int, error) {
	n, err := r.R.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, ErrIdle
	}
	return n, err
}
