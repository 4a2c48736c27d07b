package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// scriptedReader replays chunks; a nil chunk is a read timeout.
type scriptedReader struct {
	steps [][]byte
	rest  []byte
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.rest) == 0 {
		if len(r.steps) == 0 {
			return 0, io.EOF
		}
		step := r.steps[0]
		r.steps = r.steps[1:]
		if step == nil {
			return 0, ErrIdle
		}
		r.rest = step
	}
	n := copy(p, r.rest)
	r.rest = r.rest[n:]
	return n, nil
}

// stepClock advances by step on every call.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func nextUnit(t *testing.T, c *Classifier) Unit {
	t.Helper()
	for i := 0; i < 100; i++ {
		unit, err := c.Next()
		if errors.Is(err, ErrNoUnit) {
			continue
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		return unit
	}
	t.Fatal("Next() never produced a unit")
	return Unit{}
}

func TestClassifier_InterleavedStream(t *testing.T) {
	frame := EncodeFrame(1, 1000, []int16{10, 20, 30, 40})
	src := &scriptedReader{steps: [][]byte{
		[]byte("I (1234) wifi: connected\r\n"),
		[]byte(`{"event":"recording_start"}` + "\n"),
		frame[:6],
		nil,
		frame[6:],
		[]byte(`{"event":"recording_stop","packets":1}` + "\n"),
	}}
	c := NewClassifier(src, DefaultUnitTimeout)

	unit := nextUnit(t, c)
	if unit.Kind != UnitForeign || string(unit.Line) != "I (1234) wifi: connected" {
		t.Errorf("unit 1 = %v %q, want foreign log line", unit.Kind, unit.Line)
	}

	unit = nextUnit(t, c)
	if unit.Kind != UnitControl || string(unit.Line) != `{"event":"recording_start"}` {
		t.Errorf("unit 2 = %v %q, want recording_start", unit.Kind, unit.Line)
	}

	unit = nextUnit(t, c)
	if unit.Kind != UnitAudio {
		t.Fatalf("unit 3 kind = %v, want audio", unit.Kind)
	}
	if unit.Frame.Header.Sequence != 1 || len(unit.Frame.Samples) != 4 || unit.Frame.Samples[3] != 40 {
		t.Errorf("unit 3 frame = %v %v", unit.Frame.Header, unit.Frame.Samples)
	}

	unit = nextUnit(t, c)
	if unit.Kind != UnitControl {
		t.Errorf("unit 4 kind = %v, want control", unit.Kind)
	}
	evt, err := ParseEvent(unit.Line)
	if err != nil || evt.Kind != EventRecordingStop || evt.Packets != 1 {
		t.Errorf("unit 4 event = %+v, %v", evt, err)
	}

	if _, err := c.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() at end error = %v, want io.EOF", err)
	}
}

func TestClassifier_NoUnitAtBoundary(t *testing.T) {
	src := &scriptedReader{steps: [][]byte{nil, []byte(`{"action":"ping"}` + "\n")}}
	c := NewClassifier(src, DefaultUnitTimeout)

	if _, err := c.Next(); !errors.Is(err, ErrNoUnit) {
		t.Fatalf("Next() error = %v, want ErrNoUnit", err)
	}
	unit, err := c.Next()
	if err != nil || unit.Kind != UnitControl {
		t.Errorf("Next() = %v, %v", unit.Kind, err)
	}
}

func TestClassifier_TruncatedFrameTimesOut(t *testing.T) {
	frame := EncodeFrame(2, 0, make([]int16, 100))
	src := &scriptedReader{steps: [][]byte{
		frame[:HeaderSize+10],
		nil, nil, nil, nil, nil,
		[]byte(`{"event":"ready"}` + "\n"),
	}}
	c := NewClassifier(src, 2*time.Second)
	clock := &stepClock{now: time.Unix(0, 0), step: time.Second}
	c.now = clock.Now

	_, err := c.Next()
	if !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("Next() error = %v, want ErrTruncatedFrame", err)
	}

	unit := nextUnit(t, c)
	if unit.Kind != UnitControl || !bytes.Contains(unit.Line, []byte("ready")) {
		t.Errorf("after truncation got %v %q, want ready event", unit.Kind, unit.Line)
	}
}

func TestClassifier_TruncatedFrameAtEOF(t *testing.T) {
	frame := EncodeFrame(3, 0, []int16{1, 2, 3})
	c := NewClassifier(bytes.NewReader(frame[:len(frame)-2]), DefaultUnitTimeout)

	if _, err := c.Next(); !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("Next() error = %v, want ErrTruncatedFrame", err)
	}
	if _, err := c.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}

func TestClassifier_OversizedFrameResyncs(t *testing.T) {
	bogus := EncodeFrame(1, 0, nil)
	bogus[8], bogus[9], bogus[10], bogus[11] = 0xFF, 0xFF, 0xFF, 0xFF
	valid := EncodeFrame(2, 0, []int16{4, 5})
	c := NewClassifier(bytes.NewReader(append(bogus, valid...)), DefaultUnitTimeout)

	if _, err := c.Next(); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("Next() error = %v, want ErrFrameTooLarge", err)
	}
	unit := nextUnit(t, c)
	if unit.Kind != UnitAudio || unit.Frame.Header.Sequence != 2 || len(unit.Frame.Samples) != 2 {
		t.Errorf("after oversized header got %v %+v", unit.Kind, unit.Frame)
	}
}

func TestClassifier_ZeroTimeoutUsesDefault(t *testing.T) {
	frame := EncodeFrame(2, 0, make([]int16, 10))
	src := &scriptedReader{steps: [][]byte{frame[:HeaderSize+4], nil, nil, nil, frame[HeaderSize+4:]}}
	c := NewClassifier(src, 0)
	clock := &stepClock{now: time.Unix(0, 0), step: time.Second}
	c.now = clock.Now

	if _, err := c.Next(); !errors.Is(err, ErrTruncatedFrame) {
		t.Errorf("Next() error = %v, want ErrTruncatedFrame", err)
	}
}

func TestClassifier_ForeignLines(t *testing.T) {
	long := strings.Repeat("x", 5000)
	input := "Jarvis boot v1\n" + long + "\n" + "JA"
	c := NewClassifier(strings.NewReader(input), DefaultUnitTimeout)

	unit := nextUnit(t, c)
	if unit.Kind != UnitForeign || string(unit.Line) != "Jarvis boot v1" {
		t.Errorf("unit 1 = %v %q", unit.Kind, unit.Line)
	}

	unit = nextUnit(t, c)
	if unit.Kind != UnitForeign || len(unit.Line) != len(long) {
		t.Errorf("unit 2 = %v len %d, want foreign len %d", unit.Kind, len(unit.Line), len(long))
	}

	unit = nextUnit(t, c)
	if unit.Kind != UnitForeign || string(unit.Line) != "JA" {
		t.Errorf("unit 3 = %v %q, want trailing partial line", unit.Kind, unit.Line)
	}
}

func TestClassifier_LineTooLong(t *testing.T) {
	input := strings.Repeat("y", MaxLineSize+10) + "\n" + `{"action":"ping"}` + "\n"
	c := NewClassifier(strings.NewReader(input), DefaultUnitTimeout)

	if _, err := c.Next(); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("Next() error = %v, want ErrLineTooLong", err)
	}
	unit := nextUnit(t, c)
	if unit.Kind != UnitControl {
		t.Errorf("after long line got %v, want control", unit.Kind)
	}
}

func TestIdleReader(t *testing.T) {
	r := IdleReader{R: readerFunc(func(p []byte) (int, error) { return 0, nil })}
	if _, err := r.Read(make([]byte, 8)); !errors.Is(err, ErrIdle) {
		t.Errorf("Read() error = %v, want ErrIdle", err)
	}
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
