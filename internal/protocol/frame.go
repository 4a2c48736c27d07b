package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Audio frame layout: [Magic:4][Sequence:4][SampleCount:4][Timestamp:4][PCM:SampleCount*2]
// All integers are little-endian, PCM is signed 16-bit mono.
const (
	MagicSize      = 4
	HeaderSize     = 16
	HeaderBodySize = HeaderSize - MagicSize
	BytesPerSample = 2
	MaxSampleCount = 1 << 20 // ~65s at 16kHz, guards against garbage headers
)

// Magic identifies a binary audio frame on a shared channel.
var Magic = []byte("JAUD")

var (
	// ErrTruncatedFrame is returned when fewer bytes are available than the
	// header declares.
	ErrTruncatedFrame = errors.New("truncated audio frame")

	// ErrBadMagic is returned by DecodeFrame when the first four bytes are not Magic.
	ErrBadMagic = errors.New("audio frame magic mismatch")

	// ErrFrameTooLarge is returned when a header declares more than MaxSampleCount samples.
	ErrFrameTooLarge = errors.New("audio frame too large")
)

// FrameHeader is the fixed part of an audio frame.
type FrameHeader struct {
	Sequence    uint32 // not validated for gaps
	SampleCount uint32
	Timestamp   uint32 // device-relative
}

// AudioFrame is one decoded chunk of PCM audio.
type AudioFrame struct {
	Header  FrameHeader
	Samples []int16
}

// PayloadSize returns the number of payload bytes the header declares.
func (h FrameHeader) PayloadSize() int {
	return int(h.SampleCount) * BytesPerSample
}

func (h FrameHeader) checkSize() error {
	if h.SampleCount > MaxSampleCount {
		return fmt.Errorf("%w: sample count %d exceeds limit %d", ErrFrameTooLarge, h.SampleCount, MaxSampleCount)
	}
	return nil
}

// String returns a human-readable representation of the header
func (h FrameHeader) String() string {
	return fmt.Sprintf("FrameHeader{Seq:%d, Samples:%d, Timestamp:%d}", h.Sequence, h.SampleCount, h.Timestamp)
}

// ParseHeaderBody parses the 12 header bytes that follow the magic.
func ParseHeaderBody(data []byte) (FrameHeader, error) {
	if len(data) < HeaderBodySize {
		return FrameHeader{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncatedFrame, HeaderBodySize, len(data))
	}
	return FrameHeader{
		Sequence:    binary.LittleEndian.Uint32(data[0:4]),
		SampleCount: binary.LittleEndian.Uint32(data[4:8]),
		Timestamp:   binary.LittleEndian.Uint32(data[8:12]),
	}, nil
}

// DecodeFrameBody decodes a frame from the post-magic header remainder plus payload.
// Bytes beyond the declared payload are ignored.
func DecodeFrameBody(data []byte) (*AudioFrame, error) {
	header, err := ParseHeaderBody(data)
	if err != nil {
		return nil, err
	}
	if err := header.checkSize(); err != nil {
		return nil, err
	}

	payload := data[HeaderBodySize:]
	if len(payload) < header.PayloadSize() {
		return nil, fmt.Errorf("%w: payload needs %d bytes, got %d", ErrTruncatedFrame, header.PayloadSize(), len(payload))
	}

	return &AudioFrame{
		Header:  header,
		Samples: BytesToSamples(payload[:header.PayloadSize()]),
	}, nil
}

// DecodeFrame decodes a complete frame including its magic.
func DecodeFrame(data []byte) (*AudioFrame, error) {
	if len(data) < MagicSize {
		return nil, fmt.Errorf("%w: missing magic", ErrTruncatedFrame)
	}
	if !bytes.Equal(data[:MagicSize], Magic) {
		return nil, ErrBadMagic
	}
	return DecodeFrameBody(data[MagicSize:])
}

// HasMagic reports whether data starts with the audio frame magic.
func HasMagic(data []byte) bool {
	return len(data) >= MagicSize && bytes.Equal(data[:MagicSize], Magic)
}

// ReadFrameBody reads the post-magic header and its payload from r.
// A short read yields ErrTruncatedFrame and no frame.
func ReadFrameBody(r io.Reader) (*AudioFrame, error) {
	head := make([]byte, HeaderBodySize)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, truncated(err)
	}
	header, err := ParseHeaderBody(head)
	if err != nil {
		return nil, err
	}
	if err := header.checkSize(); err != nil {
		return nil, err
	}

	payload := make([]byte, header.PayloadSize())
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, truncated(err)
	}

	return &AudioFrame{Header: header, Samples: BytesToSamples(payload)}, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrTruncatedFrame, err)
	}
	return err
}

// EncodeFrame serializes samples into a complete frame. SampleCount is taken
// from len(samples).
func EncodeFrame(sequence, timestamp uint32, samples []int16) []byte {
	buf := make([]byte, HeaderSize+len(samples)*BytesPerSample)
	copy(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], sequence)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(samples)))
	binary.LittleEndian.PutUint32(buf[12:16], timestamp)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[HeaderSize+i*2:], uint16(s))
	}
	return buf
}

// BytesToSamples converts s16le PCM to samples. A trailing odd byte is ignored.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// SamplesToBytes converts samples to s16le PCM.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}
