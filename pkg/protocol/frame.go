// ABOUTME: Binary frame codec
// ABOUTME: Encodes and decodes MessagePack audio frames carrying tempo and raw PCM
package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// ErrDecode is matched by every FrameError
var ErrDecode = errors.New("frame decode failed")

// Frame is one steady-state binary message.
// Unknown keys are ignored; a missing audio key decodes as no audio.
// The tempo key is required.
type Frame struct {
	Tempo     float64 `msgpack:"tempo"`
	Audio     []byte  `msgpack:"audio"`
	Timestamp int64   `msgpack:"timestamp,omitempty"` // microseconds, server clock
}

// FrameError represents a frame decoding error.
type FrameError struct {
	Size int
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s (%d bytes): %v", ErrDecode, e.Size, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDecode) hold for any FrameError.
func (e *FrameError) Is(target error) bool {
	return target == ErrDecode
}

// wireFrame tells a missing tempo apart from a zero one
type wireFrame struct {
	Tempo     *float64 `msgpack:"tempo"`
	Audio     []byte   `msgpack:"audio"`
	Timestamp int64    `msgpack:"timestamp"`
}

// DecodeFrame decodes a binary message. The top-level value must be a map
// with a tempo entry; anything else is a FrameError.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, &FrameError{Size: 0, Err: errors.New("empty message")}
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	code, err := dec.PeekCode()
	if err != nil {
		return nil, &FrameError{Size: len(data), Err: err}
	}
	if !msgpcode.IsFixedMap(code) && code != msgpcode.Map16 && code != msgpcode.Map32 {
		return nil, &FrameError{Size: len(data), Err: fmt.Errorf("top-level value is not a map (code 0x%02x)", code)}
	}

	var wire wireFrame
	if err := dec.Decode(&wire); err != nil {
		return nil, &FrameError{Size: len(data), Err: err}
	}
	if wire.Tempo == nil {
		return nil, &FrameError{Size: len(data), Err: errors.New("missing tempo")}
	}
	return &Frame{Tempo: *wire.Tempo, Audio: wire.Audio, Timestamp: wire.Timestamp}, nil
}

// EncodeFrame encodes a frame as a binary message
func EncodeFrame(frame *Frame) ([]byte, error) {
	data, err := msgpack.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}
