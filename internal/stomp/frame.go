// Package stomp carries STOMP 1.2 frames over a message-oriented
// connection. A websocket message holds one or more whole frames, so each
// message is decoded on its own with the go-stomp frame codec and a bad
// frame costs only the message it arrived in.
package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-stomp/stomp/v3/frame"
)

// MaxMessageSize bounds one websocket message, and with it any body a
// frame can carry.
const MaxMessageSize = 1 << 20

// ErrMalformedFrame is returned when bytes on the wire cannot be parsed
// as a STOMP frame.
var ErrMalformedFrame = errors.New("malformed stomp frame")

// Encode returns the wire form of f, including the trailing NUL. A nil
// frame encodes as a heart-beat.
func Encode(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse decodes every frame contained in one message. Bare EOLs are
// heart-beats and are skipped; a message holding only heart-beats yields
// no frames and no error. Frames decoded before a malformed one are
// returned along with the error.
func Parse(data []byte) ([]*frame.Frame, error) {
	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("%w: message of %d bytes exceeds %d", ErrMalformedFrame, len(data), MaxMessageSize)
	}
	rest := bytes.TrimRight(data, "\r\n")
	if len(rest) == 0 {
		return nil, nil
	}
	if rest[len(rest)-1] != 0 {
		return nil, fmt.Errorf("%w: missing NUL terminator", ErrMalformedFrame)
	}

	if err := checkLengths(data); err != nil {
		return nil, err
	}

	var frames []*frame.Frame
	rd := frame.NewReader(bytes.NewReader(data))
	for {
		f, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return frames, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
		}
		if f == nil {
			continue
		}
		frames = append(frames, f)
	}
	// The codec reports a body cut short by content-length as a plain EOF.
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no complete frame", ErrMalformedFrame)
	}
	return frames, nil
}

// checkLengths rejects content-length values that no body in data could
// satisfy. The codec allocates the claimed length before reading it.
func checkLengths(data []byte) error {
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		name, value, ok := bytes.Cut(bytes.TrimSuffix(line, []byte{'\r'}), []byte{':'})
		if !ok || string(name) != frame.ContentLength {
			continue
		}
		n, err := strconv.ParseUint(string(value), 10, 64)
		if err != nil || n > uint64(len(data)) {
			return fmt.Errorf("%w: bad content-length %q", ErrMalformedFrame, value)
		}
	}
	return nil
}
