package proto

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vovakirdan/chanchat/internal/core"
)

// DefaultMaxFrameBytes bounds a single inbound line.
const DefaultMaxFrameBytes = 64 << 10

// StreamCodec reads newline-delimited JSON commands from a byte stream.
// It implements core.Codec; framing on the write side is the transport's job.
type StreamCodec struct {
	r        *bufio.Reader
	maxFrame int
	pending  error
}

// NewStreamCodec wraps r. A non-positive maxFrame selects DefaultMaxFrameBytes.
func NewStreamCodec(r io.Reader, maxFrame int) *StreamCodec {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	return &StreamCodec{
		r:        bufio.NewReaderSize(r, maxFrame+1),
		maxFrame: maxFrame,
	}
}

// ReadFrame returns the next non-empty line without its terminator.
// An over-long line is discarded and reported as core.ErrMalformedFrame.
// A trailing line without terminator is returned before io.EOF.
func (c *StreamCodec) ReadFrame() ([]byte, error) {
	for {
		if c.pending != nil {
			return nil, c.pending
		}

		line, err := c.r.ReadSlice('\n')
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			if discardErr := c.discardLine(); discardErr != nil {
				c.pending = discardErr
			}
			return nil, fmt.Errorf("%w: frame exceeds %d bytes", core.ErrMalformedFrame, c.maxFrame)
		case err != nil:
			c.pending = err
			if frame := bytes.TrimSpace(line); len(frame) > 0 {
				return bytes.Clone(frame), nil
			}
			return nil, err
		}

		if frame := bytes.TrimSpace(line); len(frame) > 0 {
			return bytes.Clone(frame), nil
		}
	}
}

func (c *StreamCodec) discardLine() error {
	for {
		_, err := c.r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return err
	}
}

// ReadCommand reads and decodes the next command.
func (c *StreamCodec) ReadCommand() (core.Command, error) {
	frame, err := c.ReadFrame()
	if err != nil {
		return core.Command{}, err
	}
	return DecodeCommand(frame)
}

// EncodeEvent implements core.Codec.
func (c *StreamCodec) EncodeEvent(ev core.Event) ([]byte, error) {
	return EncodeEvent(ev)
}

// AppendFrame appends the line terminator to an encoded frame.
func AppendFrame(dst, frame []byte) []byte {
	dst = append(dst, frame...)
	return append(dst, '\n')
}
