package proto

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/vovakirdan/chanchat/internal/core"
)

func TestStreamCodecReadsLines(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"command","command":"nick","args":{"nickname":"alice"}}`,
		``,
		`  {"type":"command","command":"list"}  `,
		`garbage`,
		`{"type":"command","command":"quit"}`,
	}, "\n")

	codec := NewStreamCodec(strings.NewReader(input), 0)

	cmd, err := codec.ReadCommand()
	if err != nil || cmd.Kind != core.CommandNick || cmd.Nickname != "alice" {
		t.Fatalf("first command: %+v err=%v", cmd, err)
	}

	// Blank lines are skipped.
	cmd, err = codec.ReadCommand()
	if err != nil || cmd.Kind != core.CommandList {
		t.Fatalf("second command: %+v err=%v", cmd, err)
	}

	if _, err := codec.ReadCommand(); !errors.Is(err, core.ErrMalformedFrame) {
		t.Fatalf("expected malformed frame, got %v", err)
	}

	// The last line has no terminator and is still delivered.
	cmd, err = codec.ReadCommand()
	if err != nil || cmd.Kind != core.CommandQuit {
		t.Fatalf("last command: %+v err=%v", cmd, err)
	}

	if _, err := codec.ReadCommand(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if _, err := codec.ReadCommand(); !errors.Is(err, io.EOF) {
		t.Fatalf("EOF should be sticky, got %v", err)
	}
}

func TestStreamCodecDropsOversizedFrames(t *testing.T) {
	long := `{"type":"command","command":"message","args":{"text":"` + strings.Repeat("x", 200) + `"}}`
	input := long + "\n" + `{"type":"command","command":"list"}` + "\n"

	codec := NewStreamCodec(strings.NewReader(input), 64)

	if _, err := codec.ReadCommand(); !errors.Is(err, core.ErrMalformedFrame) {
		t.Fatalf("expected oversized frame to be malformed, got %v", err)
	}
	cmd, err := codec.ReadCommand()
	if err != nil || cmd.Kind != core.CommandList {
		t.Fatalf("expected list after oversized frame, got %+v err=%v", cmd, err)
	}
}

func TestAppendFrame(t *testing.T) {
	got := AppendFrame(nil, []byte(`{"a":1}`))
	if string(got) != "{\"a\":1}\n" {
		t.Fatalf("unexpected frame: %q", got)
	}
}
