package proto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/chanchat/internal/core"
)

// DecodeCommand maps one inbound frame to a core command.
//
// Undecodable frames and frames whose type is not "command" wrap
// core.ErrMalformedFrame. A recognized command without a required argument
// yields a *core.ArgumentError. Unrecognized command names decode to
// core.CommandUnknown.
func DecodeCommand(frame []byte) (core.Command, error) {
	var in Inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		return core.Command{}, fmt.Errorf("%w: %v", core.ErrMalformedFrame, err)
	}
	if in.Type != TypeCommand {
		return core.Command{}, fmt.Errorf("%w: unexpected type %q", core.ErrMalformedFrame, in.Type)
	}

	cmd := core.Command{Kind: core.ParseCommandKind(in.Command), Name: in.Command}
	switch cmd.Kind {
	case core.CommandNick:
		var args NickArgs
		if err := decodeArgs(in.Args, &args); err != nil {
			return core.Command{}, err
		}
		if args.Nickname == nil {
			return core.Command{}, &core.ArgumentError{Command: in.Command, Arg: "nickname"}
		}
		cmd.Nickname = *args.Nickname
	case core.CommandJoin:
		var args ChannelArgs
		if err := decodeArgs(in.Args, &args); err != nil {
			return core.Command{}, err
		}
		if args.Channel == nil || *args.Channel == "" {
			return core.Command{}, &core.ArgumentError{Command: in.Command, Arg: "channel"}
		}
		cmd.Channel = *args.Channel
	case core.CommandLeave:
		var args ChannelArgs
		if err := decodeArgs(in.Args, &args); err != nil {
			return core.Command{}, err
		}
		// Absent, null and empty all mean "every channel".
		if args.Channel != nil {
			cmd.Channel = *args.Channel
		}
	case core.CommandMessage:
		var args TextArgs
		if err := decodeArgs(in.Args, &args); err != nil {
			return core.Command{}, err
		}
		if args.Text == nil {
			return core.Command{}, &core.ArgumentError{Command: in.Command, Arg: "text"}
		}
		cmd.Text = *args.Text
	}
	return cmd, nil
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: args: %v", core.ErrMalformedFrame, err)
	}
	return nil
}

// EncodeEvent renders a core event as a single-line JSON object.
func EncodeEvent(ev core.Event) ([]byte, error) {
	return json.Marshal(OutboundFromEvent(ev))
}

// OutboundFromEvent maps a core event to its wire envelope.
func OutboundFromEvent(ev core.Event) Outbound {
	out := Outbound{Type: TypeEvent, Event: ev.Kind.String()}
	switch ev.Kind {
	case core.EventNickSet:
		out.Args = NickSetData{Nickname: ev.Nickname}
	case core.EventJoined, core.EventLeft:
		out.Args = ChannelData{Channel: ev.Channel}
	case core.EventList:
		channels := ev.Channels
		if channels == nil {
			channels = map[string]int{}
		}
		out.Args = ListData{Channels: channels}
	case core.EventMessage:
		out.Args = MessageData{
			Channel:  ev.Message.Channel,
			FromUser: ev.Message.From,
			Text:     ev.Message.Text,
		}
	case core.EventError:
		out.Args = ErrorData{Message: ev.Error}
	default:
		out.Args = Empty{}
	}
	return out
}

// NewCommand builds a command envelope for clients. args may be nil.
func NewCommand(command string, args any) (Inbound, error) {
	in := Inbound{Type: TypeCommand, Command: command}
	if args == nil {
		return in, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return Inbound{}, fmt.Errorf("marshal %s args: %w", command, err)
	}
	in.Args = raw
	return in, nil
}

// DecodeEvent parses an event frame on the client side.
func DecodeEvent(frame []byte) (EventEnvelope, error) {
	var env EventEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return EventEnvelope{}, fmt.Errorf("decode event: %w", err)
	}
	if env.Type != TypeEvent {
		return EventEnvelope{}, fmt.Errorf("decode event: unexpected type %q", env.Type)
	}
	return env, nil
}

// Decode unmarshals the event args into dst.
func (e EventEnvelope) Decode(dst any) error {
	if err := json.Unmarshal(e.Args, dst); err != nil {
		return fmt.Errorf("decode %s args: %w", e.Event, err)
	}
	return nil
}
