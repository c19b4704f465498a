package proto

import "encoding/json"

const (
	TypeCommand = "command"
	TypeEvent   = "event"

	CommandNick    = "nick"
	CommandJoin    = "join"
	CommandLeave   = "leave"
	CommandList    = "list"
	CommandMessage = "message"
	CommandQuit    = "quit"

	EventNickSet = "nick_set"
	EventJoined  = "joined"
	EventLeft    = "left"
	EventList    = "list"
	EventMessage = "message"
	EventGoodbye = "goodbye"
	EventError   = "error"
)

// Inbound is the envelope for commands coming from the client.
type Inbound struct {
	Type    string          `json:"type"`
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Outbound is the envelope for events sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event"`
	Args  any    `json:"args"`
}

// EventEnvelope is an Outbound as seen by a client, with args left raw.
type EventEnvelope struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Args  json.RawMessage `json:"args"`
}

// NickArgs carries the nick command argument.
type NickArgs struct {
	Nickname *string `json:"nickname"`
}

// ChannelArgs carries the join/leave channel argument.
type ChannelArgs struct {
	Channel *string `json:"channel"`
}

// TextArgs carries the message command argument.
type TextArgs struct {
	Text *string `json:"text"`
}

// NickSetData confirms a nickname change.
type NickSetData struct {
	Nickname string `json:"nickname"`
}

// ChannelData is the payload of joined and left events.
type ChannelData struct {
	Channel string `json:"channel"`
}

// ListData maps channel names to member counts.
type ListData struct {
	Channels map[string]int `json:"channels"`
}

// MessageData is a chat message delivered to one channel.
type MessageData struct {
	Channel  string `json:"channel"`
	FromUser string `json:"from_user"`
	Text     string `json:"text"`
}

// ErrorData describes a rejected command.
type ErrorData struct {
	Message string `json:"message"`
}

// Empty is the payload of goodbye events.
type Empty struct{}
