package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNickSet confirms a nickname change to the caller.
	EventNickSet EventKind = iota
	// EventJoined notifies channel members that a connection joined.
	EventJoined
	// EventLeft notifies the remaining channel members that a connection left.
	EventLeft
	// EventList delivers the channel snapshot to the caller.
	EventList
	// EventMessage carries chat text to channel members.
	EventMessage
	// EventGoodbye acknowledges a quit.
	EventGoodbye
	// EventError notifies the caller about a rejected command.
	EventError
)

var eventNames = [...]string{
	EventNickSet: "nick_set",
	EventJoined:  "joined",
	EventLeft:    "left",
	EventList:    "list",
	EventMessage: "message",
	EventGoodbye: "goodbye",
	EventError:   "error",
}

func (k EventKind) String() string {
	if int(k) >= 0 && int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Channel  string
	Nickname string
	Message  Message
	Channels map[string]int // For EventList
	Error    string         // For EventError
}

// NickSet builds the reply to a nick command.
func NickSet(nickname string) Event {
	return Event{Kind: EventNickSet, Nickname: nickname}
}

// Joined builds the broadcast for a join.
func Joined(channel string) Event {
	return Event{Kind: EventJoined, Channel: channel}
}

// Left builds the broadcast for a leave.
func Left(channel string) Event {
	return Event{Kind: EventLeft, Channel: channel}
}

// ChannelList builds the reply to a list command.
func ChannelList(channels map[string]int) Event {
	return Event{Kind: EventList, Channels: channels}
}

// Goodbye builds the reply to a quit command.
func Goodbye() Event {
	return Event{Kind: EventGoodbye}
}

// ErrorEvent builds an error reply with a human-readable message.
func ErrorEvent(msg string) Event {
	return Event{Kind: EventError, Error: msg}
}
