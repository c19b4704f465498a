package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandUnknown is any command name the server does not recognize.
	CommandUnknown CommandKind = iota
	// CommandNick sets the connection's display nickname.
	CommandNick
	// CommandJoin subscribes the connection to a channel.
	CommandJoin
	// CommandLeave unsubscribes the connection from one channel, or from all of them.
	CommandLeave
	// CommandList requests a snapshot of channels and member counts.
	CommandList
	// CommandMessage sends text to every channel the connection is in.
	CommandMessage
	// CommandQuit ends the session.
	CommandQuit
)

var commandNames = map[CommandKind]string{
	CommandNick:    "nick",
	CommandJoin:    "join",
	CommandLeave:   "leave",
	CommandList:    "list",
	CommandMessage: "message",
	CommandQuit:    "quit",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseCommandKind maps a wire command name to its kind.
func ParseCommandKind(name string) CommandKind {
	for kind, n := range commandNames {
		if n == name {
			return kind
		}
	}
	return CommandUnknown
}

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
	// Name is the command name as received, kept for logging unknown commands.
	Name     string
	Nickname string
	Channel  string
	Text     string
}
