package core

// Message is the domain model for a chat message delivered to one channel.
type Message struct {
	Channel string
	From    string
	Text    string
}

// MessageEvent wraps a chat message for broadcast.
func MessageEvent(msg Message) Event {
	return Event{Kind: EventMessage, Channel: msg.Channel, Message: msg}
}
