package core

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultNickname is reported for connections that never sent nick.
const DefaultNickname = "Unknown"

type member struct {
	conn     Conn
	nickname string
	channels []string // join order
}

// Registry owns nickname assignments and channel membership for every live
// connection. All methods are safe for concurrent use; a single mutex covers
// nicknames and channels together, and no network I/O happens while it is held.
//
// Channels are created on first join and dropped when their last member leaves.
type Registry struct {
	mu       sync.Mutex
	members  map[string]*member
	channels map[string]*channel
	log      *zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{
		members:  make(map[string]*member),
		channels: make(map[string]*channel),
		log:      logger,
	}
}

// Register adds a freshly accepted connection with the default nickname.
// Registering an already known connection is a no-op.
func (r *Registry) Register(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[conn.ID()]; ok {
		return
	}
	r.members[conn.ID()] = &member{conn: conn, nickname: DefaultNickname}
}

// SetNick overwrites the connection's nickname. No validation is applied.
func (r *Registry) SetNick(conn Conn, nickname string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[conn.ID()]
	if !ok {
		return ErrNotRegistered
	}
	m.nickname = nickname
	return nil
}

// Nick returns the connection's nickname, or DefaultNickname if unknown.
func (r *Registry) Nick(conn Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.members[conn.ID()]; ok {
		return m.nickname
	}
	return DefaultNickname
}

// Join subscribes the connection to a channel, creating the channel if needed.
// Returns true if the connection was not already a member.
func (r *Registry) Join(conn Conn, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[conn.ID()]
	if !ok {
		return false, ErrNotRegistered
	}

	ch, exists := r.channels[name]
	if !exists {
		ch = newChannel(name)
		r.channels[name] = ch
	}
	if !ch.add(conn) {
		return false, nil
	}
	m.channels = append(m.channels, name)
	return true, nil
}

// Leave unsubscribes the connection from a channel. Leaving a channel the
// connection is not in is a no-op and returns false.
func (r *Registry) Leave(conn Conn, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[conn.ID()]
	if !ok {
		return false
	}
	if !r.leaveLocked(m, name) {
		return false
	}
	m.channels = slices.DeleteFunc(m.channels, func(c string) bool { return c == name })
	return true
}

// LeaveAll unsubscribes the connection from every channel and returns the
// channels it left, in the order it joined them.
func (r *Registry) LeaveAll(conn Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[conn.ID()]
	if !ok {
		return nil
	}
	return r.leaveAllLocked(m)
}

// Channels returns a snapshot of channel names and their member counts.
func (r *Registry) Channels() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int, len(r.channels))
	for name, ch := range r.channels {
		out[name] = len(ch.members)
	}
	return out
}

// ChannelsOf returns a snapshot of the connection's channels in join order.
func (r *Registry) ChannelsOf(conn Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[conn.ID()]
	if !ok {
		return nil
	}
	return slices.Clone(m.channels)
}

// Remove purges the connection's nickname and memberships and returns the
// channels it was in. Later registry calls for the connection are no-ops.
func (r *Registry) Remove(conn Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[conn.ID()]
	if !ok {
		return nil
	}
	left := r.leaveAllLocked(m)
	delete(r.members, conn.ID())
	return left
}

// Sessions returns the number of registered connections.
func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Broadcast sends frame to every member of the channel at the time of the
// call and returns how many sends succeeded. The member set is copied under
// the lock and the writes happen after it is released. A failed send is
// logged and skipped; the failing connection is torn down by its own session.
func (r *Registry) Broadcast(name string, frame []byte) int {
	r.mu.Lock()
	ch, ok := r.channels[name]
	if !ok {
		r.mu.Unlock()
		return 0
	}
	recipients := ch.snapshot()
	r.mu.Unlock()

	delivered := 0
	for _, conn := range recipients {
		if err := conn.Send(frame); err != nil {
			r.log.Debug().Err(err).Str("conn_id", conn.ID()).Str("channel", name).Msg("broadcast send failed")
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Registry) leaveLocked(m *member, name string) bool {
	ch, ok := r.channels[name]
	if !ok || !ch.remove(m.conn.ID()) {
		return false
	}
	if ch.empty() {
		delete(r.channels, name)
	}
	return true
}

func (r *Registry) leaveAllLocked(m *member) []string {
	left := make([]string, 0, len(m.channels))
	for _, name := range m.channels {
		if r.leaveLocked(m, name) {
			left = append(left, name)
		}
	}
	m.channels = nil
	return left
}
