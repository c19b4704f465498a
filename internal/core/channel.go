package core

// channel groups connections subscribed to the same name.
type channel struct {
	name    string
	members map[string]Conn
}

func newChannel(name string) *channel {
	return &channel{
		name:    name,
		members: make(map[string]Conn),
	}
}

// add inserts a connection. Returns true if newly added.
func (c *channel) add(conn Conn) bool {
	if _, exists := c.members[conn.ID()]; exists {
		return false
	}
	c.members[conn.ID()] = conn
	return true
}

// remove deletes a connection. Returns true if it was a member.
func (c *channel) remove(id string) bool {
	if _, exists := c.members[id]; !exists {
		return false
	}
	delete(c.members, id)
	return true
}

// snapshot copies the member set so sends can happen without the registry lock.
func (c *channel) snapshot() []Conn {
	conns := make([]Conn, 0, len(c.members))
	for _, conn := range c.members {
		conns = append(conns, conn)
	}
	return conns
}

func (c *channel) empty() bool {
	return len(c.members) == 0
}
