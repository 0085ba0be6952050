package gateway

import "github.com/samber/lo"

// Registry tracks live connections and the rooms they have joined. It is a
// plain in-process structure: every mutation happens on the gateway's event
// loop, which is what makes it safe without locking. Swapping in a distributed
// backend means replacing this type, not the gateway's call sites.
type Registry struct {
	conns  map[*Conn]struct{}
	rooms  map[int]map[*Conn]struct{}
	joined map[*Conn]map[int]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[*Conn]struct{}),
		rooms:  make(map[int]map[*Conn]struct{}),
		joined: make(map[*Conn]map[int]struct{}),
	}
}

func (r *Registry) Add(c *Conn) {
	r.conns[c] = struct{}{}
}

func (r *Registry) Has(c *Conn) bool {
	_, ok := r.conns[c]
	return ok
}

// Join adds the connection to a group's room. Joining twice is a no-op.
// Unknown connections are ignored so a disconnect racing a join cannot
// resurrect registry state.
func (r *Registry) Join(c *Conn, groupID int) {
	if !r.Has(c) {
		return
	}
	room, ok := r.rooms[groupID]
	if !ok {
		room = make(map[*Conn]struct{})
		r.rooms[groupID] = room
	}
	room[c] = struct{}{}

	set, ok := r.joined[c]
	if !ok {
		set = make(map[int]struct{})
		r.joined[c] = set
	}
	set[groupID] = struct{}{}
}

func (r *Registry) Leave(c *Conn, groupID int) {
	if room, ok := r.rooms[groupID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(r.rooms, groupID)
		}
	}
	if set, ok := r.joined[c]; ok {
		delete(set, groupID)
		if len(set) == 0 {
			delete(r.joined, c)
		}
	}
}

func (r *Registry) MembersOf(groupID int) []*Conn {
	return lo.Keys(r.rooms[groupID])
}

func (r *Registry) Rooms(c *Conn) []int {
	return lo.Keys(r.joined[c])
}

func (r *Registry) RoomSize(groupID int) int {
	return len(r.rooms[groupID])
}

func (r *Registry) Len() int {
	return len(r.conns)
}

// RemoveConn drops the connection from every room it joined and from the
// connection set. After this returns the connection is never a broadcast
// target again.
func (r *Registry) RemoveConn(c *Conn) {
	for groupID := range r.joined[c] {
		if room, ok := r.rooms[groupID]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(r.rooms, groupID)
			}
		}
	}
	delete(r.joined, c)
	delete(r.conns, c)
}
