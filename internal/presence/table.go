// Package presence tracks which users are in which rooms, through which
// connections. Every operation runs under a single mutex, so each result
// is a consistent snapshot taken in the same critical section as the
// mutation that produced it.
package presence

import (
	"errors"
	"sort"
	"sync"
)

// ErrIdentityMismatch is returned when a connection already bound to one
// user tries to join as another.
var ErrIdentityMismatch = errors.New("connection is bound to a different user")

// JoinResult describes the effect of Join.
type JoinResult struct {
	// First is true when this is the user's first connection in the room.
	First bool
	// AlreadyMember is true when the connection was already in the room.
	AlreadyMember bool
	Members       []string
}

// LeaveResult describes the effect of Leave.
type LeaveResult struct {
	WasMember bool
	// UserVacated is true when the user has no connection left in the room.
	UserVacated bool
	Members     []string
	RoomEmpty   bool
}

// RoomUpdate is one affected room after DisconnectAll.
type RoomUpdate struct {
	Room        string
	Members     []string
	UserVacated bool
	RoomEmpty   bool
}

// Stats is a point-in-time size of the table.
type Stats struct {
	Connections int
	Rooms       int
}

type connEntry struct {
	user  string
	rooms map[string]struct{}
}

// room maps each present user to the connections they joined through.
type room map[string]map[string]struct{}

// Table is the single source of truth for room membership.
type Table struct {
	mu    sync.Mutex
	conns map[string]*connEntry
	rooms map[string]room
}

// New creates an empty Table.
func New() *Table {
	return &Table{
		conns: make(map[string]*connEntry),
		rooms: make(map[string]room),
	}
}

// Join adds conn, acting as user, to roomID. Joining a room the connection
// is already in changes nothing.
func (t *Table) Join(conn, user, roomID string) (JoinResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.conns[conn]
	if !ok {
		entry = &connEntry{user: user, rooms: make(map[string]struct{})}
		t.conns[conn] = entry
	} else if entry.user != user {
		return JoinResult{}, ErrIdentityMismatch
	}

	if _, in := entry.rooms[roomID]; in {
		return JoinResult{AlreadyMember: true, Members: t.members(roomID)}, nil
	}

	r, ok := t.rooms[roomID]
	if !ok {
		r = make(room)
		t.rooms[roomID] = r
	}
	userConns, present := r[user]
	if !present {
		userConns = make(map[string]struct{})
		r[user] = userConns
	}
	userConns[conn] = struct{}{}
	entry.rooms[roomID] = struct{}{}

	return JoinResult{First: !present, Members: t.members(roomID)}, nil
}

// Leave removes only conn's membership of roomID.
func (t *Table) Leave(conn, roomID string) LeaveResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.conns[conn]
	if !ok {
		return LeaveResult{Members: t.members(roomID), RoomEmpty: t.rooms[roomID] == nil}
	}
	if _, in := entry.rooms[roomID]; !in {
		return LeaveResult{Members: t.members(roomID), RoomEmpty: t.rooms[roomID] == nil}
	}

	delete(entry.rooms, roomID)
	vacated, empty := t.remove(conn, entry.user, roomID)
	return LeaveResult{
		WasMember:   true,
		UserVacated: vacated,
		Members:     t.members(roomID),
		RoomEmpty:   empty,
	}
}

// DisconnectAll removes conn from every room and forgets it. It returns the
// user the connection was bound to and one update per affected room, sorted
// by room name. Calling it again for the same conn returns no updates.
func (t *Table) DisconnectAll(conn string) (string, []RoomUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.conns[conn]
	if !ok {
		return "", nil
	}
	delete(t.conns, conn)

	updates := make([]RoomUpdate, 0, len(entry.rooms))
	for roomID := range entry.rooms {
		vacated, empty := t.remove(conn, entry.user, roomID)
		updates = append(updates, RoomUpdate{
			Room:        roomID,
			Members:     t.members(roomID),
			UserVacated: vacated,
			RoomEmpty:   empty,
		})
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].Room < updates[j].Room })

	return entry.user, updates
}

// RoomsOf returns the rooms conn has joined, sorted.
func (t *Table) RoomsOf(conn string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.conns[conn]
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(entry.rooms))
	for r := range entry.rooms {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Members returns the sorted users present in roomID.
func (t *Table) Members(roomID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.members(roomID)
}

// Recipients returns every connection joined to roomID.
func (t *Table) Recipients(roomID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for _, conns := range t.rooms[roomID] {
		for c := range conns {
			out = append(out, c)
		}
	}
	return out
}

// IsMember reports whether conn has joined roomID.
func (t *Table) IsMember(conn, roomID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.conns[conn]
	if !ok {
		return false
	}
	_, in := entry.rooms[roomID]
	return in
}

// Stats reports the number of tracked connections and non-empty rooms.
func (t *Table) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{Connections: len(t.conns), Rooms: len(t.rooms)}
}

// remove drops conn from roomID. Caller holds t.mu.
func (t *Table) remove(conn, user, roomID string) (vacated, empty bool) {
	r := t.rooms[roomID]
	if r == nil {
		return true, true
	}
	if conns := r[user]; conns != nil {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(r, user)
			vacated = true
		}
	} else {
		vacated = true
	}
	if len(r) == 0 {
		delete(t.rooms, roomID)
		empty = true
	}
	return vacated, empty
}

func (t *Table) members(roomID string) []string {
	r := t.rooms[roomID]
	out := make([]string, 0, len(r))
	for user := range r {
		out = append(out, user)
	}
	sort.Strings(out)
	return out
}
