package service

import "sync"

// Registry indexes live rooms and maps connections to the room they
// occupy. Its lock covers only the indexes; per-room state is guarded by
// each room's own mutex, so rooms tick and handle commands fully in
// parallel.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	byConn map[string]string // connID -> roomID
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		byConn: make(map[string]string),
	}
}

// Add registers a room.
func (g *Registry) Add(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms[r.ID] = r
}

// Get returns a room by ID, or nil.
func (g *Registry) Get(id string) *Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rooms[id]
}

// ByConn returns the room a connection occupies, or nil.
func (g *Registry) ByConn(connID string) *Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	roomID, ok := g.byConn[connID]
	if !ok {
		return nil
	}
	return g.rooms[roomID]
}

// Bind maps a connection to a room. Fails if the connection already
// occupies any room.
func (g *Registry) Bind(connID, roomID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.byConn[connID]; ok {
		return ErrAlreadyInRoom
	}
	g.byConn[connID] = roomID
	return nil
}

// Unbind removes a connection's room mapping.
func (g *Registry) Unbind(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.byConn, connID)
}

// Move rebinds a set of connections to another room, used when a rematch
// migrates voters to the successor room.
func (g *Registry) Move(connIDs []string, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range connIDs {
		g.byConn[id] = roomID
	}
}

// Remove deletes a room and every binding that still points at it.
func (g *Registry) Remove(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rooms, roomID)
	for connID, id := range g.byConn {
		if id == roomID {
			delete(g.byConn, connID)
		}
	}
}

// Count returns the number of live rooms.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}
