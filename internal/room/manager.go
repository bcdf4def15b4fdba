package room

import (
	"hash/fnv"
	"sync"
)

// Manager owns the set of live rooms. Rooms share no mutable state and
// run fully in parallel; the manager map is the only cross-room lock.
type Manager struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	template Config
}

// NewManager builds a manager that stamps each new room from template,
// overriding ID and Seed per room.
func NewManager(template Config) *Manager {
	return &Manager{
		rooms:    make(map[string]*Room),
		template: template,
	}
}

// GetOrCreate returns the live room for an id, starting one on demand.
func (m *Manager) GetOrCreate(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[id]; ok {
		return r
	}

	cfg := m.template
	cfg.ID = id
	if cfg.Seed == 0 {
		cfg.Seed = seedFromID(id)
	}
	r := New(cfg)
	m.rooms[id] = r
	go r.Run()
	return r
}

// Get returns a live room without creating one.
func (m *Manager) Get(id string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Rooms returns the live set for diagnostics.
func (m *Manager) Rooms() []*Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}

// StopAll shuts every room down.
func (m *Manager) StopAll() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	for _, r := range rooms {
		r.Stop()
	}
}

// seedFromID derives a stable terrain seed from a room id, so the same
// room name always regenerates the same forest.
func seedFromID(id string) int64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	seed := int64(h.Sum64())
	if seed == 0 {
		seed = 1
	}
	return seed
}
