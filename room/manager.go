package room

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/wfunc/wordbot/logger"
)

// ErrCodeMismatch is returned by GetOrCreate when the factory builds an actor
// for a different room.
var ErrCodeMismatch = errors.New("actor code mismatch")

// Manager maps room codes to their actors. The lock only guards the map and is
// never held while talking to an actor.
type Manager struct {
	rooms map[string]*Actor
	mutex sync.RWMutex
}

func NewRoomManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Actor),
	}
}

// Register stores a under its code. If a room with that code already exists the
// existing actor is returned with ok=false and a is left untouched.
func (m *Manager) Register(a *Actor) (*Actor, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if existing, exists := m.rooms[a.Code()]; exists {
		return existing, false
	}
	m.add(a)
	return a, true
}

// GetOrCreate returns the actor for code, building it with create when absent.
// Concurrent callers for the same code always get the same actor. An actor
// built for another code is closed and reported as ErrCodeMismatch.
func (m *Manager) GetOrCreate(code string, create func(code string) *Actor) (*Actor, bool, error) {
	if a, exists := m.GetRoom(code); exists {
		return a, false, nil
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if a, exists := m.rooms[code]; exists {
		return a, false, nil
	}
	a := create(code)
	if a.Code() != code {
		a.Close()
		return nil, false, fmt.Errorf("%w: want %s, got %s", ErrCodeMismatch, code, a.Code())
	}
	m.add(a)
	return a, true, nil
}

// add must be called with the write lock held.
func (m *Manager) add(a *Actor) {
	m.rooms[a.Code()] = a
	go m.forget(a)
}

// forget drops the entry once the actor stops.
func (m *Manager) forget(a *Actor) {
	<-a.Done()

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.rooms[a.Code()] == a {
		delete(m.rooms, a.Code())
		logger.Log.Infow("room removed from registry", "room", a.Code())
	}
}

func (m *Manager) GetRoom(code string) (*Actor, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	a, exists := m.rooms[code]
	return a, exists
}

// RemoveRoom removes the room and stops its actor.
func (m *Manager) RemoveRoom(code string) bool {
	m.mutex.Lock()
	a, exists := m.rooms[code]
	if exists {
		delete(m.rooms, code)
	}
	m.mutex.Unlock()

	if exists {
		a.Close()
	}
	return exists
}

// Codes lists the registered room codes in sorted order.
func (m *Manager) Codes() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	codes := make([]string, 0, len(m.rooms))
	for code := range m.rooms {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// Rooms returns the registered actors.
func (m *Manager) Rooms() []*Actor {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Actor, 0, len(m.rooms))
	for _, a := range m.rooms {
		rooms = append(rooms, a)
	}
	return rooms
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// CloseAll stops every actor and empties the registry.
func (m *Manager) CloseAll() {
	m.mutex.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Actor)
	m.mutex.Unlock()

	for _, a := range rooms {
		a.Close()
	}
}
