package core

import (
	"fmt"
	"sync"
)

// RoomID is the position of a room in registry order.
type RoomID int

// Room describes an advertised peer-to-peer chat session.
type Room struct {
	HostAddress string `json:"host_address"`
	HostPort    int    `json:"host_port"`
	Name        string `json:"name"`
	HostName    string `json:"host_name"`
	Capacity    int    `json:"capacity"`
}

// Registry is the process-wide ordered table of rooms.
// Rooms are only ever appended.
type Registry struct {
	mu    sync.RWMutex
	rooms []Room
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewRoom appends a room and returns its position.
func (r *Registry) NewRoom(hostAddress string, hostPort int, name, hostName string, capacity int) (RoomID, error) {
	if capacity < 1 {
		return -1, InvalidRoomSpec(fmt.Sprintf("capacity must be at least 1, got %d", capacity))
	}

	room := Room{
		HostAddress: hostAddress,
		HostPort:    hostPort,
		Name:        name,
		HostName:    hostName,
		Capacity:    capacity,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, room)
	return RoomID(len(r.rooms) - 1), nil
}

// Count returns the number of rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Snapshot returns a copy of all rooms in registry order.
func (r *Registry) Snapshot() []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Room, len(r.rooms))
	copy(out, r.rooms)
	return out
}

// SerializeAll renders the room list as a single roomInfo payload.
func (r *Registry) SerializeAll() string {
	return EncodeRoomInfo(r.Snapshot())
}
