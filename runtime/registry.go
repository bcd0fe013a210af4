package runtime

import (
	"planning-poker/contract"
	"planning-poker/domain"
	"planning-poker/errors"
	"sync"
)

type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]domain.RoomID                          // session -> room
	roomMembers map[domain.RoomID]map[string]contract.Subscriber // room -> session -> subscriber
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]domain.RoomID),
		roomMembers: make(map[domain.RoomID]map[string]contract.Subscriber),
	}
}

// Subscribe binds a session to a room. A session follows a single room:
// subscribing again to the same room is a no-op, to another one an error.
func (r *Registry) Subscribe(session contract.Session, roomID domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[session.ID]; ok {
		if current != roomID {
			return errors.ErrAlreadyInRoom
		}
		return nil
	}
	r.sessions[session.ID] = roomID

	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(map[string]contract.Subscriber)
	}
	r.roomMembers[roomID][session.ID] = contract.Subscriber{
		SessionID: session.ID,
		UserID:    session.User.UserID,
		Sink:      session.Sink,
	}
	return nil
}

// Unsubscribe detaches a session and returns the room it followed.
// Empty rooms are dropped from the table.
func (r *Registry) Unsubscribe(sessionID string) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	delete(r.sessions, sessionID)

	if members, ok := r.roomMembers[roomID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.roomMembers, roomID)
		}
	}
	return roomID, true
}

func (r *Registry) RoomOf(sessionID string) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.sessions[sessionID]
	return roomID, ok
}

// Subscribers returns a snapshot of the sessions following roomID.
func (r *Registry) Subscribers(roomID domain.RoomID) []contract.Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.roomMembers[roomID]
	subscribers := make([]contract.Subscriber, 0, len(members))
	for _, s := range members {
		subscribers = append(subscribers, s)
	}
	return subscribers
}

// UserSessions lists the sessions userID has open on roomID.
func (r *Registry) UserSessions(roomID domain.RoomID, userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, s := range r.roomMembers[roomID] {
		if s.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids
}
