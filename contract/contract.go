//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"planning-poker/domain"
	"planning-poker/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself: the supervisor restarts it on panic.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink delivers events to one connection. Consume must not block
// longer than ctx allows.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Session is one authenticated connection.
type Session struct {
	ID   string
	User domain.Profile
	Sink EventSink
}

// Subscriber is a session as seen from a room.
type Subscriber struct {
	SessionID string
	UserID    string
	Sink      EventSink
}

type IRegistry interface {
	Subscribe(session Session, roomID domain.RoomID) error
	Unsubscribe(sessionID string) (domain.RoomID, bool)
	RoomOf(sessionID string) (domain.RoomID, bool)
	Subscribers(roomID domain.RoomID) []Subscriber
	UserSessions(roomID domain.RoomID, userID string) []string
}

// IDispatcher serializes commands per room and fans out their events.
type IDispatcher interface {
	Dispatch(ctx context.Context, session Session, cmd domain.Command)
	Disconnect(ctx context.Context, session Session)
}
