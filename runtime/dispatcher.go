// Package runtime routes commands to rooms and events to connections.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"planning-poker/contract"
	"planning-poker/domain"
	"planning-poker/domain/event"
	"planning-poker/engine"
	"planning-poker/errors"
	"planning-poker/infrastructure/storage"
	"planning-poker/observability"

	"github.com/go-playground/validator/v10"
)

type DispatcherConfig struct {
	StoreTimeout time.Duration
	SinkTimeout  time.Duration
}

// Dispatcher is the single logical writer of every room: commands on the
// same room run one at a time, from load to fan-out.
type Dispatcher struct {
	rooms    storage.IRoomRepository
	registry contract.IRegistry
	engine   engine.Engine
	locks    *KeyedMutex
	validate *validator.Validate
	log      *slog.Logger
	config   DispatcherConfig
	now      func() time.Time
	monitor  *observability.MonitoringManager
}

func NewDispatcher(
	rooms storage.IRoomRepository,
	registry contract.IRegistry,
	eng engine.Engine,
	locks *KeyedMutex,
	log *slog.Logger,
	config DispatcherConfig,
) *Dispatcher {
	return &Dispatcher{
		rooms:    rooms,
		registry: registry,
		engine:   eng,
		locks:    locks,
		validate: validator.New(),
		log:      log,
		config:   config,
		now:      time.Now,
	}
}

// WithMonitoring counts applied and rejected commands and dropped events.
func (d *Dispatcher) WithMonitoring(monitor *observability.MonitoringManager) *Dispatcher {
	d.monitor = monitor
	return d
}

// Dispatch runs cmd for the session. Failures are reported to this
// session only, as an error event.
func (d *Dispatcher) Dispatch(ctx context.Context, session contract.Session, cmd domain.Command) {
	if err := d.execute(ctx, session, cmd); err != nil {
		d.monitor.IncrRejected()
		d.reportError(ctx, session, cmd.RoomID(), err)
		return
	}
	d.monitor.IncrApplied()
}

// Disconnect detaches a closed connection. The user leaves the room only
// when no other connection of theirs still follows it. The check and the
// leave run under the room lock.
func (d *Dispatcher) Disconnect(ctx context.Context, session contract.Session) {
	roomID, ok := d.registry.Unsubscribe(session.ID)
	if !ok {
		return
	}

	unlock := d.locks.Lock("room:" + roomID.String())
	defer unlock()

	if len(d.registry.UserSessions(roomID, session.User.UserID)) > 0 {
		d.log.Debug("Connection closed, user still present", "room_id", roomID, "user_id", session.User.UserID)
		return
	}
	err := d.apply(ctx, session, domain.LeaveRoom{Room: roomID})
	if err != nil && !errors.Is(err, errors.ErrRoomNotFound) {
		d.log.Warn("Leave on disconnect failed", "room_id", roomID, "user_id", session.User.UserID, "error", err)
	}
}

func (d *Dispatcher) execute(ctx context.Context, session contract.Session, cmd domain.Command) error {
	if err := d.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidCommand, err)
	}

	unlock := d.locks.Lock("room:" + cmd.RoomID().String())
	defer unlock()

	if err := d.checkSubscription(session, cmd); err != nil {
		return err
	}
	return d.apply(ctx, session, cmd)
}

// apply runs cmd against the stored room. Callers hold the room lock.
func (d *Dispatcher) apply(ctx context.Context, session contract.Session, cmd domain.Command) error {
	roomID := cmd.RoomID()
	room, err := d.load(ctx, roomID)
	if err != nil {
		return err
	}

	outcome, err := d.engine.Apply(room, session.User, cmd, d.now())
	if err != nil {
		return err
	}

	if err := d.store(ctx, outcome.Room); err != nil {
		return err
	}

	var kicked []string
	switch c := cmd.(type) {
	case domain.JoinRoom:
		if err := d.registry.Subscribe(session, roomID); err != nil {
			return err
		}
	case domain.LeaveRoom:
		d.registry.Unsubscribe(session.ID)
	case domain.KickParticipant:
		kicked = d.registry.UserSessions(roomID, c.UserID)
	}

	d.fanOut(ctx, session, roomID, outcome.Emissions)

	for _, sessionID := range kicked {
		d.registry.Unsubscribe(sessionID)
	}

	d.log.Debug("Command applied", "room_id", roomID, "user_id", session.User.UserID, "command", cmd.Name())
	return nil
}

// checkSubscription binds commands to the room the connection follows.
func (d *Dispatcher) checkSubscription(session contract.Session, cmd domain.Command) error {
	current, subscribed := d.registry.RoomOf(session.ID)
	if _, isJoin := cmd.(domain.JoinRoom); isJoin {
		if subscribed && current != cmd.RoomID() {
			return errors.ErrAlreadyInRoom
		}
		return nil
	}
	if _, isLeave := cmd.(domain.LeaveRoom); isLeave && !subscribed {
		// disconnect cleanup runs after Unsubscribe
		return nil
	}
	if !subscribed || current != cmd.RoomID() {
		return errors.ErrNotInRoom
	}
	return nil
}

func (d *Dispatcher) load(ctx context.Context, roomID domain.RoomID) (domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, d.config.StoreTimeout)
	defer cancel()
	return d.rooms.Get(ctx, roomID)
}

func (d *Dispatcher) store(ctx context.Context, room domain.Room) error {
	ctx, cancel := context.WithTimeout(ctx, d.config.StoreTimeout)
	defer cancel()
	return d.rooms.Put(ctx, room)
}

func (d *Dispatcher) fanOut(ctx context.Context, actor contract.Session, roomID domain.RoomID, emissions []event.Emission) {
	if len(emissions) == 0 {
		return
	}
	subscribers := d.registry.Subscribers(roomID)
	for _, emission := range emissions {
		switch emission.Audience {
		case event.ActorOnly:
			d.deliver(ctx, actor.ID, actor.Sink, emission.Event)
		default:
			for _, s := range subscribers {
				if emission.Audience == event.Others && s.SessionID == actor.ID {
					continue
				}
				d.deliver(ctx, s.SessionID, s.Sink, emission.Event)
			}
		}
	}
}

// deliver never lets a slow connection hold the room for more than SinkTimeout.
func (d *Dispatcher) deliver(ctx context.Context, sessionID string, sink contract.EventSink, e event.DomainEvent) {
	if sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, d.config.SinkTimeout)
	defer cancel()
	if err := sink.Consume(ctx, e); err != nil {
		d.monitor.IncrDropped()
		d.log.Warn("Event dropped", "room_id", e.RoomID(), "session_id", sessionID, "event", e.Type(), "error", err)
	}
}

func (d *Dispatcher) reportError(ctx context.Context, session contract.Session, roomID domain.RoomID, err error) {
	kind := errors.KindOf(err)
	if kind == errors.KindStoreUnavailable || kind == errors.KindInternal {
		d.log.Error("Command failed", "room_id", roomID, "user_id", session.User.UserID, "error", err)
	} else {
		d.log.Debug("Command rejected", "room_id", roomID, "user_id", session.User.UserID, "error", err)
	}
	d.deliver(ctx, session.ID, session.Sink, event.Error{
		Room:      roomID,
		Message:   errors.Message(err),
		Code:      errors.Code(err),
		Retryable: errors.Retryable(err),
	})
}
