//go:generate go run go.uber.org/mock/mockgen -source=room_service.go -destination=../mocks/mock_room_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"planning-poker/domain"
	"planning-poker/errors"
	"planning-poker/infrastructure/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// RoomSummary is the lobby view of a room.
type RoomSummary struct {
	ID               domain.RoomID `json:"id"`
	Name             string        `json:"name"`
	ParticipantCount int           `json:"participantCount"`
	CreatedAt        time.Time     `json:"createdAt"`
}

type IRoomService interface {
	Create(ctx context.Context, owner domain.Profile, name string) (domain.Room, error)
	List(ctx context.Context, userID string) ([]RoomSummary, error)
	Get(ctx context.Context, id domain.RoomID) (domain.Room, error)
	Delete(ctx context.Context, id domain.RoomID, requesterID string) error
}

// Locker serializes work per key.
type Locker interface {
	Lock(key string) func()
}

// Censor masks forbidden words.
type Censor interface {
	Censor(text string) (string, []string)
}

type createRoomRequest struct {
	Name string `validate:"required,max=100"`
}

type RoomService struct {
	rooms     storage.IRoomRepository
	locks     Locker
	censor    Censor
	validate  *validator.Validate
	log       *slog.Logger
	maxRooms  int
	now       func() time.Time
	newRoomID func() string
}

func NewRoomService(rooms storage.IRoomRepository, locks Locker, censor Censor, log *slog.Logger, maxRooms int) *RoomService {
	return &RoomService{
		rooms:     rooms,
		locks:     locks,
		censor:    censor,
		validate:  validator.New(),
		log:       log,
		maxRooms:  maxRooms,
		now:       time.Now,
		newRoomID: uuid.NewString,
	}
}

// Create opens a room administered by owner. Creations by the same user
// are serialized so that the per-user cap cannot be raced.
func (s *RoomService) Create(ctx context.Context, owner domain.Profile, name string) (domain.Room, error) {
	name = strings.TrimSpace(name)
	if err := s.validate.Struct(createRoomRequest{Name: name}); err != nil {
		return domain.Room{}, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	if s.censor != nil {
		name, _ = s.censor.Censor(name)
	}

	unlock := s.locks.Lock("user:" + owner.UserID)
	defer unlock()

	count, err := s.rooms.CountUserRooms(ctx, owner.UserID)
	if err != nil {
		return domain.Room{}, err
	}
	if count >= s.maxRooms {
		return domain.Room{}, fmt.Errorf("%w: %d allowed", errors.ErrMaxRoomsExceeded, s.maxRooms)
	}

	room := domain.NewRoom(domain.RoomID(s.newRoomID()), name, owner, s.now())
	if err := s.rooms.Create(ctx, room); err != nil {
		return domain.Room{}, err
	}
	s.log.Info("Room created", "room_id", room.ID, "user_id", owner.UserID)
	return room, nil
}

// List returns the live rooms the user administers.
func (s *RoomService) List(ctx context.Context, userID string) ([]RoomSummary, error) {
	ids, err := s.rooms.UserRoomIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]RoomSummary, 0, len(ids))
	for _, id := range ids {
		room, err := s.rooms.Get(ctx, id)
		if errors.Is(err, errors.ErrRoomNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, Summarize(room))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (s *RoomService) Get(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	return s.rooms.Get(ctx, id)
}

func (s *RoomService) Delete(ctx context.Context, id domain.RoomID, requesterID string) error {
	if err := s.rooms.Delete(ctx, id, requesterID); err != nil {
		return err
	}
	s.log.Info("Room deleted", "room_id", id, "user_id", requesterID)
	return nil
}

func Summarize(room domain.Room) RoomSummary {
	return RoomSummary{
		ID:               room.ID,
		Name:             room.Name,
		ParticipantCount: room.ConnectedCount(),
		CreatedAt:        room.CreatedAt,
	}
}
