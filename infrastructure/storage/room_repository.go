//go:generate go run go.uber.org/mock/mockgen -source=room_repository.go -destination=../../mocks/mock_room_repository.go -package=mocks
package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"planning-poker/domain"
	"planning-poker/errors"

	"github.com/dgraph-io/badger/v4"
)

// IRoomRepository persists whole room documents.
// Every write refreshes the TTL of the room and of its admin's room-set entry.
type IRoomRepository interface {
	Create(ctx context.Context, room domain.Room) error
	Get(ctx context.Context, id domain.RoomID) (domain.Room, error)
	Put(ctx context.Context, room domain.Room) error
	Delete(ctx context.Context, id domain.RoomID, requesterID string) error
	UserRoomIDs(ctx context.Context, userID string) ([]domain.RoomID, error)
	CountUserRooms(ctx context.Context, userID string) (int, error)
}

type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
	ttl time.Duration
}

func NewRoomRepository(db *badger.DB, log *slog.Logger, ttl time.Duration) *RoomRepository {
	return &RoomRepository{db: db, log: log, ttl: ttl}
}

// Key prefixes of the room documents and of the per admin index.
const (
	RoomPrefix      = "room:"
	UserRoomsPrefix = "user:rooms:"
)

func roomKey(id domain.RoomID) []byte {
	return []byte(RoomPrefix + id.String())
}

func userRoomsPrefix(userID string) []byte {
	return []byte(UserRoomsPrefix + userID + ":")
}

func userRoomKey(userID string, id domain.RoomID) []byte {
	return append(userRoomsPrefix(userID), id.String()...)
}

// Create stores a new room and indexes it under its admin.
func (r RoomRepository) Create(ctx context.Context, room domain.Room) error {
	data, err := marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", room.ID, err)
	}
	return r.update(ctx, func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry(roomKey(room.ID), data).WithTTL(r.ttl)); err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(userRoomKey(room.AdminID, room.ID), nil).WithTTL(r.ttl))
	})
}

func (r RoomRepository) Get(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	var room domain.Room
	err := r.view(ctx, func(txn *badger.Txn) error {
		var err error
		room, err = getRoom(txn, id)
		return err
	})
	return room, err
}

// Put replaces the stored document. A room that expired in the meantime
// is not resurrected. When the admin changed, the room-set entry follows.
func (r RoomRepository) Put(ctx context.Context, room domain.Room) error {
	data, err := marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", room.ID, err)
	}
	return r.update(ctx, func(txn *badger.Txn) error {
		previous, err := getRoom(txn, room.ID)
		if err != nil {
			return err
		}
		if previous.AdminID != room.AdminID {
			if err := txn.Delete(userRoomKey(previous.AdminID, room.ID)); err != nil {
				return err
			}
		}
		if err := txn.SetEntry(badger.NewEntry(roomKey(room.ID), data).WithTTL(r.ttl)); err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(userRoomKey(room.AdminID, room.ID), nil).WithTTL(r.ttl))
	})
}

func (r RoomRepository) Delete(ctx context.Context, id domain.RoomID, requesterID string) error {
	return r.update(ctx, func(txn *badger.Txn) error {
		room, err := getRoom(txn, id)
		if err != nil {
			return err
		}
		if !room.IsAdmin(requesterID) {
			return errors.ErrNotAdmin
		}
		if err := txn.Delete(roomKey(id)); err != nil {
			return err
		}
		return txn.Delete(userRoomKey(room.AdminID, id))
	})
}

// UserRoomIDs lists live rooms administered by userID.
func (r RoomRepository) UserRoomIDs(ctx context.Context, userID string) ([]domain.RoomID, error) {
	var ids []domain.RoomID
	prefix := userRoomsPrefix(userID)
	err := r.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := domain.RoomID(strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
			if _, err := txn.Get(roomKey(id)); err != nil {
				if stderrors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

func (r RoomRepository) CountUserRooms(ctx context.Context, userID string) (int, error) {
	ids, err := r.UserRoomIDs(ctx, userID)
	return len(ids), err
}

func getRoom(txn *badger.Txn, id domain.RoomID) (domain.Room, error) {
	var room domain.Room
	item, err := txn.Get(roomKey(id))
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return room, errors.ErrRoomNotFound
		}
		return room, err
	}
	err = item.Value(func(val []byte) error {
		return unmarshal(val, &room)
	})
	if err != nil {
		return room, fmt.Errorf("unmarshal room %s: %w", id, err)
	}
	return room, nil
}

// update runs fn in a read-write transaction that only commits while ctx is alive.
func (r RoomRepository) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := fn(txn); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
		}
		return nil
	})
	return r.classify(err)
}

func (r RoomRepository) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return r.classify(r.db.View(fn))
}

// classify keeps domain errors as they are and turns storage failures into
// retryable ErrStoreUnavailable.
func (r RoomRepository) classify(err error) error {
	if err == nil || errors.KindOf(err) != errors.KindInternal {
		return err
	}
	r.log.Error("Room store failure", "error", err)
	return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
}
