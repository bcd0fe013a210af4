package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"planning-poker/domain"
	"planning-poker/infrastructure/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestInspect_Lists_Rooms_And_Users(t *testing.T) {
	req := require.New(t)
	color.Disable()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctx := context.Background()

	// Given one revealed room and one account
	room := domain.NewRoom("r1", "Sprint 1", domain.Profile{UserID: "alice"}, time.Now())
	room.IsRevealed = true
	room.IsVotingOpen = false
	req.NoError(storage.NewRoomRepository(db, log, time.Hour).Create(ctx, room))
	_, err = storage.NewUserRepository(db, log).CreateUser(ctx, storage.User{Email: "alice@example.com", Name: "Alice"})
	req.NoError(err)

	// When the store is scanned
	rooms, err := collectRooms(db)
	req.NoError(err)
	users, err := collectUsers(db)
	req.NoError(err)

	// Then index entries are not mistaken for documents
	req.Len(rooms, 1)
	req.Equal("Sprint 1", rooms[0].Room.Name)
	req.False(rooms[0].ExpiresAt.IsZero())
	req.Len(users, 1)

	var out bytes.Buffer
	renderRooms(&out, rooms)
	req.Contains(out.String(), "Sprint 1")
	req.Contains(out.String(), "revealed")
	req.Contains(out.String(), "0/1")

	out.Reset()
	renderUsers(&out, users)
	req.Contains(out.String(), "alice@example.com")
}
