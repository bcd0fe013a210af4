package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"planning-poker/domain"
	"planning-poker/infrastructure/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

type roomRow struct {
	Room      domain.Room
	ExpiresAt time.Time
}

type userRow struct {
	User storage.User
}

// scan decodes every value under prefix; undecodable values are reported
// and skipped.
func scan[T any](db *badger.DB, prefix string, decode func(key string, val []byte, expiresAt uint64) (T, error)) ([]T, error) {
	var rows []T
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				row, err := decode(key, val, item.ExpiresAt())
				if err != nil {
					color.Warn.Printf("Error decoding key %s: %v\n", key, err)
					return nil
				}
				rows = append(rows, row)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rows, err
}

func collectRooms(db *badger.DB) ([]roomRow, error) {
	return scan(db, storage.RoomPrefix, func(_ string, val []byte, expiresAt uint64) (roomRow, error) {
		room, err := storage.DecodeRoom(val)
		if err != nil {
			return roomRow{}, err
		}
		row := roomRow{Room: room}
		if expiresAt > 0 {
			row.ExpiresAt = time.Unix(int64(expiresAt), 0).UTC()
		}
		return row, nil
	})
}

func collectUsers(db *badger.DB) ([]userRow, error) {
	return scan(db, storage.AccountPrefix, func(_ string, val []byte, _ uint64) (userRow, error) {
		user, err := storage.DecodeUser(val)
		return userRow{User: user}, err
	})
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func renderRooms(w io.Writer, rows []roomRow) {
	table := newTable(w, []string{"ID", "Name", "Admin", "Online", "Issues", "Round", "Created", "Expires"})
	for _, row := range rows {
		r := row.Room
		estimated := lo.CountBy(r.Issues, func(i domain.Issue) bool { return i.FinalEstimate != nil })
		expires := "never"
		if !row.ExpiresAt.IsZero() {
			expires = row.ExpiresAt.Format(time.DateTime)
		}
		table.Append([]string{
			r.ID.String(),
			r.Name,
			r.AdminID,
			fmt.Sprintf("%d/%d", r.ConnectedCount(), len(r.Participants)),
			fmt.Sprintf("%d (%d estimated)", len(r.Issues), estimated),
			roundState(r),
			r.CreatedAt.Format(time.DateTime),
			expires,
		})
	}
	table.Render()
}

func roundState(r domain.Room) string {
	switch {
	case r.IsRevealed:
		return color.Green.Sprint("revealed")
	case len(r.Votes) > 0:
		return color.Yellow.Sprint("voting " + strconv.Itoa(len(r.Votes)))
	default:
		return "open"
	}
}

func renderUsers(w io.Writer, rows []userRow) {
	table := newTable(w, []string{"ID", "Email", "Name", "Created"})
	for _, row := range rows {
		table.Append([]string{row.User.ID, row.User.Email, row.User.Name, row.User.CreatedAt.Format(time.DateTime)})
	}
	table.Render()
}
