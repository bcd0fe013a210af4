// Command inspect prints the rooms and accounts stored in a Badger
// directory. The server may keep running while it reads.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// INSPECT_DB is the Badger directory, BADGER_FILEPATH of the server
	DBPath string `envconfig:"DB" required:"true"`
	// INSPECT_WHAT selects rooms, users or all
	What string `envconfig:"WHAT" default:"all"`
	// INSPECT_COLOURS enables colorized output
	Colours bool `envconfig:"COLOURS" default:"true"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := envconfig.Process("inspect", &cfg); err != nil {
		return err
	}
	if !cfg.Colours {
		color.Disable()
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("error while opening Badger: %w", err)
	}
	defer db.Close()

	what := strings.ToLower(cfg.What)
	if what == "all" || what == "rooms" {
		rows, err := collectRooms(db)
		if err != nil {
			return err
		}
		color.Bold.Printf("Rooms (%d)\n", len(rows))
		renderRooms(os.Stdout, rows)
	}
	if what == "all" || what == "users" {
		rows, err := collectUsers(db)
		if err != nil {
			return err
		}
		color.Bold.Printf("\nAccounts (%d)\n", len(rows))
		renderUsers(os.Stdout, rows)
	}
	return nil
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
