package storage

import (
	"planning-poker/domain"

	"github.com/fxamacker/cbor/v2"
)

// Documents are CBOR with field names taken from json tags.
// Time is kept as RFC3339 with nanoseconds so that round trips are exact.
var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// DecodeRoom reads a stored room document.
func DecodeRoom(data []byte) (domain.Room, error) {
	var room domain.Room
	err := unmarshal(data, &room)
	return room, err
}

// DecodeUser reads a stored account document.
func DecodeUser(data []byte) (User, error) {
	var user User
	err := unmarshal(data, &user)
	return user, err
}
