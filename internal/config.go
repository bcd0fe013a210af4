// Package internal holds the server configuration.
package internal

import (
	"fmt"
	"time"

	"planning-poker/domain"
)

type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=3001"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	GinMode           string        `env:"GIN_MODE,default=release"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=168h"`
	SecureCookie      bool          `env:"SECURE_COOKIE,default=false"`

	RoomTTL         time.Duration `env:"ROOM_TTL,default=24h"`
	MaxRoomsPerUser int           `env:"MAX_ROOMS_PER_USER,default=3"`
	DefaultJoinRole string        `env:"DEFAULT_JOIN_ROLE,default=player"`

	StoreTimeout         time.Duration `env:"STORE_TIMEOUT,default=2s"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=500ms"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	PingInterval         time.Duration `env:"PING_INTERVAL,default=15s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	BadgerGCInterval     time.Duration `env:"BADGER_GC_INTERVAL,default=10m"`

	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
	CensoredDir     string `env:"CENSORED_DIR"`
}

// Validate checks the values go-env cannot express as tags.
func (c Config) Validate() error {
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must hold at least 16 characters")
	}
	if c.MaxRoomsPerUser < 1 {
		return fmt.Errorf("MAX_ROOMS_PER_USER must be positive, got %d", c.MaxRoomsPerUser)
	}
	if _, err := domain.ParseRole(c.DefaultJoinRole); err != nil {
		return fmt.Errorf("DEFAULT_JOIN_ROLE: %w", err)
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
