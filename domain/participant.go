// Package domain contains core concepts of the planning poker system.
// This file defines Participant entities and their roles.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"planning-poker/errors"
)

// Role is a closed set; behavior per role lives in explicit guards.
type Role string

const (
	RoleAdmin     Role = "admin"
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePlayer, RoleSpectator:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.Valid() {
		return "", errors.ErrInvalidRole
	}
	return role, nil
}

// Participant is one user's presence within one room.
// Records are never deleted, only marked disconnected.
type Participant struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Role        Role   `json:"role"`
	HasVoted    bool   `json:"hasVoted"`
	IsConnected bool   `json:"isConnected"`
}
