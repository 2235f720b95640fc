package models

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// ParseRole accepts "patient" or "doctor"; an empty string means patient.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RolePatient:
		return RolePatient, nil
	case RoleDoctor:
		return RoleDoctor, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"passwordHash" json:"-"` // Hide from JSON responses
	Role         Role      `bson:"role" json:"role"`
	Name         string    `bson:"name" json:"name"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// Identity is the role-scoped caller resolved from an access token.
type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) IsPatient() bool { return i.Role == RolePatient }
func (i Identity) IsDoctor() bool  { return i.Role == RoleDoctor }
