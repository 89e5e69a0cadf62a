package domain

import (
	"strings"
	"time"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleConsumer Role = "consumer"
	RoleCreator  Role = "creator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleConsumer || r == RoleCreator
}

// User represents an account in the catalog. Users are created once at signup
// and never mutated afterwards.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`    // Stored lower-cased, unique
	PasswordHash string    `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role      `bson:"role" json:"role"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// NormalizeEmail returns the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
