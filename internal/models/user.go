package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID                       int32
	Username                 string
	Email                    string
	PasswordHash             string
	Role                     Role
	CanTransfer              bool
	CanLocalTransfer         bool
	CanInternationalTransfer bool
	CreatedAt                time.Time
}

// DefaultCurrency is seeded with a zero balance on registration.
const DefaultCurrency = "USD"
