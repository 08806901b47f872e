package domain

import "time"

// User carries the slice of the account record the generation core needs:
// identity and the credit balance. Profile and session data belong to the
// auth collaborator.
type User struct {
	ID        string
	Email     string
	Name      string
	Credits   int
	CreatedAt time.Time
	UpdatedAt time.Time
}
