package domain

import "time"

// User is the domain model for platform accounts.
type User struct {
	ID        string
	Name      string
	Email     string
	Birthdate *time.Time

	// Extra holds loosely structured account data, e.g. the parent email
	// recorded when a minor's birthdate was permitted.
	Extra map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExtraKeyParentEmail is the Extra key carrying a verified parent email.
const ExtraKeyParentEmail = "parent_email"
