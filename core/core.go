package core

import "github.com/google/uuid"

// NewID returns a new unique identifier suitable for requests, sessions and
// collaboration tasks.
func NewID() string {
	return uuid.NewString()
}
