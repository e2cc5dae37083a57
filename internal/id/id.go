package id

import "github.com/google/uuid"

// New returns a random invocation id.
func New() string {
	return uuid.NewString()
}
