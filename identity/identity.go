// Package identity holds the random UUID that identifies this monitor process to editors.
package identity

import (
	"sync"

	"github.com/google/uuid"
)

var (
	processID uuid.UUID
	once      sync.Once
)

// Get returns the process identity, generating it on first use.
// The value never changes for the lifetime of the process.
func Get() uuid.UUID {
	once.Do(func() {
		processID = uuid.New()
	})

	return processID
}
