// Package photos persists uploaded match photos and reads them back for scoring.
package photos

import (
	"context"
	"errors"
)

// ErrInvalidRef is returned when a stored reference cannot be resolved by the store.
var ErrInvalidRef = errors.New("invalid photo reference")

// Upload is a validated image received from a client.
type Upload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Store saves photo bytes and returns the reference kept on the match row.
type Store interface {
	Put(ctx context.Context, owner string, photo *Upload) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	// Delete removes a photo no match row refers to.
	Delete(ctx context.Context, ref string) error
}
