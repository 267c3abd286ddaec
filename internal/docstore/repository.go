// Package docstore persists a whole collection of records as one JSON
// document and reads it back. Every save replaces the document wholesale.
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrCorrupt is returned by Load when the stored document is not a JSON
	// array of records.
	ErrCorrupt = errors.New("corrupt store document")
	// ErrIO wraps read and write failures other than absence of the document.
	ErrIO = errors.New("store io failure")
)

// Repository maps an ordered collection of records to a single document.
//
// Load reports found == false with an empty slice when the document does
// not exist yet. That is the first-run signal, not an error.
type Repository[T any] interface {
	Load(ctx context.Context) (records []T, found bool, err error)
	Save(ctx context.Context, records []T) error
	Ping(ctx context.Context) error
}
