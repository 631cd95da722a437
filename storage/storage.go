// Package storage defines the substrate capability contract that every
// storage backend implements. The rest of the system only ever sees this
// interface, so the physical substrate stays pluggable.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
}
