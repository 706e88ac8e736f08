package data

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNoSnapshot is returned when a store holds nothing matching the request.
var ErrNoSnapshot = errors.New("no snapshot")

// ErrCorruptSnapshot is returned when stored bytes fail their digest or cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Store persists snapshots. Put is atomic: a snapshot is either fully stored or absent.
type Store interface {
	Put(ctx context.Context, s *Snapshot) error
	Latest(ctx context.Context) (*Snapshot, error)
	Close() error
}
