// Package blob defines the storage the document store sits on: an
// id-addressed byte store with atomic overwrite, plus the optional version
// history some backends keep.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned for ids with no blob.
var ErrNotFound = errors.New("blob not found")

// ErrExists is returned by Create when the id is taken.
var ErrExists = errors.New("blob already exists")

// Store is an id-addressed blob store.
//
// Read returns the current bytes without recording an access or creating a
// history entry. WriteAtomic replaces the bytes in one step: concurrent
// readers see either the old or the new content.
type Store interface {
	Read(ctx context.Context, id string) ([]byte, error)
	WriteAtomic(ctx context.Context, id string, data []byte) error
	Touch(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, id, owner string, data []byte) error
	Delete(ctx context.Context, id string) error
	Owner(ctx context.Context, id string) (string, error)
}

// Version is one history entry kept by a versioning backend.
type Version struct {
	BlobID string
	Seq    int64
}

// VersionPurger is implemented by backends that keep a copy of the previous
// content on every write. Purging is best effort.
type VersionPurger interface {
	ListVersions(ctx context.Context, id string) ([]Version, error)
	DeleteVersion(ctx context.Context, v Version) error
}

// PurgeVersions deletes every history entry of id and returns how many were
// removed. It stops at the first error.
func PurgeVersions(ctx context.Context, p VersionPurger, id string) (int, error) {
	versions, err := p.ListVersions(ctx, id)
	if err != nil {
		return 0, err
	}
	for i, v := range versions {
		if err := p.DeleteVersion(ctx, v); err != nil {
			return i, err
		}
	}
	return len(versions), nil
}
