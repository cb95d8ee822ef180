package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/formdoc/internal/blob"
)

var (
	_ blob.Store         = (*Store)(nil)
	_ blob.VersionPurger = (*Store)(nil)
)

// Read returns the current content of a blob.
func (s *Store) Read(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read blob %s: %w", id, blob.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	return data, nil
}

// WriteAtomic replaces the content of a blob in a single transaction. With
// version history enabled the previous content is copied to blob_versions
// first.
func (s *Store) WriteAtomic(ctx context.Context, id string, data []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write blob %s: %w", id, err)
	}
	defer tx.Rollback()

	now := s.now().UnixNano()
	if s.versioning {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO blob_versions (blob_id, data, created_at)
			SELECT id, data, ? FROM blobs WHERE id = ?
		`, now, id)
		if err != nil {
			return fmt.Errorf("write blob %s: save version: %w", id, err)
		}
	}

	res, err := tx.ExecContext(ctx, `UPDATE blobs SET data = ?, updated_at = ? WHERE id = ?`, data, now, id)
	if err != nil {
		return fmt.Errorf("write blob %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("write blob %s: %w", id, err)
	} else if n == 0 {
		return fmt.Errorf("write blob %s: %w", id, blob.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write blob %s: commit: %w", id, err)
	}
	return nil
}

// Touch bumps the change-detection timestamp of a blob.
func (s *Store) Touch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE blobs SET touched_at = ? WHERE id = ?`, s.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("touch blob %s: %w", id, err)
	}
	return requireRow(res, "touch", id)
}

// Exists reports whether a blob with the given id exists.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM blobs WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists blob %s: %w", id, err)
	}
	return true, nil
}

// Create inserts a new blob. It fails with blob.ErrExists if the id is taken.
func (s *Store) Create(ctx context.Context, id, owner string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	now := s.now().UnixNano()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (id, owner, data, created_at, updated_at, touched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, owner, data, now, now, now)
	if err != nil {
		return fmt.Errorf("create blob %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create blob %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("create blob %s: %w", id, blob.ErrExists)
	}
	return nil
}

// Delete removes a blob and, through the foreign key, its versions.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	return requireRow(res, "delete", id)
}

// Owner returns the identity that created a blob.
func (s *Store) Owner(ctx context.Context, id string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner FROM blobs WHERE id = ?`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("owner of blob %s: %w", id, blob.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("owner of blob %s: %w", id, err)
	}
	return owner, nil
}

// ListVersions returns the history rows of a blob, oldest first.
func (s *Store) ListVersions(ctx context.Context, id string) ([]blob.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq FROM blob_versions WHERE blob_id = ? ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", id, err)
	}
	defer rows.Close()

	var out []blob.Version
	for rows.Next() {
		v := blob.Version{BlobID: id}
		if err := rows.Scan(&v.Seq); err != nil {
			return nil, fmt.Errorf("list versions of %s: %w", id, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", id, err)
	}
	return out, nil
}

// DeleteVersion removes one history row. Missing rows are not an error.
func (s *Store) DeleteVersion(ctx context.Context, v blob.Version) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blob_versions WHERE blob_id = ? AND seq = ?`, v.BlobID, v.Seq)
	if err != nil {
		return fmt.Errorf("delete version %s/%d: %w", v.BlobID, v.Seq, err)
	}
	return nil
}

func requireRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s blob %s: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s blob %s: %w", op, id, blob.ErrNotFound)
	}
	return nil
}
