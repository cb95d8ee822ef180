package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdoc/internal/blob"
)

func TestBlobs_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	ok, err := s.Exists(ctx, "f1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Read(ctx, "f1")
	assert.ErrorIs(t, err, blob.ErrNotFound)
	assert.ErrorIs(t, s.WriteAtomic(ctx, "f1", []byte("{}")), blob.ErrNotFound)
	assert.ErrorIs(t, s.Touch(ctx, "f1"), blob.ErrNotFound)
	_, err = s.Owner(ctx, "f1")
	assert.ErrorIs(t, err, blob.ErrNotFound)

	require.NoError(t, s.Create(ctx, "f1", "alice", []byte(`{"id":"f1"}`)))
	assert.ErrorIs(t, s.Create(ctx, "f1", "bob", []byte(`{}`)), blob.ErrExists)

	ok, err = s.Exists(ctx, "f1")
	require.NoError(t, err)
	assert.True(t, ok)

	owner, err := s.Owner(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	require.NoError(t, s.WriteAtomic(ctx, "f1", []byte("{\"id\":\"f1\",\"title\":\"\u00dcn\u00efcode\"}")))
	data, err := s.Read(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":\"f1\",\"title\":\"\u00dcn\u00efcode\"}", string(data))

	require.NoError(t, s.Touch(ctx, "f1"))

	require.NoError(t, s.Delete(ctx, "f1"))
	assert.ErrorIs(t, s.Delete(ctx, "f1"), blob.ErrNotFound)
}

func TestBlobs_Touch(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Create(ctx, "f1", "alice", []byte("{}")))
	now = now.Add(time.Minute)
	require.NoError(t, s.Touch(ctx, "f1"))

	var touched, created int64
	require.NoError(t, s.db.QueryRow(`SELECT touched_at, created_at FROM blobs WHERE id = 'f1'`).Scan(&touched, &created))
	assert.Equal(t, time.Minute.Nanoseconds(), touched-created)
}

func TestBlobs_VersionHistory(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithVersionHistory())

	require.NoError(t, s.Create(ctx, "f1", "alice", []byte("v0")))
	require.NoError(t, s.WriteAtomic(ctx, "f1", []byte("v1")))
	require.NoError(t, s.WriteAtomic(ctx, "f1", []byte("v2")))

	versions, err := s.ListVersions(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Less(t, versions[0].Seq, versions[1].Seq)

	var first []byte
	require.NoError(t, s.db.QueryRow(`SELECT data FROM blob_versions WHERE seq = ?`, versions[0].Seq).Scan(&first))
	assert.Equal(t, "v0", string(first))

	n, err := blob.PurgeVersions(ctx, s, "f1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	versions, err = s.ListVersions(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, versions)

	// Deleting the blob cascades to any remaining history.
	require.NoError(t, s.WriteAtomic(ctx, "f1", []byte("v3")))
	require.NoError(t, s.Delete(ctx, "f1"))
	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM blob_versions`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestBlobs_NoHistoryByDefault(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Create(ctx, "f1", "alice", []byte("v0")))
	require.NoError(t, s.WriteAtomic(ctx, "f1", []byte("v1")))

	versions, err := s.ListVersions(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, versions)
}
