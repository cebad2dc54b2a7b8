package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// StoreTest is a conformance suite run by every BoardStorage backend's
// tests. Record ids are randomized so the suite can run against shared
// databases.
type StoreTest struct{}

func (s *StoreTest) TestCreateRecords(t *testing.T, storage BoardStorage) {
	id1 := uuid.New().String()
	id2 := uuid.New().String()

	newRevision, err := storage.Put(context.Background(), id1, []byte("data1"), 0)
	require.NoError(t, err, "failed to put %s", id1)
	require.Equal(t, int64(1), newRevision)

	newRevision, err = storage.Put(context.Background(), id2, []byte("data2"), 0)
	require.NoError(t, err, "failed to put %s", id2)
	require.Equal(t, int64(1), newRevision)

	rec, err := storage.Get(context.Background(), id1)
	require.NoError(t, err, "failed to get %s", id1)
	require.Equal(t, &StoredRecord{Id: id1, Data: []byte("data1"), Revision: 1}, rec)
}

func (s *StoreTest) TestUpdateRecords(t *testing.T, storage BoardStorage) {
	id := uuid.New().String()

	newRevision, err := storage.Put(context.Background(), id, []byte("data1"), 0)
	require.NoError(t, err, "failed to put %s", id)
	require.Equal(t, int64(1), newRevision)

	newRevision, err = storage.Put(context.Background(), id, []byte("data2"), 1)
	require.NoError(t, err, "failed to update %s", id)
	require.Equal(t, int64(2), newRevision)

	rec, err := storage.Get(context.Background(), id)
	require.NoError(t, err, "failed to get %s", id)
	require.Equal(t, &StoredRecord{Id: id, Data: []byte("data2"), Revision: 2}, rec)
}

func (s *StoreTest) TestMonotonicRevisions(t *testing.T, storage BoardStorage) {
	id := uuid.New().String()

	for want := int64(1); want <= 5; want++ {
		newRevision, err := storage.Put(context.Background(), id, []byte("data"), want-1)
		require.NoError(t, err, "failed to put %s at revision %d", id, want-1)
		require.Equal(t, want, newRevision)
	}
}

func (s *StoreTest) TestConflict(t *testing.T, storage BoardStorage) {
	id := uuid.New().String()

	newRevision, err := storage.Put(context.Background(), id, []byte("data1"), 0)
	require.NoError(t, err, "failed to put %s", id)
	require.Equal(t, int64(1), newRevision)

	_, err = storage.Put(context.Background(), id, []byte("data2"), 0)
	var conflict *RevisionConflictError
	require.ErrorAs(t, err, &conflict, "second create of %s should conflict", id)
	require.Equal(t, id, conflict.Id)
	require.Equal(t, int64(0), conflict.Expected)
	require.Equal(t, int64(1), conflict.Actual)

	// the rejected write must not have touched the record
	rec, err := storage.Get(context.Background(), id)
	require.NoError(t, err, "failed to get %s", id)
	require.Equal(t, []byte("data1"), rec.Data)
	require.Equal(t, int64(1), rec.Revision)
}

func (s *StoreTest) TestStaleUpdateConflict(t *testing.T, storage BoardStorage) {
	id := uuid.New().String()

	_, err := storage.Put(context.Background(), id, []byte("v1"), 0)
	require.NoError(t, err)
	_, err = storage.Put(context.Background(), id, []byte("v2"), 1)
	require.NoError(t, err)

	// a writer still holding revision 1 must learn the record moved to 2
	_, err = storage.Put(context.Background(), id, []byte("v3"), 1)
	var conflict *RevisionConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, int64(1), conflict.Expected)
	require.Equal(t, int64(2), conflict.Actual)
}

func (s *StoreTest) TestGetMissing(t *testing.T, storage BoardStorage) {
	_, err := storage.Get(context.Background(), uuid.New().String())
	require.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)
}

func (s *StoreTest) TestList(t *testing.T, storage BoardStorage) {
	id1 := uuid.New().String()
	id2 := uuid.New().String()

	_, err := storage.Put(context.Background(), id1, []byte("data1"), 0)
	require.NoError(t, err)
	_, err = storage.Put(context.Background(), id2, []byte("data2"), 0)
	require.NoError(t, err)
	_, err = storage.Put(context.Background(), id2, []byte("data2b"), 1)
	require.NoError(t, err)

	records, err := storage.List(context.Background())
	require.NoError(t, err, "failed to list records")

	byId := make(map[string]StoredRecord, len(records))
	for _, rec := range records {
		byId[rec.Id] = rec
	}
	require.Equal(t, StoredRecord{Id: id1, Data: []byte("data1"), Revision: 1}, byId[id1])
	require.Equal(t, StoredRecord{Id: id2, Data: []byte("data2b"), Revision: 2}, byId[id2])
}
