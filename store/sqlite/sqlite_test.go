package sqlite

import (
	"testing"

	"github.com/liveboard/board-sync/store"
	"github.com/stretchr/testify/require"
)

func testStorage(t *testing.T, name string) *SQLiteStorage {
	storage, err := NewSQLiteStorage("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err, "failed to connect")
	return storage
}

func TestCreateRecords(t *testing.T) {
	(&store.StoreTest{}).TestCreateRecords(t, testStorage(t, "testcreaterecords"))
}

func TestUpdateRecords(t *testing.T) {
	(&store.StoreTest{}).TestUpdateRecords(t, testStorage(t, "testupdaterecords"))
}

func TestMonotonicRevisions(t *testing.T) {
	(&store.StoreTest{}).TestMonotonicRevisions(t, testStorage(t, "testmonotonicrevisions"))
}

func TestConflict(t *testing.T) {
	(&store.StoreTest{}).TestConflict(t, testStorage(t, "testconflict"))
}

func TestStaleUpdateConflict(t *testing.T) {
	(&store.StoreTest{}).TestStaleUpdateConflict(t, testStorage(t, "teststaleupdateconflict"))
}

func TestGetMissing(t *testing.T) {
	(&store.StoreTest{}).TestGetMissing(t, testStorage(t, "testgetmissing"))
}

func TestList(t *testing.T) {
	(&store.StoreTest{}).TestList(t, testStorage(t, "testlist"))
}
