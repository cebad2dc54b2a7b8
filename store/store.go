package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get for an id with no committed record.
var ErrNotFound = errors.New("record not found")

// RevisionConflictError reports a rejected compare-and-swap write: the
// caller expected one revision, the store holds another. Actual is 0 when
// the record does not exist yet.
type RevisionConflictError struct {
	Id       string
	Expected int64
	Actual   int64
}

func (e *RevisionConflictError) Error() string {
	return fmt.Sprintf("revision conflict on %s: expected %d, found %d", e.Id, e.Expected, e.Actual)
}

type StoredRecord struct {
	Id       string
	Data     []byte
	Revision int64
}

// BoardStorage is the revisioned key-value store behind the board. Every
// record carries a revision starting at 1 on first write and incremented by
// exactly 1 on each successful write; revision 0 means "does not exist yet"
// and is the expected revision a creating Put must declare.
//
// Implementations must serialize the check-and-write per id, must be safe
// for concurrent callers, and must never partially apply a rejected write.
type BoardStorage interface {
	// Put writes data under id iff the stored revision equals
	// expectedRevision, and returns the new revision. A mismatch returns a
	// *RevisionConflictError carrying the actual stored revision.
	Put(ctx context.Context, id string, data []byte, expectedRevision int64) (int64, error)

	// Get returns the current record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*StoredRecord, error)

	// List returns a point-in-time scan of all records. It need not be
	// atomic with concurrent writers, but never yields a half-written
	// payload.
	List(ctx context.Context) ([]StoredRecord, error)
}
