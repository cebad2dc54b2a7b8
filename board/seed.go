package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/liveboard/board-sync/store"
)

var defaultLists = []StoryList{
	{Id: "list-todo", Name: "todo", Position: json.RawMessage(`1`)},
	{Id: "list-doing", Name: "doing", Position: json.RawMessage(`2`)},
	{Id: "list-done", Name: "done", Position: json.RawMessage(`3`)},
}

// EnsureDefaultLists seeds the starter columns into an empty store so a
// fresh board is usable. A store with any record at all is left alone.
func (s *Service) EnsureDefaultLists(ctx context.Context) error {
	records, err := s.storage.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan records: %w", err)
	}
	if len(records) > 0 {
		return nil
	}

	for _, list := range defaultLists {
		list.Revision = 1
		data, err := Wrap(KindList, &list)
		if err != nil {
			return err
		}
		if _, err := s.storage.Put(ctx, list.Id, data, 0); err != nil {
			// another instance racing the same seed is fine
			var conflict *store.RevisionConflictError
			if errors.As(err, &conflict) {
				continue
			}
			return fmt.Errorf("failed to seed list %s: %w", list.Id, err)
		}
		s.log.Info("seeded default list", "id", list.Id, "name", list.Name)
	}
	return nil
}
