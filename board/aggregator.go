package board

import (
	"context"
	"fmt"
)

// Snapshot scans the whole store and partitions the live records into the
// board envelope. A record that fails to decode is logged and skipped: one
// corrupt record must not make the board unreadable.
func (s *Service) Snapshot(ctx context.Context) (*Board, error) {
	records, err := s.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}

	board := &Board{Stories: []*Story{}, Lists: []*StoryList{}}
	for _, rec := range records {
		_, value, err := Unwrap(rec.Data)
		if err != nil {
			s.log.Warn("skipping undecodable record", "id", rec.Id, "err", err)
			continue
		}
		switch v := value.(type) {
		case *Story:
			v.Id = rec.Id
			v.Revision = rec.Revision
			board.Stories = append(board.Stories, v)
		case *StoryList:
			v.Id = rec.Id
			v.Revision = rec.Revision
			board.Lists = append(board.Lists, v)
		}
	}
	return board, nil
}
