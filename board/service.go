package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/liveboard/board-sync/store"
)

var (
	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_commits_total",
		Help: "Committed board writes by record kind.",
	}, []string{"kind"})
	collisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "board_revision_collisions_total",
		Help: "Writes rejected because the expected revision was stale.",
	})
)

// ValidationError reports caller input that was rejected before reaching
// the store.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Broadcaster receives the committed bytes of every successful write.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// Commit describes a successful update: the new revision and the envelope
// bytes as committed to the store.
type Commit struct {
	Id       string
	Revision int64
	Data     []byte
}

// Service orchestrates board mutations against the revisioned store and
// fans committed changes out to connected viewers.
type Service struct {
	storage store.BoardStorage
	push    Broadcaster
	log     *slog.Logger
}

func NewService(storage store.BoardStorage, push Broadcaster, log *slog.Logger) *Service {
	return &Service{storage: storage, push: push, log: log}
}

// CreateStory decodes payload as a story, stores it under id at revision 1
// and returns the story as committed. The id must not be in use; a taken id
// surfaces as a *store.RevisionConflictError.
func (s *Service) CreateStory(ctx context.Context, id string, payload []byte) (*Story, error) {
	var story Story
	if err := json.Unmarshal(payload, &story); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("malformed story: %v", err)}
	}
	if len(story.Position) == 0 {
		return nil, &ValidationError{Reason: "position must be specified"}
	}
	if story.Description == "" {
		return nil, &ValidationError{Reason: "description must be specified"}
	}
	if story.ListId == "" {
		return nil, &ValidationError{Reason: "listId must be specified"}
	}

	story.Id = id
	story.Revision = 1
	data, err := Wrap(KindStory, &story)
	if err != nil {
		return nil, err
	}

	if _, err := s.storage.Put(ctx, id, data, 0); err != nil {
		var conflict *store.RevisionConflictError
		if errors.As(err, &conflict) {
			collisionsTotal.Inc()
			s.log.Warn("story id already taken", "id", id, "revision", conflict.Actual)
			return nil, err
		}
		return nil, fmt.Errorf("failed to store story %s: %w", id, err)
	}

	// return the canonical stored form and push those exact bytes
	rec, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read back story %s: %w", id, err)
	}
	_, value, err := Unwrap(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode just saved story %s: %w", id, err)
	}
	stored, ok := value.(*Story)
	if !ok {
		return nil, fmt.Errorf("record %s is not a story", id)
	}

	s.log.Info("created story", "id", id, "revision", rec.Revision)
	commitsTotal.WithLabelValues(KindStory).Inc()
	s.push.Broadcast(rec.Data)
	return stored, nil
}

// Update CAS-writes an already wrapped payload under id. The payload names
// its own kind; id and revision inside it are overwritten with the path
// values before the write. On a revision mismatch nothing is changed and
// the returned *store.RevisionConflictError carries the revision the caller
// must resubmit against.
func (s *Service) Update(ctx context.Context, id string, expectedRevision int64, payload []byte) (*Commit, error) {
	kind, value, err := Unwrap(payload)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	switch v := value.(type) {
	case *Story:
		v.Id = id
		v.Revision = expectedRevision + 1
	case *StoryList:
		v.Id = id
		v.Revision = expectedRevision + 1
	}

	data, err := Wrap(kind, value)
	if err != nil {
		return nil, err
	}

	newRevision, err := s.storage.Put(ctx, id, data, expectedRevision)
	if err != nil {
		var conflict *store.RevisionConflictError
		if errors.As(err, &conflict) {
			collisionsTotal.Inc()
			s.log.Warn("update collision", "id", id, "expected", conflict.Expected, "found", conflict.Actual)
			return nil, err
		}
		return nil, fmt.Errorf("failed to store %s %s: %w", kind, id, err)
	}

	s.log.Info("saved record", "kind", kind, "id", id, "revision", newRevision)
	commitsTotal.WithLabelValues(kind).Inc()
	s.push.Broadcast(data)
	return &Commit{Id: id, Revision: newRevision, Data: data}, nil
}
