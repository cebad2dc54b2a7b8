package board

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Stories and lists share one store, so every stored payload is wrapped in
// an envelope naming its kind.
const (
	KindStory = "story"
	KindList  = "list"
)

// ErrUnknownKind reports an envelope whose kind is missing or not one of
// the known record kinds. Decoding never guesses a type.
var ErrUnknownKind = errors.New("unknown record kind")

type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Wrap encodes value inside a kind-tagged envelope.
func Wrap(kind string, value interface{}) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", kind, err)
	}
	return json.Marshal(envelope{Kind: kind, Data: data})
}

// Unwrap decodes an envelope and returns its kind together with the decoded
// value, a *Story or *StoryList.
func Unwrap(raw []byte) (string, interface{}, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("malformed record envelope: %w", err)
	}
	switch env.Kind {
	case KindStory:
		var story Story
		if err := json.Unmarshal(env.Data, &story); err != nil {
			return "", nil, fmt.Errorf("malformed story record: %w", err)
		}
		return KindStory, &story, nil
	case KindList:
		var list StoryList
		if err := json.Unmarshal(env.Data, &list); err != nil {
			return "", nil, fmt.Errorf("malformed list record: %w", err)
		}
		return KindList, &list, nil
	case "":
		return "", nil, fmt.Errorf("record envelope has no kind: %w", ErrUnknownKind)
	default:
		return "", nil, fmt.Errorf("record envelope kind %q: %w", env.Kind, ErrUnknownKind)
	}
}
