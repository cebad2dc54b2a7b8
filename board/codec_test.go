package board

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoryRoundTrip(t *testing.T) {
	story := &Story{
		Id:          "s1",
		Revision:    3,
		Description: "write spec",
		ListId:      "l1",
		Position:    json.RawMessage(`"a"`),
	}

	raw, err := Wrap(KindStory, story)
	require.NoError(t, err)

	kind, value, err := Unwrap(raw)
	require.NoError(t, err)
	require.Equal(t, KindStory, kind)
	require.Equal(t, story, value)
}

func TestListRoundTrip(t *testing.T) {
	list := &StoryList{
		Id:       "l1",
		Revision: 1,
		Name:     "todo",
		Position: json.RawMessage(`{"rank":12}`),
	}

	raw, err := Wrap(KindList, list)
	require.NoError(t, err)

	kind, value, err := Unwrap(raw)
	require.NoError(t, err)
	require.Equal(t, KindList, kind)
	require.Equal(t, list, value)
}

func TestUnwrapRejectsUnknownKind(t *testing.T) {
	_, _, err := Unwrap([]byte(`{"kind":"widget","data":{}}`))
	require.True(t, errors.Is(err, ErrUnknownKind), "got %v", err)
}

func TestUnwrapRejectsMissingKind(t *testing.T) {
	_, _, err := Unwrap([]byte(`{"data":{"description":"x"}}`))
	require.True(t, errors.Is(err, ErrUnknownKind), "got %v", err)
}

func TestUnwrapRejectsMalformedEnvelope(t *testing.T) {
	_, _, err := Unwrap([]byte(`not json at all`))
	require.Error(t, err)

	_, _, err = Unwrap([]byte(`{"kind":"story","data":[1,2,3]}`))
	require.Error(t, err)
}
