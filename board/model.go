// Package board implements the task-board core: the typed record envelope
// shared by all stored records, the create/update service that drives the
// revisioned store, and the snapshot aggregator that reconstructs the whole
// board from a store scan.
package board

import "encoding/json"

// Story is one card on the board. Position is an opaque ordering token
// chosen by clients; the server round-trips it without interpreting it.
type Story struct {
	Id          string          `json:"id"`
	Revision    int64           `json:"revision"`
	Description string          `json:"description"`
	ListId      string          `json:"listId"`
	Position    json.RawMessage `json:"position,omitempty"`
}

// StoryList is one column stories belong to. A story's ListId is not
// checked against existing lists; dangling references are tolerated.
type StoryList struct {
	Id       string          `json:"id"`
	Revision int64           `json:"revision"`
	Name     string          `json:"name"`
	Position json.RawMessage `json:"position,omitempty"`
}

// Board is the snapshot envelope returned for whole-board reads. It is
// reconstructed on demand, never stored.
type Board struct {
	Stories []*Story     `json:"stories"`
	Lists   []*StoryList `json:"lists"`
}
