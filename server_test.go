package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/liveboard/board-sync/board"
	"github.com/liveboard/board-sync/config"
	"github.com/liveboard/board-sync/push"
	"github.com/liveboard/board-sync/store/memory"
)

func testServer(t *testing.T) (*httptest.Server, *push.Hub) {
	t.Helper()
	config := &config.Config{
		PollTimeoutSeconds: 1,
		SocketSendBuffer:   16,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := push.NewHub(logger)
	service := board.NewService(memory.New(), hub, logger)
	server := httptest.NewServer(CreateServer(config, service, hub))
	t.Cleanup(server.Close)
	return server, hub
}

func do(t *testing.T, method, url string, body []byte) (*http.Response, []byte) {
	t.Helper()
	request, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer response.Body.Close()
	responseBody, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	return response, responseBody
}

func TestBoardLifecycle(t *testing.T) {
	server, _ := testServer(t)

	// a fresh board is empty but well-formed
	response, body := do(t, http.MethodGet, server.URL+"/board", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	require.JSONEq(t, `{"stories":[],"lists":[]}`, string(body))

	// create a story
	response, body = do(t, http.MethodPost, server.URL+"/board/stories/s1",
		[]byte(`{"description":"write spec","listId":"l1","position":"a"}`))
	require.Equal(t, http.StatusCreated, response.StatusCode)
	var created board.Story
	require.NoError(t, json.Unmarshal(body, &created))
	require.Equal(t, "s1", created.Id)
	require.Equal(t, int64(1), created.Revision)
	require.Equal(t, "write spec", created.Description)

	// the board now contains it
	response, body = do(t, http.MethodGet, server.URL+"/board", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	var snapshot board.Board
	require.NoError(t, json.Unmarshal(body, &snapshot))
	require.Len(t, snapshot.Stories, 1)
	require.Empty(t, snapshot.Lists)

	// update at the current revision
	payload := `{"kind":"story","data":{"description":"write spec v2","listId":"l1","position":"a"}}`
	response, body = do(t, http.MethodPut, server.URL+"/board/items/s1/1", []byte(payload))
	require.Equal(t, http.StatusCreated, response.StatusCode)
	_, value, err := board.Unwrap(body)
	require.NoError(t, err)
	updated := value.(*board.Story)
	require.Equal(t, int64(2), updated.Revision)
	require.Equal(t, "write spec v2", updated.Description)

	// a stale writer still declaring revision 1 collides and learns the truth
	response, body = do(t, http.MethodPut, server.URL+"/board/items/s1/1", []byte(payload))
	require.Equal(t, http.StatusConflict, response.StatusCode)
	require.JSONEq(t, `{"id":"s1","yourRevision":1,"foundRevision":2}`, string(body))

	// and the story is unchanged
	response, body = do(t, http.MethodGet, server.URL+"/board", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	require.NoError(t, json.Unmarshal(body, &snapshot))
	require.Len(t, snapshot.Stories, 1)
	require.Equal(t, int64(2), snapshot.Stories[0].Revision)
	require.Equal(t, "write spec v2", snapshot.Stories[0].Description)
}

func TestCreateStoryValidationLeavesNoRecord(t *testing.T) {
	server, _ := testServer(t)

	response, _ := do(t, http.MethodPost, server.URL+"/board/stories/s1",
		[]byte(`{"description":"no position","listId":"l1"}`))
	require.Equal(t, http.StatusBadRequest, response.StatusCode)

	response, body := do(t, http.MethodGet, server.URL+"/board", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	require.JSONEq(t, `{"stories":[],"lists":[]}`, string(body))
}

func TestUpdateRejectsUnknownKind(t *testing.T) {
	server, _ := testServer(t)

	response, _ := do(t, http.MethodPut, server.URL+"/board/items/x1/1",
		[]byte(`{"kind":"widget","data":{}}`))
	require.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestWebsocketReceivesCommittedChanges(t *testing.T) {
	server, hub := testServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/push/ws"
	client, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer client.Close()

	// wait for the server side of the upgrade to register the channel
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	_, _ = do(t, http.MethodPost, server.URL+"/board/stories/s1",
		[]byte(`{"description":"write spec","listId":"l1","position":"a"}`))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := client.ReadMessage()
	require.NoError(t, err)

	kind, value, err := board.Unwrap(message)
	require.NoError(t, err)
	require.Equal(t, board.KindStory, kind)
	require.Equal(t, "write spec", value.(*board.Story).Description)
}

func TestLongPollReceivesCommittedChanges(t *testing.T) {
	server, _ := testServer(t)

	response, body := do(t, http.MethodPost, server.URL+"/push/poll", nil)
	require.Equal(t, http.StatusCreated, response.StatusCode)
	var opened struct {
		Channel string `json:"channel"`
	}
	require.NoError(t, json.Unmarshal(body, &opened))
	require.NotEmpty(t, opened.Channel)
	pollURL := fmt.Sprintf("%s/push/poll/%s", server.URL, opened.Channel)

	// nothing committed yet: the poll completes empty after the timeout
	response, _ = do(t, http.MethodGet, pollURL, nil)
	require.Equal(t, http.StatusNoContent, response.StatusCode)

	// a committed change completes the next poll with the envelope
	_, _ = do(t, http.MethodPost, server.URL+"/board/stories/s1",
		[]byte(`{"description":"write spec","listId":"l1","position":"a"}`))
	response, body = do(t, http.MethodGet, pollURL, nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	kind, _, err := board.Unwrap(body)
	require.NoError(t, err)
	require.Equal(t, board.KindStory, kind)

	// closing the channel invalidates further polls
	response, _ = do(t, http.MethodDelete, pollURL, nil)
	require.Equal(t, http.StatusNoContent, response.StatusCode)
	response, _ = do(t, http.MethodGet, pollURL, nil)
	require.Equal(t, http.StatusNotFound, response.StatusCode)
}

func TestMetricsExposed(t *testing.T) {
	server, _ := testServer(t)

	response, body := do(t, http.MethodGet, server.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, response.StatusCode)
	require.Contains(t, string(body), "push_connected_channels")
}
