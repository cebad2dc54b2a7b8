package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/liveboard/board-sync/board"
	"github.com/liveboard/board-sync/config"
	"github.com/liveboard/board-sync/push"
	"github.com/liveboard/board-sync/store"
)

const maxPayloadBytes = 1 << 20

// boardServer is the HTTP face of the core: parse, call, serialize. All
// board semantics live in the board and push packages.
type boardServer struct {
	config   *config.Config
	service  *board.Service
	hub      *push.Hub
	upgrader websocket.Upgrader
}

func CreateServer(config *config.Config, service *board.Service, hub *push.Hub) http.Handler {
	s := &boardServer{
		config:  config,
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			slog.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})

	r.Methods(http.MethodGet).Path("/board").HandlerFunc(s.getBoard)
	r.Methods(http.MethodPost).Path("/board/stories/{id}").HandlerFunc(s.createStory)
	r.Methods(http.MethodPut).Path("/board/items/{id}/{revision}").HandlerFunc(s.updateItem)
	r.Methods(http.MethodGet).Path("/push/ws").HandlerFunc(s.socket)
	r.Methods(http.MethodPost).Path("/push/poll").HandlerFunc(s.openPoll)
	r.Methods(http.MethodGet).Path("/push/poll/{channel}").HandlerFunc(s.awaitPoll)
	r.Methods(http.MethodDelete).Path("/push/poll/{channel}").HandlerFunc(s.closePoll)
	r.Path("/metrics").Handler(promhttp.Handler())

	return cors.Default().Handler(r)
}

func (s *boardServer) getBoard(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.service.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *boardServer) createStory(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	story, err := s.service.CreateStory(r.Context(), mux.Vars(r)["id"], payload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, story)
}

func (s *boardServer) updateItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	revision, err := strconv.ParseInt(vars["revision"], 10, 64)
	if err != nil || revision < 1 {
		http.Error(w, "revision must be a positive integer", http.StatusBadRequest)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	commit, err := s.service.Update(r.Context(), vars["id"], revision, payload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(commit.Data)
}

// socket upgrades the request and keeps the viewer registered until the
// client goes away, which surfaces as a read error.
func (s *boardServer) socket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade", "err", err)
		return
	}

	channel := push.NewSocketChannel(conn, s.config.SocketSendBuffer)
	s.hub.Register(channel)
	defer s.hub.Unregister(channel)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *boardServer) openPoll(w http.ResponseWriter, r *http.Request) {
	channel := push.NewLongPollChannel()
	s.hub.Register(channel)
	s.writeJSON(w, http.StatusCreated, map[string]string{"channel": channel.ID()})
}

func (s *boardServer) awaitPoll(w http.ResponseWriter, r *http.Request) {
	channel, ok := s.hub.Lookup(mux.Vars(r)["channel"])
	if !ok {
		http.Error(w, "unknown poll channel", http.StatusNotFound)
		return
	}
	poll, ok := channel.(*push.LongPollChannel)
	if !ok {
		http.Error(w, "not a poll channel", http.StatusBadRequest)
		return
	}

	payload, err := poll.AwaitNext(r.Context(), s.config.PollTimeout())
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
	case errors.Is(err, push.ErrAwaitTimeout):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, push.ErrChannelClosed):
		http.Error(w, "poll channel closed", http.StatusGone)
	default:
		// client abandoned the poll; it will reconnect or be unregistered
		s.hub.Unregister(poll)
	}
}

func (s *boardServer) closePoll(w http.ResponseWriter, r *http.Request) {
	channel, ok := s.hub.Lookup(mux.Vars(r)["channel"])
	if !ok {
		http.Error(w, "unknown poll channel", http.StatusNotFound)
		return
	}
	s.hub.Unregister(channel)
	w.WriteHeader(http.StatusNoContent)
}

func (s *boardServer) writeJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		slog.Error("failed to write response", "err", err)
	}
}

func (s *boardServer) writeError(w http.ResponseWriter, err error) {
	var validation *board.ValidationError
	var conflict *store.RevisionConflictError
	switch {
	case errors.As(err, &validation):
		http.Error(w, validation.Reason, http.StatusBadRequest)
	case errors.As(err, &conflict):
		s.writeJSON(w, http.StatusConflict, map[string]interface{}{
			"id":            conflict.Id,
			"yourRevision":  conflict.Expected,
			"foundRevision": conflict.Actual,
		})
	default:
		slog.Error("request failed", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
