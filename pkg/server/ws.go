package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Hua914255/media/pkg/continuation"
	"github.com/Hua914255/media/pkg/story"
)

const (
	writeWait = 10 * time.Second

	// wsQueue bounds the requests read ahead of the one being served.
	wsQueue = 8
)

// wsRequest is one client message on a story socket.
type wsRequest struct {
	UserText string            `json:"user_text"`
	Rounds   int               `json:"rounds"`
	Mode     continuation.Mode `json:"mode"`
}

type wsError struct {
	Error string `json:"error"`
}

type wsInbound struct {
	req wsRequest
	err error
}

// handleWS serves one socket per story. Each request message produces the
// stored human turn followed by the AI turns, one message per turn.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.stories.Turns(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnContext(r.Context(), "server: websocket upgrade failed", "story_id", id, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := s.logger.With("story_id", id, "remote", r.RemoteAddr)
	log.InfoContext(ctx, "server: websocket connected")

	inbox := make(chan wsInbound, wsQueue)
	go readLoop(ctx, cancel, conn, inbox)

	for {
		select {
		case <-ctx.Done():
			log.InfoContext(ctx, "server: websocket closed", "cause", context.Cause(ctx))
			return
		case in := <-inbox:
			if in.err != nil {
				if err := writeWS(conn, wsError{Error: in.err.Error()}); err != nil {
					return
				}
				continue
			}
			if err := s.serveWS(ctx, conn, id, in.req); err != nil {
				log.InfoContext(ctx, "server: websocket write failed", "error", err)
				return
			}
		}
	}
}

// readLoop reads client messages until the connection fails, then cancels
// the session. Reading continues while a request is served so that a
// disconnect cancels the run in flight.
func readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, inbox chan<- wsInbound) {
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in wsInbound
		if err := json.Unmarshal(data, &in.req); err != nil {
			in.err = fmt.Errorf("invalid message: %v", err)
		}
		select {
		case inbox <- in:
		case <-ctx.Done():
			return
		}
	}
}

// serveWS handles one request. Request and store problems are reported to
// the client; the returned error means the connection is unusable.
func (s *Server) serveWS(ctx context.Context, conn *websocket.Conn, id string, m wsRequest) error {
	req := continuation.Request{
		StoryID:  id,
		UserText: m.UserText,
		Rounds:   m.Rounds,
		Mode:     m.Mode,
	}
	if req.Rounds == 0 {
		req.Rounds = 1
	}

	var sendErr error
	res, err := s.Stream(ctx, req, func(t story.Turn) error {
		sendErr = writeWS(conn, t)
		return sendErr
	})
	switch {
	case sendErr != nil:
		return sendErr
	case errors.Is(err, errBadRequest), errors.Is(err, continuation.ErrInvalidRequest):
		return writeWS(conn, wsError{Error: strings.TrimPrefix(err.Error(), errBadRequest.Error()+": ")})
	case err != nil:
		return s.reportWS(ctx, conn, id, err)
	}
	s.logger.DebugContext(ctx, "server: websocket request done",
		"story_id", id, "state", res.State, "turns", len(res.Turns))
	return nil
}

func (s *Server) reportWS(ctx context.Context, conn *websocket.Conn, id string, err error) error {
	msg := "internal error"
	if errors.Is(err, story.ErrNotFound) {
		msg = "story not found"
	} else {
		s.logger.ErrorContext(ctx, "server: websocket request failed", "story_id", id, "error", err)
	}
	return writeWS(conn, wsError{Error: msg})
}

func writeWS(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
