package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Hua914255/media/pkg/continuation"
	"github.com/Hua914255/media/pkg/story"
)

var errBadRequest = errors.New("bad request")

type createResponse struct {
	StoryID string `json:"story_id"`
}

type storyResponse struct {
	StoryID string       `json:"story_id"`
	Turns   []story.Turn `json:"turns"`
}

type continueResponse struct {
	StoryID  string             `json:"story_id"`
	NewTurns []story.Turn       `json:"new_turns"`
	State    continuation.State `json:"state"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, err := s.stories.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createResponse{StoryID: id})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	turns, err := s.stories.Turns(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, storyResponse{StoryID: id, Turns: turns})
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	req := continuation.Request{Rounds: 1}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: decode body: %v", errBadRequest, err))
		return
	}
	saved, state, err := s.Continue(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, continueResponse{
		StoryID:  req.StoryID,
		NewTurns: saved,
		State:    state,
	})
}

// Continue stores the human turn of req followed by its batch continuation
// and returns the stored turns.
func (s *Server) Continue(ctx context.Context, req continuation.Request) ([]story.Turn, continuation.State, error) {
	if err := normalize(&req); err != nil {
		return nil, 0, err
	}
	history, err := s.stories.Turns(ctx, req.StoryID)
	if err != nil {
		return nil, 0, err
	}
	res, err := s.controller(history).Continue(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	turns := append([]story.Turn{{Author: story.AuthorHuman, Text: req.UserText}}, res.Turns...)
	saved, err := s.save(ctx, req.StoryID, turns...)
	if err != nil {
		return nil, 0, err
	}
	return saved, res.State, nil
}

// Stream stores the human turn of req and passes it to emit, then stores
// and emits each AI turn as soon as it completes. An error from emit stops
// the run and is returned as is. The turns of the returned result are not
// numbered.
func (s *Server) Stream(ctx context.Context, req continuation.Request, emit func(story.Turn) error) (continuation.Result, error) {
	if err := normalize(&req); err != nil {
		return continuation.Result{}, err
	}
	history, err := s.stories.Turns(ctx, req.StoryID)
	if err != nil {
		return continuation.Result{}, err
	}
	human, err := s.save(ctx, req.StoryID, story.Turn{Author: story.AuthorHuman, Text: req.UserText})
	if err != nil {
		return continuation.Result{}, err
	}
	if err := emit(human[0]); err != nil {
		return continuation.Result{}, err
	}

	var stepErr error
	res, err := s.controller(history).StreamTo(ctx, req, func(t story.Turn) bool {
		saved, err := s.save(ctx, req.StoryID, t)
		if err == nil {
			err = emit(saved[0])
		}
		stepErr = err
		return err == nil
	})
	if stepErr != nil {
		return res, stepErr
	}
	return res, err
}

// normalize trims the user text and validates req.
func normalize(req *continuation.Request) error {
	req.UserText = strings.TrimSpace(req.UserText)
	if req.StoryID == "" {
		return fmt.Errorf("%w: story_id is required", errBadRequest)
	}
	if req.UserText == "" {
		return fmt.Errorf("%w: user_text is required", errBadRequest)
	}
	return req.Validate()
}
