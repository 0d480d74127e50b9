package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/audarr/internal/transcode"
)

// SessionsHandler exposes the live transcode sessions.
type SessionsHandler struct {
	registry *transcode.Registry
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(registry *transcode.Registry) *SessionsHandler {
	return &SessionsHandler{registry: registry}
}

// Register registers the session routes with the API.
func (h *SessionsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listSessions",
		Method:      "GET",
		Path:        "/api/v1/sessions",
		Summary:     "List transcode sessions",
		Description: "Returns all live transcode sessions with produced/estimated bytes, attached client count, and encoder resource usage",
		Tags:        []string{"Sessions"},
	}, h.List)
}

// ListSessionsInput is the input for listing sessions.
type ListSessionsInput struct{}

// ListSessionsOutput is the output for listing sessions.
type ListSessionsOutput struct {
	Body struct {
		Sessions []transcode.SessionStats `json:"sessions"`
		Count    int                      `json:"count"`
	}
}

// List returns a snapshot of every live session.
func (h *SessionsHandler) List(ctx context.Context, input *ListSessionsInput) (*ListSessionsOutput, error) {
	sessions := h.registry.Sessions()

	resp := &ListSessionsOutput{}
	resp.Body.Sessions = make([]transcode.SessionStats, 0, len(sessions))
	for _, s := range sessions {
		resp.Body.Sessions = append(resp.Body.Sessions, s.Stats())
	}
	resp.Body.Count = len(resp.Body.Sessions)

	return resp, nil
}
