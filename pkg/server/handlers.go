package server

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/permissions/pkg/commands"
	"github.com/platinummonkey/permissions/pkg/httputil"
	"github.com/platinummonkey/permissions/pkg/observability"
	"github.com/platinummonkey/permissions/pkg/presence"
	"github.com/platinummonkey/permissions/pkg/resync"
)

// CommandRequest is the body of /v1/console and /v1/chat
type CommandRequest struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// CommandResponse lists the messages a command delivered
type CommandResponse struct {
	Messages []commands.Message `json:"messages"`
	Error    string             `json:"error,omitempty"`
}

// RosterRequest is the body of PUT /v1/tribes/{id}/roster
type RosterRequest struct {
	Members []int64 `json:"members"`
}

// rcon handles POST /v1/rcon
func (s *Server) rcon(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadText(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteText(w, http.StatusOK, s.dispatcher.ExecuteRcon(r.Context(), body))
}

// console handles POST /v1/console
func (s *Server) console(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Sender, "sender") {
		return
	}

	ctx := observability.WithIdentity(r.Context(), req.Sender)
	out := commands.NewRecordingMessenger()
	err := s.dispatcher.ExecuteConsole(ctx, out, req.Sender, req.Message)
	writeCommandResponse(w, out, err)
}

// chat handles POST /v1/chat. Messages that are not chat commands are ignored.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Sender, "sender") {
		return
	}

	ctx := observability.WithIdentity(r.Context(), req.Sender)
	out := commands.NewRecordingMessenger()
	err := s.dispatcher.ExecuteChat(ctx, out, req.Sender, req.Message)
	if err != nil && !errors.Is(err, commands.ErrUnknownCommand) {
		observability.FromContext(observability.WithLogger(ctx, s.logger)).WithError(err).Error("chat command failed")
		httputil.WriteInternalError(w, err)
		return
	}
	writeCommandResponse(w, out, nil)
}

func writeCommandResponse(w http.ResponseWriter, out *commands.RecordingMessenger, err error) {
	resp := CommandResponse{Messages: out.Messages()}
	if resp.Messages == nil {
		resp.Messages = []commands.Message{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	httputil.WriteSuccess(w, resp)
}

// listSessions handles GET /v1/sessions
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.tracker.Sessions())
}

// joinSession handles POST /v1/sessions
func (s *Server) joinSession(w http.ResponseWriter, r *http.Request) {
	var session presence.Session
	if !httputil.ParseJSONOrError(w, r, &session) {
		return
	}

	if err := s.tracker.Join(r.Context(), session); err != nil {
		if errors.Is(err, presence.ErrEmptyIdentity) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, session)
}

// leaveSession handles DELETE /v1/sessions/{identity}
func (s *Server) leaveSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := httputil.ParsePathStringOrError(w, r, "identity")
	if !ok {
		return
	}
	if !s.tracker.Leave(identity) {
		httputil.WriteNotFoundError(w, "session not found: "+identity)
		return
	}
	httputil.WriteNoContent(w)
}

// setRoster handles PUT /v1/tribes/{id}/roster
func (s *Server) setRoster(w http.ResponseWriter, r *http.Request) {
	tribeID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if tribeID <= 0 {
		httputil.WriteBadRequest(w, "tribe id must be positive")
		return
	}

	var req RosterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	s.tracker.SetTribeRoster(tribeID, req.Members)
	httputil.WriteNoContent(w)
}

// cacheStats handles GET /v1/cache/stats
func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.stats.Stats())
}

// resyncStatus handles GET /v1/resync
func (s *Server) resyncStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.resync.Status())
}

// resyncNow handles POST /v1/resync
func (s *Server) resyncNow(w http.ResponseWriter, r *http.Request) {
	err := s.resync.SyncNow(r.Context())
	switch {
	case errors.Is(err, resync.ErrInProgress):
		httputil.WriteError(w, http.StatusConflict, err)
	case err != nil:
		s.logger.WithError(err).Error("Manual resync failed")
		httputil.WriteInternalError(w, err)
	default:
		httputil.WriteSuccess(w, s.resync.Status())
	}
}
