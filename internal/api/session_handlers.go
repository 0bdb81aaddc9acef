package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BTreeMap/TastingFlow/internal/flow"
	"github.com/BTreeMap/TastingFlow/internal/models"
	"github.com/BTreeMap/TastingFlow/internal/util"
)

// cursorRequest is the body of PUT /sessions/{id}/cursor.
type cursorRequest struct {
	Index int `json:"index"`
}

// responseRequest is the body of PUT /sessions/{id}/responses/{stepID}.
type responseRequest struct {
	Values []string `json:"values"`
}

// packageRequest is the body of PUT /sessions/{id}/package.
type packageRequest struct {
	PackageID int64 `json:"package_id"`
}

// createSessionHandler handles POST /sessions: it signs a participant in, resolves the tasting
// from its join code and builds the step sequence for the tasting's package.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.createSessionHandler: processing request", "path", r.URL.Path)
	var req models.SignInRequest
	if !decodeJSON(w, r, "createSessionHandler", &req) {
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createSessionHandler: sign-in rejected", "error", err)
		var fe *models.FieldError
		if errors.As(err, &fe) {
			writeJSONResponse(w, http.StatusBadRequest, models.FieldErrorResponse(fe))
			return
		}
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctx := r.Context()
	code := util.NormalizeJoinCode(req.SessionCode)
	tasting, err := s.st.GetTastingByCode(ctx, code)
	if err != nil {
		slog.Error("Server.createSessionHandler: tasting lookup failed", "error", err, "code", code)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up tasting"))
		return
	}
	if tasting == nil {
		slog.Warn("Server.createSessionHandler: unknown join code", "code", code)
		writeFieldError(w, http.StatusNotFound, "session_code", ErrUnknownTastingCode)
		return
	}

	sess := s.sessions.Create(req.Participant(), tasting.Code)
	if _, err := sess.LoadPackage(ctx, s.loader, tasting.PackageID); err != nil {
		slog.Error("Server.createSessionHandler: failed to load package", "error", err, "sessionID", sess.ID())
		s.sessions.Remove(sess.ID())
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to prepare tasting"))
		return
	}
	view := sess.View(true)
	slog.Info("Server.createSessionHandler: session started", "sessionID", view.ID, "code", code, "fallback", view.Fallback)
	writeJSONResponse(w, http.StatusCreated, models.Success(view))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.View(true)))
}

// advanceHandler handles POST /sessions/{id}/advance. Reaching the thanks step submits the
// answers, so the submission runs detached from the request's cancellation.
func (s *Server) advanceHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	if err := sess.Advance(context.WithoutCancel(r.Context())); err != nil {
		writeSessionError(w, "advanceHandler", sess.ID(), err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.View(false)))
}

func (s *Server) retreatHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.Retreat()
	writeJSONResponse(w, http.StatusOK, models.Success(sess.View(false)))
}

func (s *Server) cursorHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req cursorRequest
	if !decodeJSON(w, r, "cursorHandler", &req) {
		return
	}
	if err := sess.JumpTo(context.WithoutCancel(r.Context()), req.Index); err != nil {
		writeSessionError(w, "cursorHandler", sess.ID(), err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.View(false)))
}

func (s *Server) answersHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	ordinal, err := strconv.Atoi(r.PathValue("ordinal"))
	if err != nil || ordinal < 1 {
		slog.Warn("Server.answersHandler: invalid bottle ordinal", "ordinal", r.PathValue("ordinal"))
		writeFieldError(w, http.StatusBadRequest, "ordinal", errors.New("bottle ordinal must be a positive integer"))
		return
	}
	var patch models.AnswerPatch
	if !decodeJSON(w, r, "answersHandler", &patch) {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.ApplyAnswers(ordinal, patch)))
}

func (s *Server) responseHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	stepID, err := strconv.Atoi(r.PathValue("stepID"))
	if err != nil {
		writeFieldError(w, http.StatusBadRequest, "step_id", errors.New("step id must be an integer"))
		return
	}
	var req responseRequest
	if !decodeJSON(w, r, "responseHandler", &req) {
		return
	}
	if err := sess.SetResponse(stepID, req.Values); err != nil {
		writeSessionError(w, "responseHandler", sess.ID(), err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(req.Values))
}

// packageHandler handles PUT /sessions/{id}/package. Answers start over for the new package.
func (s *Server) packageHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req packageRequest
	if !decodeJSON(w, r, "packageHandler", &req) {
		return
	}
	if req.PackageID <= 0 {
		writeFieldError(w, http.StatusBadRequest, "package_id", models.ErrMissingPackageID)
		return
	}
	committed, err := sess.LoadPackage(r.Context(), s.loader, req.PackageID)
	if err != nil {
		writeSessionError(w, "packageHandler", sess.ID(), err)
		return
	}
	if !committed {
		writeJSONResponse(w, http.StatusAccepted, models.SuccessWithMessage("A newer package request replaced this one", sess.View(false)))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.View(true)))
}

// lookupSession resolves the {id} path value, answering 404 itself when it is unknown.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*flow.Session, bool) {
	id := r.PathValue("id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		slog.Warn("Server.lookupSession: session not found", "sessionID", id, "path", r.URL.Path)
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
		return nil, false
	}
	return sess, true
}

// writeSessionError maps flow errors to HTTP statuses.
func writeSessionError(w http.ResponseWriter, handler, sessionID string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, flow.ErrStepsLoading), errors.Is(err, flow.ErrAlreadySubmitted):
		status = http.StatusConflict
	case errors.Is(err, flow.ErrUnknownStep):
		status = http.StatusNotFound
	case errors.Is(err, flow.ErrNotAQuestion), errors.Is(err, flow.ErrInvalidOption):
		status = http.StatusBadRequest
	}
	slog.Warn("Server."+handler+": request refused", "error", err, "sessionID", sessionID, "status", status)
	writeJSONResponse(w, status, models.Error(err.Error()))
}
