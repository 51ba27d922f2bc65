package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/intake/engine"
	"github.com/mohitkumar/intake/logger"
	"github.com/mohitkumar/intake/model"
	"go.uber.org/zap"
)

type UserRequest struct {
	FullName     string `json:"fullName"`
	Username     string `json:"username"`
	IsPremium    bool   `json:"isPremium"`
	LanguageCode string `json:"languageCode"`
}

type MediaRequest struct {
	FileId   string `json:"fileId"`
	Kind     string `json:"kind"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	// Data carries the raw bytes, base64 encoded, when the step needs them.
	Data []byte `json:"data"`
}

type InputRequest struct {
	Kind  model.ContentKind `json:"kind"`
	Text  string            `json:"text"`
	Media *MediaRequest     `json:"media"`
}

type StartRequest struct {
	Mode engine.StartMode `json:"mode"`
	User UserRequest      `json:"user"`
}

type SubmitRequest struct {
	Handle string       `json:"handle"`
	User   UserRequest  `json:"user"`
	Input  InputRequest `json:"input"`
}

type MoveRequest struct {
	User UserRequest `json:"user"`
}

type SessionResponse struct {
	Session       *model.SessionState `json:"session"`
	Prompt        *model.Prompt       `json:"prompt"`
	NextAvailable bool                `json:"nextAvailable"`
}

func (u UserRequest) toUser(id string) model.User {
	return model.User{
		Id:           id,
		FullName:     u.FullName,
		Username:     u.Username,
		IsPremium:    u.IsPremium,
		LanguageCode: u.LanguageCode,
	}
}

func (in InputRequest) toInput() model.Input {
	out := model.Input{Kind: in.Kind, Text: in.Text}
	if in.Media != nil {
		out.Media = &model.MediaRef{
			FileId:   in.Media.FileId,
			Kind:     in.Media.Kind,
			Size:     in.Media.Size,
			MimeType: in.Media.MimeType,
			Data:     in.Media.Data,
		}
		if out.Media.Size == 0 {
			out.Media.Size = int64(len(in.Media.Data))
		}
	}
	return out
}

// decodeBody decodes an optional JSON body into v. An empty body is allowed.
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) issue(userId string, out *model.Outcome) *model.Outcome {
	if out != nil {
		s.handles.Issue(userId, out.Prompt)
	}
	return out
}

func (s *Server) HandleStart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	wfName, userId := vars["workflow"], vars["user"]
	var req StartRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = engine.START_RESET
	}
	if mode != engine.START_RESET && mode != engine.START_RESUME {
		respondWithError(w, http.StatusBadRequest, "unknown start mode")
		return
	}
	p, err := s.service.Start(r.Context(), wfName, req.User.toUser(userId), mode)
	if err != nil {
		logger.Error("error starting session", zap.String("workflow", wfName), zap.String("user", userId), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	s.handles.Issue(userId, p)
	respondOK(w, p)
}

// HandleSubmit feeds one message to the active step. A handle that is unknown,
// expired or issued for another step causes the active step to be recovered
// instead.
func (s *Server) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	wfName, userId := vars["workflow"], vars["user"]
	var req SubmitRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user := req.User.toUser(userId)
	ctx := r.Context()

	var out *model.Outcome
	var err error
	if req.Handle == "" {
		out, err = s.service.Submit(ctx, wfName, user, req.Input.toInput())
	} else if h, ok := s.handles.Valid(req.Handle, wfName, userId); ok {
		s.handles.Invalidate(req.Handle)
		out, err = s.service.SubmitExpecting(ctx, wfName, user, h.StepId, req.Input.toInput())
	} else {
		logger.Info("stale handle, recovering", zap.String("workflow", wfName), zap.String("user", userId))
		var p *model.Prompt
		p, err = s.service.Recover(ctx, wfName, user)
		if err == nil {
			out = &model.Outcome{Recovered: true, Prompt: p}
		}
	}
	if err != nil {
		logger.Error("error submitting input", zap.String("workflow", wfName), zap.String("user", userId), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, s.issue(userId, out))
}

func (s *Server) HandleBack(w http.ResponseWriter, r *http.Request) {
	s.handleMove(w, r, s.service.Back)
}

func (s *Server) HandleNext(w http.ResponseWriter, r *http.Request) {
	s.handleMove(w, r, s.service.Next)
}

func (s *Server) HandleRecover(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	wfName, userId := vars["workflow"], vars["user"]
	var req MoveRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := s.service.Recover(r.Context(), wfName, req.User.toUser(userId))
	if err != nil {
		logger.Error("error recovering session", zap.String("workflow", wfName), zap.String("user", userId), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	s.handles.Issue(userId, p)
	respondOK(w, p)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request, move func(context.Context, string, model.User) (*model.Outcome, error)) {
	vars := mux.Vars(r)
	wfName, userId := vars["workflow"], vars["user"]
	var req MoveRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := move(r.Context(), wfName, req.User.toUser(userId))
	if err != nil {
		logger.Info("navigation refused", zap.String("workflow", wfName), zap.String("user", userId), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, s.issue(userId, out))
}

func (s *Server) HandleEdit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	wfName, userId, stepId := vars["workflow"], vars["user"], vars["step"]
	var req SubmitRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := s.service.Edit(r.Context(), wfName, req.User.toUser(userId), stepId, req.Input.toInput())
	if err != nil {
		logger.Error("error editing answer", zap.String("workflow", wfName), zap.String("user", userId), zap.String("step", stepId), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, s.issue(userId, out))
}

func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	wfName, userId := vars["workflow"], vars["user"]
	ctx := r.Context()
	state, err := s.service.Session(ctx, wfName, userId)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	p, err := s.service.Prompt(ctx, wfName, userId)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, SessionResponse{Session: state, Prompt: p, NextAvailable: p.CanGoNext})
}
