package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"pastebox/internal/apperr"
	"pastebox/internal/auth"
	"pastebox/internal/records"
	"pastebox/internal/storage"
	"pastebox/internal/users"
)

type createRecordRequest struct {
	Text     string    `json:"text"`
	Title    *string   `json:"title"`
	Deadline time.Time `json:"deadline"`
	Private  bool      `json:"private"`
}

type updateRecordRequest struct {
	Title    *string   `json:"title"`
	Text     *string   `json:"text"`
	Deadline time.Time `json:"deadline"`
	Private  bool      `json:"private"`
}

type deletedResponse struct {
	ID uuid.UUID `json:"id"`
}

type errorResponse struct {
	Errors    []string `json:"errors"`
	RequestID string   `json:"request_id,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if !s.decode(w, r, &in) {
		return
	}
	p, err := s.users.Register(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in users.LoginInput
	if !s.decode(w, r, &in) {
		return
	}
	sess, err := s.users.Login(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.uuidParam(w, r, "userID")
	if !ok {
		return
	}
	if err := s.users.ConfirmEmail(r.Context(), userID, r.URL.Query().Get("token")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"confirmed": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, err := s.users.Get(r.Context(), auth.RequesterID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleMyRecords(w http.ResponseWriter, r *http.Request) {
	list, err := s.records.ListForUser(r.Context(), auth.RequesterID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListPublic(w http.ResponseWriter, r *http.Request) {
	page, ok := s.page(w, r)
	if !ok {
		return
	}
	list, err := s.records.ListPublic(r.Context(), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if !s.decode(w, r, &req) {
		return
	}
	created, err := s.records.Create(r.Context(), records.CreateInput{
		OwnerID:  auth.RequesterID(r.Context()),
		Text:     req.Text,
		Title:    req.Title,
		Deadline: req.Deadline,
		Private:  req.Private,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", s.records.ShareURL(created.Token))
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetByToken(w http.ResponseWriter, r *http.Request) {
	v, err := s.records.GetByToken(r.Context(), chi.URLParam(r, "token"), auth.RequesterID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleGetByID(w http.ResponseWriter, r *http.Request) {
	recordID, ok := s.uuidParam(w, r, "recordID")
	if !ok {
		return
	}
	v, err := s.records.Get(r.Context(), recordID, auth.RequesterID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	recordID, ok := s.uuidParam(w, r, "recordID")
	if !ok {
		return
	}
	var req updateRecordRequest
	if !s.decode(w, r, &req) {
		return
	}
	v, err := s.records.Update(r.Context(), records.UpdateInput{
		ID:       recordID,
		OwnerID:  auth.RequesterID(r.Context()),
		Title:    req.Title,
		Text:     req.Text,
		Deadline: req.Deadline,
		Private:  req.Private,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	recordID, ok := s.uuidParam(w, r, "recordID")
	if !ok {
		return
	}
	deleted, err := s.records.Delete(r.Context(), recordID, auth.RequesterID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{ID: deleted})
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	s.react(w, r, s.records.Like)
}

func (s *Server) handleDislike(w http.ResponseWriter, r *http.Request) {
	s.react(w, r, s.records.Dislike)
}

type reactFunc func(ctx context.Context, ownerID, recordID, requester uuid.UUID) (records.Summary, error)

func (s *Server) react(w http.ResponseWriter, r *http.Request, fn reactFunc) {
	ownerID, ok := s.uuidParam(w, r, "userID")
	if !ok {
		return
	}
	recordID, ok := s.uuidParam(w, r, "recordID")
	if !ok {
		return
	}
	sum, err := fn(r.Context(), ownerID, recordID, auth.RequesterID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	raw, err := s.records.Raw(r.Context(), chi.URLParam(r, "token"), auth.RequesterID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == raw.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.Header().Set("ETag", raw.ETag)
	_, _ = io.WriteString(w, raw.Text)
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	png, err := s.records.QR(r.Context(), chi.URLParam(r, "token"), auth.RequesterID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	page, ok := s.page(w, r)
	if !ok {
		return
	}
	list, err := s.users.List(r.Context(), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAdminGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.uuidParam(w, r, "userID")
	if !ok {
		return
	}
	p, err := s.users.Get(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.uuidParam(w, r, "userID")
	if !ok {
		return
	}
	var in users.UpdateInput
	if !s.decode(w, r, &in) {
		return
	}
	p, err := s.users.Update(r.Context(), userID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.uuidParam(w, r, "userID")
	if !ok {
		return
	}
	if _, err := s.users.DeleteByID(r.Context(), userID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{ID: userID})
}

func (s *Server) handleAdminDeleteByUsername(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.users.DeleteByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{ID: deleted})
}

// decode reads a JSON body bounded by maxBytes. It writes the error response
// itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorBody(w, http.StatusRequestEntityTooLarge, []string{"request body too large"}, "")
			return false
		}
		s.writeError(w, r, apperr.Validation("invalid JSON body"))
		return false
	}
	return true
}

func (s *Server) uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		s.writeError(w, r, apperr.Validation(name+" must be a valid id"))
		return uuid.Nil, false
	}
	return v, true
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) (storage.Page, bool) {
	var p storage.Page
	q := r.URL.Query()
	for key, dst := range map[string]*int{"page": &p.Number, "limit": &p.Limit} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, apperr.Validation(key+" must be a positive integer"))
			return storage.Page{}, false
		}
		*dst = n
	}
	return p.Normalize(), true
}

// writeError maps err onto a status code. Internal failures are logged with
// the request id and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := statusFor(code)
	reqID := middleware.GetReqID(r.Context())
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "internal error", "error", err, "request_id", reqID)
		writeErrorBody(w, status, []string{"internal server error"}, reqID)
		return
	}
	writeErrorBody(w, status, apperr.ReasonsOf(err), "")
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeValidation, apperr.CodeDecode:
		return http.StatusBadRequest
	case apperr.CodeAuthentication:
		return http.StatusUnauthorized
	case apperr.CodeConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeErrorBody(w http.ResponseWriter, status int, reasons []string, reqID string) {
	writeJSON(w, status, errorResponse{Errors: reasons, RequestID: reqID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
