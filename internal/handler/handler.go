package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/honeynil/mdd-api/internal/infrastructure/auth"
	"github.com/honeynil/mdd-api/internal/infrastructure/observability"
	"github.com/honeynil/mdd-api/internal/models"
	service "github.com/honeynil/mdd-api/internal/services"
	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	auth     service.AuthService
	subjects service.SubjectService
	articles service.ArticleService
}

func NewHandler(a service.AuthService, s service.SubjectService, ar service.ArticleService) *Handler {
	return &Handler{auth: a, subjects: s, articles: ar}
}

type ErrorResponse struct {
	Status    int               `json:"status"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, message string, fields map[string]string) {
	WriteJSON(w, status, ErrorResponse{
		Status:    status,
		Message:   message,
		Errors:    fields,
		Timestamp: time.Now().UTC(),
	})
}

// writeServiceError maps a service error onto the HTTP error body.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *pkgerrors.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteError(w, http.StatusBadRequest, "Invalid request", verr.Fields)
	case errors.Is(err, pkgerrors.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "Invalid username/email or password", nil)
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, pkgerrors.ErrUserNotFound),
		errors.Is(err, pkgerrors.ErrSubjectNotFound),
		errors.Is(err, pkgerrors.ErrArticleNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, pkgerrors.ErrEmailTaken),
		errors.Is(err, pkgerrors.ErrUsernameTaken),
		errors.Is(err, pkgerrors.ErrUserAlreadyExists),
		errors.Is(err, pkgerrors.ErrAlreadySubscribed):
		WriteError(w, http.StatusConflict, err.Error(), nil)
	default:
		observability.WithContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", pkgerrors.ErrInvalidInput)
		}
		return fmt.Errorf("%w: malformed JSON body", pkgerrors.ErrInvalidInput)
	}
	return nil
}

// pathID reads a positive integer path variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		v := pkgerrors.NewValidationError()
		v.Add(name, "must be a positive integer")
		return 0, v
	}
	return id, nil
}

// principal returns the authenticated caller. Protected routes sit behind
// RequireAuth, so a missing principal here is a routing bug.
func principal(r *http.Request) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return nil, pkgerrors.ErrUnauthorized
	}
	return p, nil
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/auth/me", h.Me).Methods(http.MethodGet)
	r.HandleFunc("/auth/me", h.UpdateMe).Methods(http.MethodPut)

	r.HandleFunc("/subjects", h.ListSubjects).Methods(http.MethodGet)
	r.HandleFunc("/subjects/{id}/subscribe", h.Subscribe).Methods(http.MethodPost)
	r.HandleFunc("/subjects/{id}/unsubscribe", h.Unsubscribe).Methods(http.MethodPost)

	r.HandleFunc("/articles", h.Feed).Methods(http.MethodGet)
	r.HandleFunc("/articles", h.CreateArticle).Methods(http.MethodPost)
	r.HandleFunc("/articles/{id}", h.GetArticle).Methods(http.MethodGet)
	r.HandleFunc("/articles/{id}/comments", h.AddComment).Methods(http.MethodPost)
	r.HandleFunc("/articles/{id}/comments", h.ListComments).Methods(http.MethodGet)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	token, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UsernameOrEmail string `json:"usernameOrEmail"`
		Password        string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	token, err := h.auth.Login(r.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	profile, err := h.auth.Me(r.Context(), p.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var req struct {
		Email    *string `json:"email"`
		Username *string `json:"username"`
		Password *string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	token, err := h.auth.UpdateMe(r.Context(), p.UserID, service.UpdateProfileInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var subscribed *bool
	if raw := r.URL.Query().Get("subscribed"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			v := pkgerrors.NewValidationError()
			v.Add("subscribed", "must be true or false")
			h.writeServiceError(w, r, v)
			return
		}
		subscribed = &b
	}

	subjects, err := h.subjects.List(r.Context(), p.UserID, subscribed)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, subjects)
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	h.changeSubscription(w, r, h.subjects.Subscribe)
}

func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	h.changeSubscription(w, r, h.subjects.Unsubscribe)
}

func (h *Handler) changeSubscription(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, userID, subjectID int64) error) {
	p, err := principal(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	subjectID, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if err := apply(r.Context(), p.UserID, subjectID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	ascending := strings.EqualFold(r.URL.Query().Get("order"), "asc")
	articles, err := h.articles.Feed(r.Context(), p.UserID, ascending)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, models.ArticleList{Articles: articles})
}

func (h *Handler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var req struct {
		Title     string `json:"title"`
		Content   string `json:"content"`
		SubjectID int64  `json:"subjectId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	article, err := h.articles.Create(r.Context(), p.UserID, service.CreateArticleInput{
		Title:     req.Title,
		Content:   req.Content,
		SubjectID: req.SubjectID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, article)
}

func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	articleID, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	article, err := h.articles.Get(r.Context(), p.UserID, articleID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, article)
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	articleID, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	comment, err := h.articles.AddComment(r.Context(), p.UserID, articleID, req.Content)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, comment)
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	articleID, err := pathID(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	comments, err := h.articles.ListComments(r.Context(), articleID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, comments)
}
