package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/studypath/studypath/internal/api"
)

type Handler struct {
	authSvc  *Service
	validate *validator.Validate
}

func NewHandler(authSvc *Service) *Handler {
	return &Handler{
		authSvc:  authSvc,
		validate: validator.New(),
	}
}

type LoginRequest struct {
	StudentID string `json:"student_id" validate:"required,max=32"`
	Password  string `json:"password" validate:"required"`
}

type LoginResponse struct {
	*AccessToken
	StudentID   string `json:"student_id"`
	DisplayName string `json:"display_name"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	token, sess, err := h.authSvc.Login(r.Context(), req.StudentID, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		api.HandleError(w, api.ErrInvalidCredentials)
		return
	}
	if err != nil {
		slog.Error("logging in", "error", err, "student_id", req.StudentID)
		api.HandleError(w, api.ErrSourceUnavailable)
		return
	}

	api.JSON(w, http.StatusOK, LoginResponse{
		AccessToken: token,
		StudentID:   sess.StudentID,
		DisplayName: sess.DisplayName,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	if sess == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	if err := h.authSvc.Logout(r.Context(), sess.ID); err != nil {
		slog.Error("logging out", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "logged out successfully")
}
