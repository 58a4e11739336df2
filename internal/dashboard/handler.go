package dashboard

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/studypath/studypath/internal/api"
	"github.com/studypath/studypath/internal/auth"
	"github.com/studypath/studypath/internal/progress"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	sess := auth.GetSession(r.Context())
	if sess == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	res, err := h.svc.Progress(r.Context(), sess)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, res)
}

func (h *Handler) CurrentCourses(w http.ResponseWriter, r *http.Request) {
	sess := auth.GetSession(r.Context())
	if sess == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	courses, err := h.svc.CurrentCourses(r.Context(), sess)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, courses)
}

func (h *Handler) Predictions(w http.ResponseWriter, r *http.Request) {
	sess := auth.GetSession(r.Context())
	if sess == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	preds, err := h.svc.Predictions(r.Context(), sess)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, preds)
}

func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	sess := auth.GetSession(r.Context())
	if sess == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	findings, err := h.svc.Insights(r.Context(), sess)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, findings)
}

func (h *Handler) CourseSuggestions(w http.ResponseWriter, r *http.Request) {
	sess := auth.GetSession(r.Context())
	if sess == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	api.JSON(w, http.StatusOK, h.svc.CourseSuggestions(r.Context(), sess))
}

func (h *Handler) Remediation(w http.ResponseWriter, r *http.Request) {
	sess := auth.GetSession(r.Context())
	if sess == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	report, err := h.svc.Remediation(r.Context(), sess)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, report)
}

// Roadmap serves GET /courses/{course}/roadmap?progress=N.
func (h *Handler) Roadmap(w http.ResponseWriter, r *http.Request) {
	sess := auth.GetSession(r.Context())
	if sess == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	course := strings.TrimSpace(chi.URLParam(r, "course"))
	if course == "" {
		api.HandleError(w, api.NewBadRequestError("course is required"))
		return
	}

	var pct *int
	if q := r.URL.Query().Get("progress"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < progress.MinProgress || v > progress.MaxProgress {
			api.HandleError(w, api.NewValidationError("progress must be an integer between 0 and 100"))
			return
		}
		pct = &v
	}

	content, found, err := h.svc.Roadmap(r.Context(), sess, course, pct)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !found {
		api.HandleError(w, api.NewNotFoundError("course not found in progress records; supply a progress query value"))
		return
	}
	api.JSON(w, http.StatusOK, content)
}

func handleServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrPortalSession) {
		api.HandleError(w, api.ErrSessionExpired)
		return
	}
	slog.Error("dashboard request failed", "error", err)
	api.HandleError(w, api.ErrInternalServer)
}
