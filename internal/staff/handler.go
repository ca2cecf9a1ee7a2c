package staff

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/licensehub/licensehub/internal/licensing"
	"github.com/licensehub/licensehub/internal/platform/httpx"
)

// Handler manages employee endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers staff routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.List(r.Context(), licensing.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "list staff", err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, map[string]any{"staff": employees})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, &licensing.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	employee, err := h.service.Create(r.Context(), licensing.ActorFromContext(r.Context()), in)
	if err != nil {
		h.respondError(w, "create staff", err)
		return
	}
	httpx.JSON(w, r, http.StatusCreated, map[string]any{"employee": employee})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
