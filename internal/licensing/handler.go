package licensing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/licensehub/licensehub/internal/platform/httpx"
)

// Handler serves the company back office API and the verification endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the administrative company routes. The router must
// already resolve the actor into the request context.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Get("/{id}/history", h.history)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.ListCompanies(r.Context(), ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, map[string]any{"companies": companies})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in RegisterCompanyInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.logger.Debug("decode register payload", slog.Any("error", err))
		httpx.RespondError(w, invalid("body", "malformed JSON"))
		return
	}
	company, err := h.service.RegisterCompany(r.Context(), ActorFromContext(r.Context()), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, r, http.StatusCreated, map[string]any{"company": company})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := companyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	company, err := h.service.GetCompany(r.Context(), ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, map[string]any{"company": company})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := companyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UpdateCompanyInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.logger.Debug("decode update payload", slog.Any("error", err))
		httpx.RespondError(w, invalid("body", "malformed JSON"))
		return
	}
	company, err := h.service.UpdateCompany(r.Context(), ActorFromContext(r.Context()), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, map[string]any{"company": company})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := companyID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.History(r.Context(), ActorFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, r, http.StatusOK, map[string]any{"history": entries})
}

// Verify is the unauthenticated endpoint called by deployed software.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var in VerifyInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, invalid("body", "malformed JSON"))
		return
	}
	if err := validateStruct(in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	verdict, err := h.service.VerifyLicense(r.Context(), in.CompanyID, in.DeployKey, in.Fingerprint)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, r, verdictStatus(verdict), verdict)
}

func verdictStatus(v Verdict) int {
	switch {
	case v.Authorized:
		return http.StatusOK
	case v.Reason == DenyDeviceNotRegistered:
		return http.StatusNotFound
	default:
		return http.StatusForbidden
	}
}

func companyID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, invalid("id", "must be a company id")
	}
	return id, nil
}
