package gateway

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/consentry/consentry/internal/domain/audit"
	"github.com/consentry/consentry/internal/platform/auth"
	"github.com/consentry/consentry/internal/registry"
	"github.com/consentry/consentry/internal/remote"
	"github.com/consentry/consentry/pkg/pagination"
)

// Handler exposes the consent registry over HTTP: lifecycle operations
// through the engine, scoped reads through the store, and the registry's
// read-side resources proxied straight through.
type Handler struct {
	engine   *registry.Engine
	store    *registry.Store
	client   *remote.Client
	identity registry.IdentityProvider
	audit    *audit.Service
}

func NewHandler(engine *registry.Engine, store *registry.Store, client *remote.Client, identity registry.IdentityProvider) *Handler {
	return &Handler{engine: engine, store: store, client: client, identity: identity}
}

// SetAudit enables the audit trail endpoints. Without it they return 404.
func (h *Handler) SetAudit(svc *audit.Service) { h.audit = svc }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "clinician", "patient"))
	readGroup.GET("/consents", h.ListConsents)
	readGroup.GET("/patients", h.ListPatients)
	readGroup.GET("/patients/:id", h.GetPatient)
	readGroup.GET("/patients/:id/records", h.GetPatientRecords)
	readGroup.GET("/stats", h.GetStats)
	readGroup.GET("/transactions", h.ListTransactions)
	readGroup.GET("/wallet", h.GetWallet)

	writeGroup := api.Group("", auth.RequireRole("admin", "clinician"))
	writeGroup.POST("/consents", h.CreateConsent)
	writeGroup.PATCH("/consents/:id", h.UpdateConsentStatus)

	auditGroup := api.Group("", auth.RequireRole("admin", "auditor"))
	auditGroup.GET("/audit", h.ListAuditEvents)
	auditGroup.GET("/consents/:id/audit", h.GetConsentTrail)
}

// Health is registered outside the authenticated API group.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// -- Consents --

type createConsentRequest struct {
	PatientID string `json:"patientId"`
	Purpose   string `json:"purpose"`
}

type updateConsentRequest struct {
	Status string `json:"status"`
}

type consentListResponse struct {
	Consents []registry.ConsentRecord `json:"consents"`
}

func (h *Handler) ListConsents(c echo.Context) error {
	scope := registry.Scope{SubjectID: c.QueryParam("patientId")}
	if raw := c.QueryParam("status"); raw != "" && raw != string(registry.FilterAll) {
		status, err := registry.ParseStatus(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		scope.Status = &status
	}

	records, err := h.store.Load(c.Request().Context(), scope)
	if err != nil {
		return httpError(err)
	}

	if wallet := c.QueryParam("wallet"); wallet != "" {
		records = registry.FilterWallet(records, wallet)
	}

	return c.JSON(http.StatusOK, consentListResponse{Consents: records})
}

func (h *Handler) CreateConsent(c echo.Context) error {
	var req createConsentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rec, err := h.engine.Create(c.Request().Context(), req.PatientID, registry.Purpose(req.Purpose))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) UpdateConsentStatus(c echo.Context) error {
	var req updateConsentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	target, err := registry.ParseStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rec, err := h.engine.Transition(c.Request().Context(), c.Param("id"), target)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// -- Proxied registry resources --

type patientListResponse struct {
	Patients   []remote.Patient `json:"patients"`
	Pagination *remote.PageInfo `json:"pagination,omitempty"`
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	patients, info, err := h.client.Patients(c.Request().Context(), pg.Page, pg.Limit, c.QueryParam("search"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, patientListResponse{Patients: patients, Pagination: info})
}

func (h *Handler) GetPatient(c echo.Context) error {
	patient, err := h.client.Patient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, patient)
}

func (h *Handler) GetPatientRecords(c echo.Context) error {
	records, err := h.client.PatientRecords(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

type statsResponse struct {
	remote.Stats
	ApprovalRate float64 `json:"approvalRate"`
	PendingRate  float64 `json:"pendingRate"`
}

func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.client.Stats(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, statsResponse{
		Stats:        *stats,
		ApprovalRate: stats.ApprovalRate(),
		PendingRate:  stats.PendingRate(),
	})
}

func (h *Handler) ListTransactions(c echo.Context) error {
	txs, err := h.client.Transactions(c.Request().Context(), c.QueryParam("wallet"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, txs)
}

// -- Wallet --

func (h *Handler) GetWallet(c echo.Context) error {
	address, connected := h.identity.ConnectedAddress()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"address":   address,
		"connected": connected,
	})
}

// -- Audit --

func (h *Handler) ListAuditEvents(c echo.Context) error {
	if h.audit == nil {
		return echo.NewHTTPError(http.StatusNotFound, "audit trail not configured")
	}
	pg := pagination.FromContext(c)
	events, total, err := h.audit.Recent(c.Request().Context(), pg.Limit, pg.Offset())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(events, total, pg))
}

func (h *Handler) GetConsentTrail(c echo.Context) error {
	if h.audit == nil {
		return echo.NewHTTPError(http.StatusNotFound, "audit trail not configured")
	}
	events, err := h.audit.Trail(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

// httpError maps the registry error taxonomy onto HTTP status codes.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, registry.ErrMissingIdentity):
		return echo.NewHTTPError(http.StatusPreconditionFailed, "no wallet connected")
	case errors.Is(err, registry.ErrMissingSubject), errors.Is(err, registry.ErrInvalidPurpose):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrSigningRejected):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "signature request rejected")
	case errors.Is(err, registry.ErrNoSigningIdentity), errors.Is(err, registry.ErrSigningUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "signing unavailable")
	case errors.Is(err, registry.ErrIllegalTransition):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "consent not found")
	case errors.Is(err, registry.ErrTransitionRejected):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrLoadSuperseded):
		return echo.NewHTTPError(http.StatusConflict, "superseded by a newer load")
	case registry.IsTransport(err):
		return echo.NewHTTPError(http.StatusBadGateway, "registry unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
