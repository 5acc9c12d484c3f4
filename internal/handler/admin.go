package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"fleet/internal/domain"
	"fleet/internal/middleware"
	"fleet/internal/service"
)

// AdminHandler handles the admin console's HTTP requests. Role checks are
// performed by the services.
type AdminHandler struct {
	driverService      *service.DriverService
	applicationService *service.ApplicationService
	walletService      *service.WalletService
	settingsService    *service.SettingsService
	orderService       *service.OrderService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	driverService *service.DriverService,
	applicationService *service.ApplicationService,
	walletService *service.WalletService,
	settingsService *service.SettingsService,
	orderService *service.OrderService,
) *AdminHandler {
	return &AdminHandler{
		driverService:      driverService,
		applicationService: applicationService,
		walletService:      walletService,
		settingsService:    settingsService,
		orderService:       orderService,
	}
}

// ListDrivers handles GET /v1/admin/drivers
func (h *AdminHandler) ListDrivers(c *gin.Context) {
	status := domain.OperationalStatus(c.Query("status"))

	drivers, err := h.driverService.ListDrivers(c.Request.Context(), middleware.PrincipalFrom(c), status)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, toDriverResponse(d, false))
	}
	respondJSON(c, http.StatusOK, response)
}

// GetDriver handles GET /v1/admin/drivers/:key
func (h *AdminHandler) GetDriver(c *gin.Context) {
	driver, err := h.driverService.GetDriver(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDriverResponse(driver, true))
}

// GetTransactions handles GET /v1/admin/drivers/:key/transactions
func (h *AdminHandler) GetTransactions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	txns, err := h.driverService.GetTransactions(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("key"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toTransactionResponses(txns))
}

func respondDriver(c *gin.Context, driver *domain.Driver, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDriverResponse(driver, false))
}

// Approve handles POST /v1/admin/drivers/:key/approve
func (h *AdminHandler) Approve(c *gin.Context) {
	driver, err := h.applicationService.Approve(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("key"))
	respondDriver(c, driver, err)
}

// Reject handles POST /v1/admin/drivers/:key/reject
func (h *AdminHandler) Reject(c *gin.Context) {
	driver, err := h.applicationService.Reject(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("key"))
	respondDriver(c, driver, err)
}

// Suspend handles POST /v1/admin/drivers/:key/suspend
func (h *AdminHandler) Suspend(c *gin.Context) {
	driver, err := h.applicationService.Suspend(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("key"))
	respondDriver(c, driver, err)
}

// Restrict handles POST /v1/admin/drivers/:key/restrict
func (h *AdminHandler) Restrict(c *gin.Context) {
	driver, err := h.applicationService.Restrict(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("key"))
	respondDriver(c, driver, err)
}

// Reactivate handles POST /v1/admin/drivers/:key/reactivate
func (h *AdminHandler) Reactivate(c *gin.Context) {
	driver, err := h.applicationService.Reactivate(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("key"))
	respondDriver(c, driver, err)
}

// AmountRequest is the HTTP request body for payouts and adjustments.
type AmountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Notes  string           `json:"notes"`
}

func bindAmount(c *gin.Context) (AmountRequest, bool) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return req, false
	}
	if req.Amount == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "amount is required"})
		return req, false
	}
	return req, true
}

// RecordPayout handles POST /v1/admin/drivers/:key/payouts
func (h *AdminHandler) RecordPayout(c *gin.Context) {
	req, ok := bindAmount(c)
	if !ok {
		return
	}

	result, err := h.walletService.RecordPayout(c.Request.Context(), middleware.PrincipalFrom(c), service.PayoutRequest{
		DriverKey: c.Param("key"),
		Amount:    *req.Amount,
		Notes:     req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toLedgerResponse(result))
}

// RecordAdjustment handles POST /v1/admin/drivers/:key/adjustments
func (h *AdminHandler) RecordAdjustment(c *gin.Context) {
	req, ok := bindAmount(c)
	if !ok {
		return
	}

	result, err := h.walletService.RecordAdjustment(c.Request.Context(), middleware.PrincipalFrom(c), service.AdjustmentRequest{
		DriverKey: c.Param("key"),
		Amount:    *req.Amount,
		Notes:     req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toLedgerResponse(result))
}

// GrantIncentiveRequest is the HTTP request body for granting an incentive.
type GrantIncentiveRequest struct {
	IncentiveID     string `json:"incentiveId"`
	ExternalOrderID string `json:"externalOrderId"`
}

// GrantIncentive handles POST /v1/admin/drivers/:key/incentives
func (h *AdminHandler) GrantIncentive(c *gin.Context) {
	var req GrantIncentiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IncentiveID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "incentiveId is required"})
		return
	}

	result, err := h.walletService.GrantIncentive(c.Request.Context(), middleware.PrincipalFrom(c), service.IncentiveRequest{
		DriverKey:       c.Param("key"),
		IncentiveID:     req.IncentiveID,
		ExternalOrderID: req.ExternalOrderID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, toLedgerResponse(result))
}

// GetSettings handles GET /v1/admin/settings
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.Get(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, settings)
}

// UpdateSettings handles PATCH /v1/admin/settings
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var patch domain.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	settings, err := h.settingsService.Update(c.Request.Context(), middleware.PrincipalFrom(c), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, settings)
}

// SyncDispatchDrivers handles POST /v1/admin/dispatch/sync
func (h *AdminHandler) SyncDispatchDrivers(c *gin.Context) {
	result, err := h.applicationService.SyncDispatchDrivers(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, result)
}

// UnassignOrder handles POST /v1/admin/dispatch/orders/:id/unassign
func (h *AdminHandler) UnassignOrder(c *gin.Context) {
	if err := h.orderService.UnassignOrder(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"status": "unassigned", "orderId": c.Param("id")})
}
