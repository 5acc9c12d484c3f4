package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet/internal/domain"
	"fleet/internal/middleware"
	"fleet/internal/service"
)

// DriverHandler handles driver-facing HTTP requests.
type DriverHandler struct {
	applicationService *service.ApplicationService
	walletService      *service.WalletService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(applicationService *service.ApplicationService, walletService *service.WalletService) *DriverHandler {
	return &DriverHandler{
		applicationService: applicationService,
		walletService:      walletService,
	}
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	UID      string `json:"uid"`
}

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	driver, err := h.applicationService.RegisterDriver(c.Request.Context(), service.RegistrationRequest{
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		UID:      req.UID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDriverResponse(driver, false))
}

// SubmitApplication handles POST /v1/me/application
func (h *DriverHandler) SubmitApplication(c *gin.Context) {
	var req domain.Application
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	driver, err := h.applicationService.SubmitApplication(c.Request.Context(), middleware.PrincipalFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver, true))
}

// WalletViewResponse is the HTTP response for GET /v1/me/wallet.
type WalletViewResponse struct {
	Driver       DriverResponse        `json:"driver"`
	CashEligible bool                  `json:"cashEligible"`
	Transactions []TransactionResponse `json:"transactions"`
}

// Wallet handles GET /v1/me/wallet
func (h *DriverHandler) Wallet(c *gin.Context) {
	view, err := h.walletService.GetWallet(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, WalletViewResponse{
		Driver:       toDriverResponse(view.Driver, false),
		CashEligible: view.CashEligible,
		Transactions: toTransactionResponses(view.Transactions),
	})
}
