package handler

import (
	"secure-escrow/internal/adapter/http/dto"
	"secure-escrow/internal/core/ports"
	"secure-escrow/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves the caller's own account.
type AccountHandler struct {
	accountSvc ports.AccountService
	summarySvc ports.SummaryService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService, summarySvc ports.SummaryService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc, summarySvc: summarySvc}
}

// GetProfile handles GET /api/v1/accounts/me.
func (h *AccountHandler) GetProfile(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	account, err := h.accountSvc.GetProfile(c.Request.Context(), caller.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountResponse(account))
}

// UpdateProfile handles PUT /api/v1/accounts/me.
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	account, err := h.accountSvc.UpdateDisplayName(c.Request.Context(), caller.AccountID, req.DisplayName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountResponse(account))
}

// SetSettlementAddress handles PUT /api/v1/accounts/me/settlement-address.
// The account address is a pre-fill for new escrows and never changes
// existing ones.
func (h *AccountHandler) SetSettlementAddress(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req dto.SettlementAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	account, err := h.accountSvc.SetSettlementAddress(c.Request.Context(), caller.AccountID, req.Address)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAccountResponse(account))
}

// Summary handles GET /api/v1/accounts/me/summary.
func (h *AccountHandler) Summary(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	stats, err := h.summarySvc.Summarize(c.Request.Context(), caller.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewSummaryResponse(stats))
}
