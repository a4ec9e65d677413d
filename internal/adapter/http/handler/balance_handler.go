package handler

import (
	"secure-escrow/internal/adapter/http/dto"
	"secure-escrow/internal/core/ports"
	"secure-escrow/pkg/response"

	"github.com/gin-gonic/gin"
)

// BalanceHandler exposes the advisory balance check.
type BalanceHandler struct {
	balanceSvc ports.BalanceService
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balanceSvc ports.BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceSvc: balanceSvc}
}

// Check handles POST /api/v1/balance/check.
func (h *BalanceHandler) Check(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}

	var req dto.BalanceCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	report, err := h.balanceSvc.Check(c.Request.Context(), req.Holder, req.AssetID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
