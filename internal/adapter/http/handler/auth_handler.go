package handler

import (
	"secure-escrow/internal/adapter/http/dto"
	"secure-escrow/internal/core/ports"
	"secure-escrow/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles passcode login endpoints.
type AuthHandler struct {
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// RequestPasscode handles POST /api/v1/auth/passcode.
// The reply is the same whether or not an account exists for the e-mail.
func (h *AuthHandler) RequestPasscode(c *gin.Context) {
	var req dto.RequestPasscodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	if err := h.authSvc.RequestPasscode(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "If the address is valid, a passcode is on its way"})
}

// VerifyPasscode handles POST /api/v1/auth/verify.
func (h *AuthHandler) VerifyPasscode(c *gin.Context) {
	var req dto.VerifyPasscodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.authSvc.VerifyPasscode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SessionResponse{
		Token:         result.Token,
		Expiry:        result.ExpiresAt.Unix(),
		Account:       dto.NewAccountResponse(result.Account),
		LinkedEscrows: result.LinkedEscrows,
	})
}
