package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"secure-escrow/internal/adapter/http/dto"
	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/core/ports"
	"secure-escrow/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey lets a client retry POST /escrows safely.
const HeaderIdempotencyKey = "Idempotency-Key"

// EscrowHandler handles the escrow lifecycle endpoints.
type EscrowHandler struct {
	escrowSvc ports.EscrowService
}

// NewEscrowHandler creates a new EscrowHandler.
func NewEscrowHandler(escrowSvc ports.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrowSvc: escrowSvc}
}

// Create handles POST /api/v1/escrows.
func (h *EscrowHandler) Create(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req dto.CreateEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	escrow, err := h.escrowSvc.Create(c.Request.Context(), ports.CreateEscrowRequest{
		Creator:        caller,
		RecipientEmail: req.RecipientEmail,
		AssetID:        req.AssetID,
		AssetSymbol:    req.AssetSymbol,
		Amount:         req.Amount,
		Description:    req.Description,
		Terms:          req.Terms,
		CreatorWallet:  req.CreatorWallet,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey)),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewEscrowResponse(escrow))
}

// List handles GET /api/v1/escrows. No escrows yields an empty array.
func (h *EscrowHandler) List(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	escrows, err := h.escrowSvc.ListForAccount(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewEscrowListResponse(escrows))
}

// Get handles GET /api/v1/escrows/:id. The ETag follows the escrow version
// so pollers can revalidate with If-None-Match.
func (h *EscrowHandler) Get(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, ok := escrowID(c)
	if !ok {
		return
	}

	escrow, err := h.escrowSvc.Get(c.Request.Context(), id, caller)
	if err != nil {
		response.Error(c, err)
		return
	}

	tag := etag(escrow)
	c.Header("ETag", tag)
	c.Header("Cache-Control", "private, no-cache")
	if match := c.GetHeader("If-None-Match"); match != "" && etagMatches(match, tag) {
		c.AbortWithStatus(http.StatusNotModified)
		return
	}
	response.OK(c, dto.NewEscrowResponse(escrow))
}

// Link handles POST /api/v1/escrows/:id/link.
func (h *EscrowHandler) Link(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, ok := escrowID(c)
	if !ok {
		return
	}

	escrow, err := h.escrowSvc.LinkRecipient(c.Request.Context(), id, caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewEscrowResponse(escrow))
}

// SetSettlementAddress handles PUT /api/v1/escrows/:id/settlement-address.
func (h *EscrowHandler) SetSettlementAddress(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, ok := escrowID(c)
	if !ok {
		return
	}

	var req dto.SettlementAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	escrow, err := h.escrowSvc.SetSettlementAddress(c.Request.Context(), id, caller, req.Address)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewEscrowResponse(escrow))
}

// Confirm handles POST /api/v1/escrows/:id/confirm.
func (h *EscrowHandler) Confirm(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, ok := escrowID(c)
	if !ok {
		return
	}

	escrow, err := h.escrowSvc.Confirm(c.Request.Context(), id, caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewEscrowResponse(escrow))
}

// Dispute handles POST /api/v1/escrows/:id/dispute. The body is optional.
func (h *EscrowHandler) Dispute(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, ok := escrowID(c)
	if !ok {
		return
	}

	var req dto.DisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, dto.BindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	escrow, err := h.escrowSvc.Dispute(c.Request.Context(), id, caller, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewEscrowResponse(escrow))
}

func etag(e *domain.Escrow) string {
	return fmt.Sprintf(`"%s-%d"`, e.ID, e.Version)
}

// etagMatches implements the weak comparison of If-None-Match.
func etagMatches(header, tag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == tag {
			return true
		}
	}
	return false
}
