package handler

import (
	"secure-escrow/internal/adapter/http/middleware"
	"secure-escrow/internal/core/ports"
	"secure-escrow/pkg/apperror"
	"secure-escrow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requireCaller writes AUTH_002 and returns false when no caller is bound.
func requireCaller(c *gin.Context) (ports.Caller, bool) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return ports.Caller{}, false
	}
	return caller, true
}

// escrowID parses the :id path parameter. A malformed id reads as not found.
func escrowID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("escrow"))
		return uuid.Nil, false
	}
	return id, true
}
