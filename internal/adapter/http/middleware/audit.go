package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"secure-escrow/internal/core/domain"
	"secure-escrow/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditRoutes maps "METHOD route-pattern" to the audited action.
var auditRoutes = map[string]auditRoute{
	"POST /api/v1/auth/verify":                   {domain.AuditActionLogin, "session"},
	"POST /api/v1/escrows":                       {domain.AuditActionCreateEscrow, "escrow"},
	"PUT /api/v1/escrows/:id/settlement-address": {domain.AuditActionSetWallet, "escrow"},
	"POST /api/v1/escrows/:id/confirm":           {domain.AuditActionConfirm, "escrow"},
	"POST /api/v1/escrows/:id/dispute":           {domain.AuditActionDispute, "escrow"},
	"POST /api/v1/escrows/:id/messages":          {domain.AuditActionPostMessage, "escrow"},
	"PUT /api/v1/accounts/me":                    {domain.AuditActionUpdateProfile, "account"},
	"PUT /api/v1/accounts/me/settlement-address": {domain.AuditActionUpdateProfile, "account"},
}

// AuditLog records successful write operations after the handler ran.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		route, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		var accountID *uuid.UUID
		if caller, ok := CallerFrom(c); ok {
			accountID = &caller.AccountID
		}

		resourceID := c.Param("id")
		if resourceID == "" && accountID != nil && route.resourceType == "account" {
			resourceID = accountID.String()
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": status,
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			AccountID:    accountID,
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}
