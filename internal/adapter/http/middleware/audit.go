package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"bank-backoffice/internal/core/domain"
	"bank-backoffice/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	method string
	path   string
}

type auditTarget struct {
	action       domain.AuditAction
	resourceType string
}

// auditedRoutes maps gin route templates to the action they record.
var auditedRoutes = map[auditRoute]auditTarget{
	{http.MethodPost, "/api/v1/client/operations"}:              {domain.AuditActionCreateOperation, "operation"},
	{http.MethodPost, "/api/v1/client/operations/:id/document"}: {domain.AuditActionUploadDocument, "document"},
	{http.MethodPut, "/api/v1/agent/operations/:id/approve"}:    {domain.AuditActionApproveOperation, "operation"},
	{http.MethodPut, "/api/v1/agent/operations/:id/reject"}:     {domain.AuditActionRejectOperation, "operation"},
	{http.MethodPost, "/api/v1/admin/accounts"}:                 {domain.AuditActionOpenAccount, "account"},
}

// AuditLog records successful state-changing requests after the handler ran.
// The resource id comes from CtxResourceID when the handler sets it, else the :id parameter.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		target, ok := mapRouteToAction(c.Request.Method, c.FullPath())
		if !ok {
			return
		}

		var actorID *uuid.UUID
		if identity, ok := IdentityFrom(c); ok {
			id := identity.ID
			actorID = &id
		}

		resourceID := c.GetString(CtxResourceID)
		if resourceID == "" {
			resourceID = c.Param("id")
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": status,
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       target.action,
			ResourceType: target.resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapRouteToAction(method, fullPath string) (auditTarget, bool) {
	target, ok := auditedRoutes[auditRoute{method: method, path: fullPath}]
	return target, ok
}
