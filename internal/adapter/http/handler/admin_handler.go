package handler

import (
	"bank-backoffice/internal/adapter/http/dto"
	"bank-backoffice/internal/adapter/http/middleware"
	"bank-backoffice/internal/core/ports"
	"bank-backoffice/pkg/apperror"
	"bank-backoffice/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves account administration.
type AdminHandler struct {
	accountSvc ports.AccountService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accountSvc ports.AccountService) *AdminHandler {
	return &AdminHandler{accountSvc: accountSvc}
}

// OpenAccount handles POST /api/v1/admin/accounts.
func (h *AdminHandler) OpenAccount(c *gin.Context) {
	var req dto.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		response.Error(c, apperror.Validation("owner_id must be a UUID"))
		return
	}

	account, err := h.accountSvc.OpenAccount(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, account.ID.String())
	response.Created(c, dto.NewAccountResponse(account))
}
