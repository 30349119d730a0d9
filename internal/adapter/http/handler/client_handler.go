package handler

import (
	"errors"
	"net/http"
	"strings"

	"bank-backoffice/internal/adapter/http/dto"
	"bank-backoffice/internal/adapter/http/middleware"
	"bank-backoffice/internal/core/domain"
	"bank-backoffice/internal/core/ports"
	"bank-backoffice/pkg/apperror"
	"bank-backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey lets a client safely retry operation creation.
const HeaderIdempotencyKey = "Idempotency-Key"

// ClientHandler serves the customer endpoints.
type ClientHandler struct {
	accountSvc   ports.AccountService
	operationSvc ports.OperationService
	documentSvc  ports.DocumentService
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(accountSvc ports.AccountService, operationSvc ports.OperationService, documentSvc ports.DocumentService) *ClientHandler {
	return &ClientHandler{accountSvc: accountSvc, operationSvc: operationSvc, documentSvc: documentSvc}
}

// GetAccount handles GET /api/v1/client/account.
func (h *ClientHandler) GetAccount(c *gin.Context) {
	identity, err := mustIdentity(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	account, err := h.accountSvc.GetAccountByOwner(c.Request.Context(), identity.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewAccountResponse(account))
}

// CreateOperation handles POST /api/v1/client/operations.
func (h *ClientHandler) CreateOperation(c *gin.Context) {
	identity, err := mustIdentity(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	dto.SanitizeStruct(&req)

	view, err := h.operationSvc.CreateOperation(c.Request.Context(), ports.CreateOperationRequest{
		Kind:                     domain.OperationKind(strings.ToUpper(strings.TrimSpace(req.Kind))),
		Amount:                   req.Amount,
		DestinationAccountNumber: req.DestinationAccountNumber,
		Actor:                    identity,
		IdempotencyKey:           strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey)),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, view.ID.String())
	response.Created(c, view)
}

// ListOperations handles GET /api/v1/client/operations.
func (h *ClientHandler) ListOperations(c *gin.Context) {
	identity, err := mustIdentity(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	views, err := h.operationSvc.ListOperations(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.OperationListResponse{Items: views, Total: len(views)})
}

// UploadDocument handles POST /api/v1/client/operations/:id/document.
func (h *ClientHandler) UploadDocument(c *gin.Context) {
	identity, err := mustIdentity(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	operationID, err := operationIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, apperror.ErrPayloadTooLarge())
			return
		}
		response.Error(c, apperror.Validation("multipart field 'file' is required"))
		return
	}

	file, err := fh.Open()
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	defer file.Close()

	doc, err := h.documentSvc.Upload(c.Request.Context(), ports.UploadDocumentRequest{
		OperationID: operationID,
		Actor:       identity,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Content:     file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, doc.ID.String())
	response.Created(c, dto.NewDocumentResponse(doc))
}
