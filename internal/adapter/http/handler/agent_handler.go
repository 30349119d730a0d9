package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"bank-backoffice/internal/adapter/http/dto"
	"bank-backoffice/internal/core/ports"
	"bank-backoffice/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AgentHandler serves the back-office review endpoints.
type AgentHandler struct {
	operationSvc ports.OperationService
	documentSvc  ports.DocumentService
	log          zerolog.Logger
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(operationSvc ports.OperationService, documentSvc ports.DocumentService, log zerolog.Logger) *AgentHandler {
	return &AgentHandler{operationSvc: operationSvc, documentSvc: documentSvc, log: log}
}

// ListPending handles GET /api/v1/agent/operations/pending.
func (h *AgentHandler) ListPending(c *gin.Context) {
	views, err := h.operationSvc.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.OperationListResponse{Items: views, Total: len(views)})
}

// Approve handles PUT /api/v1/agent/operations/:id/approve.
func (h *AgentHandler) Approve(c *gin.Context) {
	id, err := operationIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	view, err := h.operationSvc.Approve(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Reject handles PUT /api/v1/agent/operations/:id/reject.
func (h *AgentHandler) Reject(c *gin.Context) {
	id, err := operationIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	view, err := h.operationSvc.Reject(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// GetDocumentInfo handles GET /api/v1/agent/operations/:id/document/info.
func (h *AgentHandler) GetDocumentInfo(c *gin.Context) {
	id, err := operationIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	doc, err := h.documentSvc.GetDocument(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewDocumentResponse(doc))
}

// DownloadDocument handles GET /api/v1/agent/operations/:id/document.
func (h *AgentHandler) DownloadDocument(c *gin.Context) {
	id, err := operationIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	doc, rc, err := h.documentSvc.OpenDocument(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer func() {
		if err := rc.Close(); err != nil {
			h.log.Warn().Err(err).Str("document_id", doc.ID.String()).Msg("failed to close document")
		}
	}()

	c.DataFromReader(http.StatusOK, doc.SizeBytes, doc.FileType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%s", strconv.Quote(doc.FileName)),
	})
}
