package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/harshkolte01/tutor-bot/internal/model"
	"github.com/harshkolte01/tutor-bot/internal/pkg/response"
	"github.com/harshkolte01/tutor-bot/internal/service"
)

type DocumentHandler struct {
	documents      *service.DocumentService
	maxUploadBytes int64
}

func NewDocumentHandler(documents *service.DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, maxUploadBytes: maxUploadBytes}
}

// Upload accepts a multipart file plus an optional title field. Ingestion
// runs before the response: 201 when it succeeded, 202 when the document
// was created but its ingestion failed.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "file is required")
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, "too_large",
			"file exceeds the "+formatUploadLimit(h.maxUploadBytes)+" upload limit")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		handleError(c, err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		handleError(c, err)
		return
	}

	doc, ing, err := h.documents.CreateFromUpload(c.Request.Context(), getUserID(c),
		c.PostForm("title"), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	writeIngestResult(c, doc, ing, err)
}

type textDocumentRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (h *DocumentHandler) CreateText(c *gin.Context) {
	var req textDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request")
		return
	}
	doc, ing, err := h.documents.CreateFromText(c.Request.Context(), getUserID(c), req.Title, req.Text)
	writeIngestResult(c, doc, ing, err)
}

// writeIngestResult maps the create-then-ingest outcome. A nil document
// means nothing was created and the error decides the status; otherwise a
// failed ingestion still returns both ids so the client can poll or retry.
func writeIngestResult(c *gin.Context, doc *model.Document, ing *model.DocumentIngestion, err error) {
	if doc == nil {
		handleError(c, err)
		return
	}
	if err != nil {
		warning := "ingestion failed"
		if ing != nil && ing.ErrorMessage != "" {
			warning = "ingestion failed: " + ing.ErrorMessage
		}
		response.SuccessStatus(c, http.StatusAccepted, gin.H{
			"document":  doc,
			"ingestion": ing,
			"warning":   warning,
		})
		return
	}
	response.SuccessStatus(c, http.StatusCreated, gin.H{
		"document":  doc,
		"ingestion": ing,
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit := uint(0)
	offset := uint(0)
	if value := c.Query("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = uint(parsed)
		}
	}
	if value := c.Query("offset"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			offset = uint(parsed)
		}
	}
	docs, err := h.documents.List(c.Request.Context(), getUserID(c), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, ing, err := h.documents.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"document": doc, "ingestion": ing})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *DocumentHandler) Status(c *gin.Context) {
	ing, count, err := h.documents.Status(c.Request.Context(), getUserID(c), c.Param("id"), c.Param("ingestion_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	body := gin.H{"ingestion": ing}
	if ing.Status == model.IngestionStatusReady {
		body["chunk_count"] = count
	}
	response.Success(c, body)
}
