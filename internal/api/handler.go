package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rongwang/fabricstock/internal/export"
	"github.com/rongwang/fabricstock/internal/models"
	"github.com/rongwang/fabricstock/internal/service"
	"github.com/rongwang/fabricstock/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler handles HTTP requests
type Handler struct {
	service service.Service
	logger  *utils.Logger
}

// NewHandler creates a new Handler
func NewHandler(service service.Service, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// SetupRoutes registers every route on router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.Health)

	api := router.Group("/api")
	api.Use(AuthMiddleware())
	{
		api.GET("/reference/:kind", h.ListReference)

		drafts := api.Group("/drafts")
		drafts.POST("", h.OpenDraft)
		drafts.GET("/:id", h.GetDraft)
		drafts.DELETE("/:id", h.CloseDraft)
		drafts.PUT("/:id/header", h.UpdateHeader)
		drafts.POST("/:id/diameters", h.RegisterDiameters)
		drafts.POST("/:id/items", h.AddItem)
		drafts.DELETE("/:id/items", h.RemoveItem)
		drafts.DELETE("/:id/items/:index", h.RemoveItemAt)
		drafts.PUT("/:id/items/:index/color", h.SetColor)
		drafts.PATCH("/:id/details", h.UpdateDetail)
		drafts.GET("/:id/colors", h.AvailableColors)
		drafts.GET("/:id/summary", h.Summary)
		drafts.GET("/:id/export", h.Export)
		drafts.POST("/:id/submit", h.Submit)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Reference data handlers
func (h *Handler) ListReference(c *gin.Context) {
	kind := models.ReferenceKind(c.Param("kind"))
	if !kind.Valid() {
		abortWithError(c, http.StatusNotFound, "UNKNOWN_KIND", fmt.Sprintf("Unknown reference kind %q", kind))
		return
	}

	items, err := h.service.ListReference(c.Request.Context(), kind)
	if err != nil {
		h.logger.Error("failed to list reference data", "kind", kind, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ReferenceListResponse{
		Status: "success",
		Kind:   string(kind),
		Items:  items,
	})
}

// Draft handlers
func (h *Handler) OpenDraft(c *gin.Context) {
	var req models.OpenDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	view, err := h.service.OpenDraft(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.logger.Error("failed to open draft", "kind", req.Kind, "record", req.RecordID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toDraftResponse(view))
}

func (h *Handler) GetDraft(c *gin.Context) {
	view, err := h.service.GetDraft(c.Request.Context(), currentUser(c), c.Param("id"))
	h.respondDraft(c, view, err)
}

func (h *Handler) CloseDraft(c *gin.Context) {
	if err := h.service.CloseDraft(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Draft closed",
	})
}

func (h *Handler) UpdateHeader(c *gin.Context) {
	var req models.UpdateHeaderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	view, err := h.service.SetHeader(c.Request.Context(), currentUser(c), c.Param("id"), req.Header)
	h.respondDraft(c, view, err)
}

func (h *Handler) RegisterDiameters(c *gin.Context) {
	var req models.RegisterDiametersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	view, err := h.service.RegisterDiameters(c.Request.Context(), currentUser(c), c.Param("id"), req.Diameters)
	h.respondDraft(c, view, err)
}

func (h *Handler) AddItem(c *gin.Context) {
	var req models.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	item, err := toLineItem(req)
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := h.service.AddItem(c.Request.Context(), currentUser(c), c.Param("id"), item)
	h.respondDraft(c, view, err)
}

func (h *Handler) RemoveItem(c *gin.Context) {
	var q models.RemoveItemQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		invalidRequest(c, err)
		return
	}

	view, err := h.service.RemoveItem(c.Request.Context(), currentUser(c), c.Param("id"), q.ColorID, q.Dia)
	h.respondDraft(c, view, err)
}

func (h *Handler) RemoveItemAt(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	view, err := h.service.RemoveItemAt(c.Request.Context(), currentUser(c), c.Param("id"), index)
	h.respondDraft(c, view, err)
}

func (h *Handler) SetColor(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	var req models.SetColorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	view, err := h.service.SetColor(c.Request.Context(), currentUser(c), c.Param("id"), index, req.ColorID)
	h.respondDraft(c, view, err)
}

func (h *Handler) UpdateDetail(c *gin.Context) {
	var req models.UpdateDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	update, err := toDetailUpdate(req)
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := h.service.UpdateDetail(c.Request.Context(), currentUser(c), c.Param("id"), req.ColorID, req.Dia, update)
	h.respondDraft(c, view, err)
}

func (h *Handler) AvailableColors(c *gin.Context) {
	index, err := strconv.Atoi(c.DefaultQuery("index", "-1"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "index must be an integer")
		return
	}

	colors, err := h.service.AvailableColors(c.Request.Context(), currentUser(c), c.Param("id"), index)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ReferenceListResponse{
		Status: "success",
		Kind:   string(models.ReferenceColors),
		Items:  colors,
	})
}

func (h *Handler) Summary(c *gin.Context) {
	view, err := h.service.GetDraft(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSummaryResponse(view.Grid.Summary))
}

func (h *Handler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	view, err := h.service.GetDraft(ctx, currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	colors, err := h.service.ListReference(ctx, models.ReferenceColors)
	if err != nil {
		respondError(c, err)
		return
	}
	names := make(map[int64]string, len(colors))
	for _, color := range colors {
		names[color.ID] = color.Name
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, view, names); err != nil {
		h.logger.Error("failed to export draft", "draft", view.ID, "error", err)
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.xlsx"`, view.Kind, view.ID))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) Submit(c *gin.Context) {
	resp, err := h.service.SubmitDraft(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) respondDraft(c *gin.Context, view *service.DraftView, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDraftResponse(view))
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "index must be a non-negative integer")
		return 0, false
	}
	return index, true
}
