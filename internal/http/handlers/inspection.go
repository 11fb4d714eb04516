package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/powerlens-backend/internal/data/repos"
	types "github.com/yungbote/powerlens-backend/internal/domain"
	"github.com/yungbote/powerlens-backend/internal/http/response"
	"github.com/yungbote/powerlens-backend/internal/inference/client"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
	"github.com/yungbote/powerlens-backend/internal/services"
)

type InspectionHandler struct {
	log         *logger.Logger
	inspections repos.InspectionRepo
	predictions services.PredictionService
}

func NewInspectionHandler(log *logger.Logger, inspections repos.InspectionRepo, predictions services.PredictionService) *InspectionHandler {
	return &InspectionHandler{
		log:         log.With("handler", "InspectionHandler"),
		inspections: inspections,
		predictions: predictions,
	}
}

// POST /api/inspections
func (h *InspectionHandler) CreateInspection(c *gin.Context) {
	var req struct {
		TransformerNo string     `json:"transformer_no"`
		ImageURL      string     `json:"image_url"`
		InspectedAt   *time.Time `json:"inspected_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req.TransformerNo = strings.TrimSpace(req.TransformerNo)
	if req.TransformerNo == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_transformer_no", nil)
		return
	}
	created, err := h.inspections.Create(dbctx.Context{Ctx: c.Request.Context()}, []*types.Inspection{{
		TransformerNo: req.TransformerNo,
		ImageURL:      strings.TrimSpace(req.ImageURL),
		InspectedAt:   req.InspectedAt,
	}})
	if err != nil {
		respondServiceError(c, h.log, "create_inspection", err)
		return
	}
	response.RespondCreated(c, gin.H{"inspection": created[0]})
}

// GET /api/inspections/:id
func (h *InspectionHandler) GetInspection(c *gin.Context) {
	inspectionID, ok := parseIDParam(c, "invalid_inspection_id")
	if !ok {
		return
	}
	in, err := h.inspections.GetByID(dbctx.Context{Ctx: c.Request.Context()}, inspectionID)
	if err != nil {
		respondServiceError(c, h.log, "get_inspection", err)
		return
	}
	if in == nil {
		response.RespondError(c, http.StatusNotFound, "inspection_not_found", nil)
		return
	}
	response.RespondOK(c, gin.H{"inspection": in})
}

// POST /api/inspections/:id/predictions
func (h *InspectionHandler) IngestPrediction(c *gin.Context) {
	inspectionID, ok := parseIDParam(c, "invalid_inspection_id")
	if !ok {
		return
	}
	var pred client.Prediction
	if err := c.ShouldBindJSON(&pred); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_prediction", err)
		return
	}
	res, err := h.predictions.Ingest(dbctx.Context{Ctx: c.Request.Context()}, inspectionID, &pred)
	if err != nil {
		respondServiceError(c, h.log, "ingest_prediction", err)
		return
	}
	response.RespondCreated(c, res)
}

// POST /api/inspections/:id/predictions/run
func (h *InspectionHandler) RunPrediction(c *gin.Context) {
	inspectionID, ok := parseIDParam(c, "invalid_inspection_id")
	if !ok {
		return
	}
	var req struct {
		Image string `json:"image"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	image := strings.TrimSpace(req.Image)
	if image == "" {
		in, err := h.inspections.GetByID(dbc, inspectionID)
		if err != nil {
			respondServiceError(c, h.log, "run_prediction", err)
			return
		}
		if in == nil {
			response.RespondError(c, http.StatusNotFound, "inspection_not_found", nil)
			return
		}
		image = in.ImageURL
	}
	if image == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_image", errors.New("no image given and inspection has no image_url"))
		return
	}
	res, err := h.predictions.Run(dbc, inspectionID, image)
	if err != nil {
		var httpErr *client.HTTPError
		if errors.As(err, &httpErr) {
			h.log.Warn("inference provider error", "status", httpErr.StatusCode, "error", err)
			response.RespondError(c, http.StatusBadGateway, "inference_failed", err)
			return
		}
		respondServiceError(c, h.log, "run_prediction", err)
		return
	}
	response.RespondCreated(c, res)
}
