package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/powerlens-backend/internal/http/response"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
	"github.com/yungbote/powerlens-backend/internal/services"
)

const defaultDeleteReason = "User deleted"

type DetectionHandler struct {
	log         *logger.Logger
	annotations services.AnnotationService
}

func NewDetectionHandler(log *logger.Logger, annotations services.AnnotationService) *DetectionHandler {
	return &DetectionHandler{
		log:         log.With("handler", "DetectionHandler"),
		annotations: annotations,
	}
}

type boxRequest struct {
	ClassID    *int     `json:"class_id" binding:"required"`
	Confidence *float64 `json:"confidence" binding:"required"`
	X1         *float64 `json:"x1" binding:"required"`
	Y1         *float64 `json:"y1" binding:"required"`
	X2         *float64 `json:"x2" binding:"required"`
	Y2         *float64 `json:"y2" binding:"required"`
	Comments   string   `json:"comments"`
}

// POST /api/detections
func (h *DetectionHandler) AddDetection(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req struct {
		boxRequest
		PredictionID *uuid.UUID `json:"prediction_id"`
		SessionID    *uuid.UUID `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sessionID := uuid.Nil
	switch {
	case req.PredictionID != nil:
		sessionID = *req.PredictionID
	case req.SessionID != nil:
		sessionID = *req.SessionID
	}
	if sessionID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "missing_prediction_id", nil)
		return
	}

	rec, err := h.annotations.AddDetection(dbctx.Context{Ctx: c.Request.Context()}, services.AddDetectionInput{
		OriginalSessionID: sessionID,
		UserID:            userID,
		ClassID:           *req.ClassID,
		Confidence:        *req.Confidence,
		X1:                *req.X1,
		Y1:                *req.Y1,
		X2:                *req.X2,
		Y2:                *req.Y2,
		Comments:          req.Comments,
	})
	if err != nil {
		respondServiceError(c, h.log, "add_detection", err)
		return
	}
	response.RespondCreated(c, gin.H{"detection": rec})
}

// PUT /api/detections/:id
func (h *DetectionHandler) EditDetection(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	detectionID, ok := parseIDParam(c, "invalid_detection_id")
	if !ok {
		return
	}
	var req boxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rec, err := h.annotations.EditDetection(dbctx.Context{Ctx: c.Request.Context()}, services.EditDetectionInput{
		DetectionID: detectionID,
		UserID:      userID,
		ClassID:     *req.ClassID,
		Confidence:  *req.Confidence,
		X1:          *req.X1,
		Y1:          *req.Y1,
		X2:          *req.X2,
		Y2:          *req.Y2,
		Comments:    req.Comments,
	})
	if err != nil {
		respondServiceError(c, h.log, "edit_detection", err)
		return
	}
	response.RespondOK(c, gin.H{"detection": rec})
}

// DELETE /api/detections/:id?reason=
func (h *DetectionHandler) DeleteDetection(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	detectionID, ok := parseIDParam(c, "invalid_detection_id")
	if !ok {
		return
	}
	reason := strings.TrimSpace(c.Query("reason"))
	if reason == "" {
		reason = defaultDeleteReason
	}
	rec, err := h.annotations.DeleteDetection(dbctx.Context{Ctx: c.Request.Context()}, detectionID, userID, reason)
	if err != nil {
		respondServiceError(c, h.log, "delete_detection", err)
		return
	}
	response.RespondOK(c, gin.H{"detection": rec})
}

// GET /api/predictions/:id/detections
func (h *DetectionHandler) ListDetections(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "invalid_prediction_id")
	if !ok {
		return
	}
	records, err := h.annotations.ListDetections(dbctx.Context{Ctx: c.Request.Context()}, sessionID)
	if err != nil {
		respondServiceError(c, h.log, "list_detections", err)
		return
	}
	response.RespondOK(c, gin.H{"detections": records})
}

// GET /api/inspections/:id/detections/current
func (h *DetectionHandler) CurrentDetections(c *gin.Context) {
	inspectionID, ok := parseIDParam(c, "invalid_inspection_id")
	if !ok {
		return
	}
	records, err := h.annotations.CurrentDetections(dbctx.Context{Ctx: c.Request.Context()}, inspectionID)
	if err != nil {
		respondServiceError(c, h.log, "current_detections", err)
		return
	}
	response.RespondOK(c, gin.H{"detections": records})
}
