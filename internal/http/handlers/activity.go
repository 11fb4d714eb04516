package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/powerlens-backend/internal/http/response"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
	"github.com/yungbote/powerlens-backend/internal/services"
)

type ActivityHandler struct {
	log      *logger.Logger
	activity services.ActivityLogService
}

func NewActivityHandler(log *logger.Logger, activity services.ActivityLogService) *ActivityHandler {
	return &ActivityHandler{
		log:      log.With("handler", "ActivityHandler"),
		activity: activity,
	}
}

// GET /api/inspections/:id/activity-log
func (h *ActivityHandler) InspectionActivityLog(c *gin.Context) {
	inspectionID, ok := parseIDParam(c, "invalid_inspection_id")
	if !ok {
		return
	}
	views, err := h.activity.Build(dbctx.Context{Ctx: c.Request.Context()}, inspectionID)
	if err != nil {
		respondServiceError(c, h.log, "activity_log", err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": views})
}

// GET /api/predictions/:id/activity-log
func (h *ActivityHandler) PredictionActivityLog(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "invalid_prediction_id")
	if !ok {
		return
	}
	views, err := h.activity.BuildForSession(dbctx.Context{Ctx: c.Request.Context()}, sessionID)
	if err != nil {
		respondServiceError(c, h.log, "activity_log", err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": views})
}
