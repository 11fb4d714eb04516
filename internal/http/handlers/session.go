package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/powerlens-backend/internal/http/response"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
	"github.com/yungbote/powerlens-backend/internal/services"
)

type SessionHandler struct {
	log      *logger.Logger
	sessions services.EditingSessionService
}

func NewSessionHandler(log *logger.Logger, sessions services.EditingSessionService) *SessionHandler {
	return &SessionHandler{
		log:      log.With("handler", "SessionHandler"),
		sessions: sessions,
	}
}

// GET /api/predictions/:id/editing-session
func (h *SessionHandler) GetEditingSession(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	predictionID, ok := parseIDParam(c, "invalid_prediction_id")
	if !ok {
		return
	}
	session, err := h.sessions.GetActive(dbctx.Context{Ctx: c.Request.Context()}, predictionID, userID)
	if err != nil {
		respondServiceError(c, h.log, "get_editing_session", err)
		return
	}
	if session == nil {
		response.RespondNoContent(c)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// POST /api/predictions/:id/finish-editing
func (h *SessionHandler) FinishEditing(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	predictionID, ok := parseIDParam(c, "invalid_prediction_id")
	if !ok {
		return
	}
	if err := h.sessions.FinishEditing(dbctx.Context{Ctx: c.Request.Context()}, predictionID, userID); err != nil {
		respondServiceError(c, h.log, "finish_editing", err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
