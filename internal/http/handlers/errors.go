package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/powerlens-backend/internal/http/response"
	"github.com/yungbote/powerlens-backend/internal/platform/apierr"
	"github.com/yungbote/powerlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
	"github.com/yungbote/powerlens-backend/internal/services"
)

// classify maps service sentinels onto HTTP status and error code.
func classify(err error, fallbackCode string) *apierr.Error {
	if ae, ok := apierr.As(err); ok {
		return ae
	}
	switch {
	case errors.Is(err, services.ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, services.ErrInvalidArgument):
		return apierr.New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, services.ErrInvalidState):
		return apierr.New(http.StatusConflict, "invalid_state", err)
	case errors.Is(err, services.ErrConflict):
		return apierr.New(http.StatusServiceUnavailable, "conflict_retry", err)
	case errors.Is(err, services.ErrUnauthorized):
		return apierr.New(http.StatusUnauthorized, "unauthorized", err)
	default:
		return apierr.New(http.StatusInternalServerError, fallbackCode, err)
	}
}

func respondServiceError(c *gin.Context, log *logger.Logger, op string, err error) {
	ae := classify(err, op+"_failed")
	if ae.Status >= http.StatusInternalServerError {
		log.Error(op+" failed", "error", err, "status", ae.Status)
		if ae.Status == http.StatusInternalServerError {
			response.RespondError(c, ae.Status, ae.Code, errors.New("internal error"))
			return
		}
	} else {
		log.Debug(op+" rejected", "error", err, "status", ae.Status)
	}
	response.RespondError(c, ae.Status, ae.Code, ae.Err)
}

func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID := ctxutil.UserID(c.Request.Context())
	if userID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return uuid.Nil, false
	}
	return userID, true
}

func parseIDParam(c *gin.Context, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id == uuid.Nil {
		if err == nil {
			err = errors.New("id must not be nil")
		}
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}
