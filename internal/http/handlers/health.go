package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/powerlens-backend/internal/http/response"
	"github.com/yungbote/powerlens-backend/internal/taxonomy"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler { return &HealthHandler{db: db} }

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			response.RespondError(c, http.StatusServiceUnavailable, "db_unavailable", err)
			return
		}
	}
	c.String(http.StatusOK, "ok")
}

type TaxonomyHandler struct {
	tax *taxonomy.Taxonomy
}

func NewTaxonomyHandler(tax *taxonomy.Taxonomy) *TaxonomyHandler {
	if tax == nil {
		tax = taxonomy.Default()
	}
	return &TaxonomyHandler{tax: tax}
}

// GET /api/classes
func (h *TaxonomyHandler) ListClasses(c *gin.Context) {
	response.RespondOK(c, gin.H{"classes": h.tax.All()})
}
