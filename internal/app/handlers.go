package app

import (
	"gorm.io/gorm"

	httpH "github.com/yungbote/powerlens-backend/internal/http/handlers"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
	"github.com/yungbote/powerlens-backend/internal/taxonomy"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Auth       *httpH.AuthHandler
	Taxonomy   *httpH.TaxonomyHandler
	Detection  *httpH.DetectionHandler
	Session    *httpH.SessionHandler
	Activity   *httpH.ActivityHandler
	Inspection *httpH.InspectionHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, r Repos, s Services, tax *taxonomy.Taxonomy) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(db),
		Auth:       httpH.NewAuthHandler(log, s.Auth),
		Taxonomy:   httpH.NewTaxonomyHandler(tax),
		Detection:  httpH.NewDetectionHandler(log, s.Annotations),
		Session:    httpH.NewSessionHandler(log, s.Sessions),
		Activity:   httpH.NewActivityHandler(log, s.Activity),
		Inspection: httpH.NewInspectionHandler(log, r.Inspection, s.Predictions),
	}
}
