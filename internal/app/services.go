package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/powerlens-backend/internal/observability"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
	"github.com/yungbote/powerlens-backend/internal/services"
	"github.com/yungbote/powerlens-backend/internal/taxonomy"
)

type Services struct {
	Auth        services.AuthService
	Sessions    services.EditingSessionService
	Annotations services.AnnotationService
	Activity    services.ActivityLogService
	Predictions services.PredictionService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients, tax *taxonomy.Taxonomy, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")
	sessions := services.NewEditingSessionService(db, log, r.Session, r.Inspection, c.Locker, metrics, cfg.Mutation)
	return Services{
		Auth:     services.NewAuthService(log, r.User, cfg.JWTSecretKey, cfg.AccessTokenTTL),
		Sessions: sessions,
		Annotations: services.NewAnnotationService(
			db, log, sessions, r.Session, r.Detection, r.LogCounter, r.Inspection, tax, c.Locker, metrics, cfg.Mutation,
		),
		Activity: services.NewActivityLogService(log, r.Session, r.Detection, r.Inspection, r.User, tax, metrics),
		Predictions: services.NewPredictionService(
			db, log, r.Session, r.Detection, r.LogCounter, r.Inspection, tax, c.Inference, metrics, cfg.Mutation,
		),
	}
}
