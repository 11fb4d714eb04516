package app

import (
	"github.com/yungbote/powerlens-backend/internal/http"
	"github.com/yungbote/powerlens-backend/internal/observability"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
)

func wireRouterConfig(log *logger.Logger, cfg Config, h Handlers, mw Middleware, metrics *observability.Metrics) http.RouterConfig {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		CORSOrigins:    cfg.CORSOrigins,
		AuthMiddleware: mw.Auth,

		AuthHandler:       h.Auth,
		TaxonomyHandler:   h.Taxonomy,
		DetectionHandler:  h.Detection,
		SessionHandler:    h.Session,
		ActivityHandler:   h.Activity,
		InspectionHandler: h.Inspection,
		HealthHandler:     h.Health,
	}
}
