package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/powerlens-backend/internal/http/handlers"
	httpMW "github.com/yungbote/powerlens-backend/internal/http/middleware"
	"github.com/yungbote/powerlens-backend/internal/observability"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler       *httpH.AuthHandler
	TaxonomyHandler   *httpH.TaxonomyHandler
	DetectionHandler  *httpH.DetectionHandler
	SessionHandler    *httpH.SessionHandler
	ActivityHandler   *httpH.ActivityHandler
	InspectionHandler *httpH.InspectionHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log, "/healthcheck", "/metrics"))
	r.Use(httpMW.Metrics(cfg.Metrics, "/metrics", "/healthcheck"))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
		}
		if cfg.TaxonomyHandler != nil {
			api.GET("/classes", cfg.TaxonomyHandler.ListClasses)
		}
	}

	protected := api.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Inspections
		if cfg.InspectionHandler != nil {
			protected.POST("/inspections", cfg.InspectionHandler.CreateInspection)
			protected.GET("/inspections/:id", cfg.InspectionHandler.GetInspection)
			protected.POST("/inspections/:id/predictions", cfg.InspectionHandler.IngestPrediction)
			protected.POST("/inspections/:id/predictions/run", cfg.InspectionHandler.RunPrediction)
		}

		// Detections
		if cfg.DetectionHandler != nil {
			protected.POST("/detections", cfg.DetectionHandler.AddDetection)
			protected.PUT("/detections/:id", cfg.DetectionHandler.EditDetection)
			protected.DELETE("/detections/:id", cfg.DetectionHandler.DeleteDetection)
			protected.GET("/predictions/:id/detections", cfg.DetectionHandler.ListDetections)
			protected.GET("/inspections/:id/detections/current", cfg.DetectionHandler.CurrentDetections)
		}

		// Editing sessions
		if cfg.SessionHandler != nil {
			protected.GET("/predictions/:id/editing-session", cfg.SessionHandler.GetEditingSession)
			protected.POST("/predictions/:id/finish-editing", cfg.SessionHandler.FinishEditing)
		}

		// Activity log
		if cfg.ActivityHandler != nil {
			protected.GET("/inspections/:id/activity-log", cfg.ActivityHandler.InspectionActivityLog)
			protected.GET("/predictions/:id/activity-log", cfg.ActivityHandler.PredictionActivityLog)
		}
	}

	return r
}
