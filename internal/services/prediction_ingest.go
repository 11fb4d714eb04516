package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/powerlens-backend/internal/data/repos"
	types "github.com/yungbote/powerlens-backend/internal/domain"
	"github.com/yungbote/powerlens-backend/internal/inference/client"
	"github.com/yungbote/powerlens-backend/internal/observability"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
	"github.com/yungbote/powerlens-backend/internal/taxonomy"
)

// Predictor is the inference provider seen by the ingest path.
type Predictor interface {
	Predict(ctx context.Context, image string) (*client.Prediction, error)
}

type IngestResult struct {
	Session *types.Session           `json:"session"`
	Records []*types.DetectionRecord `json:"records"`
}

// PredictionService seeds AI_ANALYSIS sessions from inference output.
type PredictionService interface {
	Ingest(dbc dbctx.Context, inspectionID uuid.UUID, pred *client.Prediction) (*IngestResult, error)
	Run(dbc dbctx.Context, inspectionID uuid.UUID, image string) (*IngestResult, error)
}

type predictionService struct {
	log            *logger.Logger
	runner         *txRunner
	metrics        *observability.Metrics
	tax            *taxonomy.Taxonomy
	predictor      Predictor
	systemUserID   uuid.UUID
	sessionRepo    repos.SessionRepo
	recordRepo     repos.DetectionRecordRepo
	counterRepo    repos.LogCounterRepo
	inspectionRepo repos.InspectionRepo
}

func NewPredictionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sessionRepo repos.SessionRepo,
	recordRepo repos.DetectionRecordRepo,
	counterRepo repos.LogCounterRepo,
	inspectionRepo repos.InspectionRepo,
	tax *taxonomy.Taxonomy,
	predictor Predictor,
	metrics *observability.Metrics,
	cfg MutationConfig,
) PredictionService {
	log := baseLog.With("service", "PredictionService")
	if tax == nil {
		tax = taxonomy.Default()
	}
	return &predictionService{
		log:            log,
		runner:         newTxRunner(db, log, nil, metrics, cfg),
		metrics:        metrics,
		tax:            tax,
		predictor:      predictor,
		systemUserID:   cfg.SystemUserID,
		sessionRepo:    sessionRepo,
		recordRepo:     recordRepo,
		counterRepo:    counterRepo,
		inspectionRepo: inspectionRepo,
	}
}

func (s *predictionService) Ingest(dbc dbctx.Context, inspectionID uuid.UUID, pred *client.Prediction) (*IngestResult, error) {
	if dbc.Ctx == nil {
		dbc.Ctx = context.Background()
	}
	ctx, span := observability.Tracer().Start(dbc.Ctx, "annotation.ingest_prediction")
	defer span.End()
	dbc.Ctx = ctx

	if pred == nil {
		return nil, fmt.Errorf("%w: prediction required", ErrInvalidArgument)
	}
	if s.systemUserID == uuid.Nil {
		return nil, fmt.Errorf("%w: system user not configured", ErrInvalidState)
	}
	boxes := make([]client.Box, len(pred.Detections))
	for i, d := range pred.Detections {
		if _, ok := s.tax.Lookup(d.ClassID); !ok {
			return nil, fmt.Errorf("%w: detection %d: unknown class id %d", ErrInvalidArgument, i, d.ClassID)
		}
		if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
			return nil, fmt.Errorf("%w: detection %d: confidence %v out of range", ErrInvalidArgument, i, d.Confidence)
		}
		box, ok := d.BoundingBox()
		if !ok {
			return nil, fmt.Errorf("%w: detection %d has neither bbox nor polygon", ErrInvalidArgument, i)
		}
		boxes[i] = box
	}
	label := pred.Label
	if label == "" {
		label = s.tax.ImageLabel(client.ClassIDs(pred.Detections))
	}
	span.SetAttributes(attribute.String("inspection.id", inspectionID.String()), attribute.Int("prediction.detections", len(pred.Detections)))

	var out *IngestResult
	err := s.runner.Run(dbc, "ingest_prediction", "", func(inner dbctx.Context) error {
		exists, err := s.inspectionRepo.Exists(inner, inspectionID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: inspection %s", ErrNotFound, inspectionID)
		}
		now := time.Now().UTC()
		created, err := s.sessionRepo.Create(inner, []*types.Session{{
			InspectionID:   inspectionID,
			UserID:         s.systemUserID,
			Kind:           types.SessionKindAIAnalysis,
			Label:          label,
			DetectionCount: len(pred.Detections),
			CreatedAt:      now,
		}})
		if err != nil {
			return err
		}
		session := created[0]

		records := make([]*types.DetectionRecord, 0, len(pred.Detections))
		if len(pred.Detections) > 0 {
			first, err := s.counterRepo.Reserve(inner, inspectionID, len(pred.Detections))
			if err != nil {
				return err
			}
			for i, d := range pred.Detections {
				rec := &types.DetectionRecord{
					SessionID:    session.ID,
					InspectionID: inspectionID,
					LogEntryID:   first + int64(i),
					ClassID:      d.ClassID,
					Confidence:   d.Confidence,
					BBox:         types.BBox{X: boxes[i].X, Y: boxes[i].Y, W: boxes[i].W, H: boxes[i].H},
					Source:       types.SourceAIGenerated,
					ActionType:   types.ActionAdded,
					CreatedAt:    now,
				}
				if poly := d.RoundedPolygon(); len(poly) > 0 {
					raw, err := json.Marshal(poly)
					if err != nil {
						return err
					}
					rec.Polygon = datatypes.JSON(raw)
				}
				records = append(records, rec)
			}
			if _, err := s.recordRepo.Create(inner, records); err != nil {
				return err
			}
		}
		out = &IngestResult{Session: session, Records: records}
		return nil
	})
	if err != nil {
		s.log.Warn("ingest prediction failed", "inspection_id", inspectionID, "error", err)
		return nil, err
	}
	s.metrics.AddIngested(len(out.Records))
	s.log.Info("prediction ingested",
		"inspection_id", inspectionID,
		"session_id", out.Session.ID,
		"label", out.Session.Label,
		"detections", len(out.Records),
	)
	return out, nil
}

func (s *predictionService) Run(dbc dbctx.Context, inspectionID uuid.UUID, image string) (*IngestResult, error) {
	if s.predictor == nil {
		return nil, fmt.Errorf("%w: inference provider not configured", ErrInvalidState)
	}
	if image == "" {
		return nil, fmt.Errorf("%w: image required", ErrInvalidArgument)
	}
	if dbc.Ctx == nil {
		dbc.Ctx = context.Background()
	}
	exists, err := s.inspectionRepo.Exists(dbc, inspectionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: inspection %s", ErrNotFound, inspectionID)
	}
	pred, err := s.predictor.Predict(dbc.Ctx, image)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	return s.Ingest(dbc, inspectionID, pred)
}
