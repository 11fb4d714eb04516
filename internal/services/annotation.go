package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/yungbote/powerlens-backend/internal/data/repos"
	types "github.com/yungbote/powerlens-backend/internal/domain"
	"github.com/yungbote/powerlens-backend/internal/observability"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
	"github.com/yungbote/powerlens-backend/internal/taxonomy"
)

// AddDetectionInput carries a manual box given as two corner points.
type AddDetectionInput struct {
	OriginalSessionID uuid.UUID
	UserID            uuid.UUID
	ClassID           int
	Confidence        float64
	X1, Y1, X2, Y2    float64
	Comments          string
}

type EditDetectionInput struct {
	DetectionID    uuid.UUID
	UserID         uuid.UUID
	ClassID        int
	Confidence     float64
	X1, Y1, X2, Y2 float64
	Comments       string
}

// AnnotationService appends add/edit/delete actions to the detection log. Existing
// records are never modified; every action lands in the caller's editing session.
type AnnotationService interface {
	AddDetection(dbc dbctx.Context, in AddDetectionInput) (*types.DetectionRecord, error)
	EditDetection(dbc dbctx.Context, in EditDetectionInput) (*types.DetectionRecord, error)
	DeleteDetection(dbc dbctx.Context, detectionID, userID uuid.UUID, reason string) (*types.DetectionRecord, error)
	ListDetections(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.DetectionRecord, error)
	CurrentDetections(dbc dbctx.Context, inspectionID uuid.UUID) ([]*types.DetectionRecord, error)
}

type annotationService struct {
	log            *logger.Logger
	runner         *txRunner
	metrics        *observability.Metrics
	tax            *taxonomy.Taxonomy
	cfg            MutationConfig
	sessions       EditingSessionService
	sessionRepo    repos.SessionRepo
	recordRepo     repos.DetectionRecordRepo
	counterRepo    repos.LogCounterRepo
	inspectionRepo repos.InspectionRepo
}

func NewAnnotationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sessions EditingSessionService,
	sessionRepo repos.SessionRepo,
	recordRepo repos.DetectionRecordRepo,
	counterRepo repos.LogCounterRepo,
	inspectionRepo repos.InspectionRepo,
	tax *taxonomy.Taxonomy,
	locker KeyLocker,
	metrics *observability.Metrics,
	cfg MutationConfig,
) AnnotationService {
	log := baseLog.With("service", "AnnotationService")
	if tax == nil {
		tax = taxonomy.Default()
	}
	cfg = cfg.withDefaults()
	return &annotationService{
		log:            log,
		runner:         newTxRunner(db, log, locker, metrics, cfg),
		metrics:        metrics,
		tax:            tax,
		cfg:            cfg,
		sessions:       sessions,
		sessionRepo:    sessionRepo,
		recordRepo:     recordRepo,
		counterRepo:    counterRepo,
		inspectionRepo: inspectionRepo,
	}
}

func (s *annotationService) AddDetection(dbc dbctx.Context, in AddDetectionInput) (out *types.DetectionRecord, err error) {
	dbc, finish := s.begin(dbc, "add_detection")
	defer func() { finish(err) }()

	if err := s.validate(in.UserID, in.ClassID, in.Confidence, in.X1, in.Y1, in.X2, in.Y2); err != nil {
		return nil, err
	}
	anchor, err := s.sessions.ResolveAnchor(dbc, in.OriginalSessionID)
	if err != nil {
		return nil, err
	}

	err = s.runner.Run(dbc, "add_detection", sessionLockKey(anchor.InspectionID, in.UserID), func(inner dbctx.Context) error {
		session, err := s.sessions.GetOrCreate(inner, anchor.ID, in.UserID)
		if err != nil {
			return err
		}
		rec, err := s.appendRecord(inner, session, &types.DetectionRecord{
			ClassID:    in.ClassID,
			Confidence: in.Confidence,
			BBox:       types.BBoxFromCorners(in.X1, in.Y1, in.X2, in.Y2),
			Source:     types.SourceManuallyAdded,
			ActionType: types.ActionAdded,
			Comments:   strings.TrimSpace(in.Comments),
		})
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("detection added",
		"detection_id", out.ID,
		"session_id", out.SessionID,
		"inspection_id", out.InspectionID,
		"log_entry_id", out.LogEntryID,
		"user_id", in.UserID,
	)
	return out, nil
}

func (s *annotationService) EditDetection(dbc dbctx.Context, in EditDetectionInput) (out *types.DetectionRecord, err error) {
	dbc, finish := s.begin(dbc, "edit_detection")
	defer func() { finish(err) }()

	if err := s.validate(in.UserID, in.ClassID, in.Confidence, in.X1, in.Y1, in.X2, in.Y2); err != nil {
		return nil, err
	}
	target, anchor, err := s.loadTarget(dbc, in.DetectionID)
	if err != nil {
		return nil, err
	}

	err = s.runner.Run(dbc, "edit_detection", sessionLockKey(anchor.InspectionID, in.UserID), func(inner dbctx.Context) error {
		if err := s.checkTargetSession(inner, target); err != nil {
			return err
		}
		session, err := s.sessions.GetOrCreate(inner, anchor.ID, in.UserID)
		if err != nil {
			return err
		}
		originalID := target.ID
		rec, err := s.appendRecord(inner, session, &types.DetectionRecord{
			ClassID:          in.ClassID,
			Confidence:       in.Confidence,
			BBox:             types.BBoxFromCorners(in.X1, in.Y1, in.X2, in.Y2),
			Source:           target.Source,
			ActionType:       types.ActionEdited,
			OriginalRecordID: &originalID,
			Comments:         strings.TrimSpace(in.Comments),
		})
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("detection edited",
		"detection_id", out.ID,
		"original_record_id", target.ID,
		"session_id", out.SessionID,
		"log_entry_id", out.LogEntryID,
		"user_id", in.UserID,
	)
	return out, nil
}

func (s *annotationService) DeleteDetection(dbc dbctx.Context, detectionID, userID uuid.UUID, reason string) (out *types.DetectionRecord, err error) {
	dbc, finish := s.begin(dbc, "delete_detection")
	defer func() { finish(err) }()

	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidArgument)
	}
	target, anchor, err := s.loadTarget(dbc, detectionID)
	if err != nil {
		return nil, err
	}

	err = s.runner.Run(dbc, "delete_detection", sessionLockKey(anchor.InspectionID, userID), func(inner dbctx.Context) error {
		if err := s.checkTargetSession(inner, target); err != nil {
			return err
		}
		session, err := s.sessions.GetOrCreate(inner, anchor.ID, userID)
		if err != nil {
			return err
		}
		originalID := target.ID
		rec, err := s.appendRecord(inner, session, &types.DetectionRecord{
			ClassID:          target.ClassID,
			Confidence:       target.Confidence,
			BBox:             target.BBox,
			Source:           target.Source,
			ActionType:       types.ActionDeleted,
			OriginalRecordID: &originalID,
			Comments:         reason,
		})
		if err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("detection deleted",
		"detection_id", out.ID,
		"original_record_id", target.ID,
		"session_id", out.SessionID,
		"log_entry_id", out.LogEntryID,
		"user_id", userID,
	)
	return out, nil
}

func (s *annotationService) ListDetections(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.DetectionRecord, error) {
	session, err := s.sessionRepo.GetByID(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	return s.recordRepo.ListBySession(dbc, sessionID)
}

func (s *annotationService) CurrentDetections(dbc dbctx.Context, inspectionID uuid.UUID) ([]*types.DetectionRecord, error) {
	exists, err := s.inspectionRepo.Exists(dbc, inspectionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: inspection %s", ErrNotFound, inspectionID)
	}
	records, err := s.recordRepo.ListByInspection(dbc, inspectionID)
	if err != nil {
		return nil, err
	}
	return CurrentState(records), nil
}

// appendRecord stamps rec with the session, inspection and next log entry id, inserts
// it, and refreshes the session's cached detection count.
func (s *annotationService) appendRecord(inner dbctx.Context, session *types.Session, rec *types.DetectionRecord) (*types.DetectionRecord, error) {
	logEntryID, err := s.counterRepo.Next(inner, session.InspectionID)
	if err != nil {
		return nil, err
	}
	rec.SessionID = session.ID
	rec.InspectionID = session.InspectionID
	rec.LogEntryID = logEntryID
	rec.CreatedAt = time.Now().UTC()
	if _, err := s.recordRepo.Create(inner, []*types.DetectionRecord{rec}); err != nil {
		return nil, err
	}

	n, err := s.recordRepo.CountNotDeletedInSession(inner, session.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.SetDetectionCount(inner, session.ID, int(n)); err != nil {
		return nil, err
	}
	session.DetectionCount = int(n)
	return rec, nil
}

// loadTarget reads the superseded record and the anchor of its inspection. Both are
// immutable, so they are read before the mutation transaction to derive the lock key.
func (s *annotationService) loadTarget(dbc dbctx.Context, detectionID uuid.UUID) (*types.DetectionRecord, *types.Session, error) {
	if detectionID == uuid.Nil {
		return nil, nil, fmt.Errorf("%w: detection id required", ErrInvalidArgument)
	}
	target, err := s.recordRepo.GetByID(dbc, detectionID)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return nil, nil, fmt.Errorf("%w: detection %s", ErrNotFound, detectionID)
	}
	anchor, err := s.sessions.ResolveAnchor(dbc, target.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return target, anchor, nil
}

func (s *annotationService) checkTargetSession(inner dbctx.Context, target *types.DetectionRecord) error {
	if !s.cfg.LockFinishedSessions {
		return nil
	}
	owner, err := s.sessionRepo.GetByID(inner, target.SessionID)
	if err != nil {
		return err
	}
	if owner == nil {
		return fmt.Errorf("%w: session %s", ErrNotFound, target.SessionID)
	}
	if owner.IsFinished() {
		return fmt.Errorf("%w: detection %s belongs to finished session %s", ErrInvalidState, target.ID, owner.ID)
	}
	return nil
}

func (s *annotationService) validate(userID uuid.UUID, classID int, confidence, x1, y1, x2, y2 float64) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: user id required", ErrInvalidArgument)
	}
	if _, ok := s.tax.Lookup(classID); !ok {
		return fmt.Errorf("%w: unknown class id %d", ErrInvalidArgument, classID)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return fmt.Errorf("%w: confidence must be within [0,1], got %v", ErrInvalidArgument, confidence)
	}
	for _, v := range []float64{x1, y1, x2, y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: box coordinates must be finite", ErrInvalidArgument)
		}
	}
	if x2 < x1 || y2 < y1 {
		return fmt.Errorf("%w: box corners out of order (%v,%v)-(%v,%v)", ErrInvalidArgument, x1, y1, x2, y2)
	}
	return nil
}

// begin opens the operation span and returns a func recording outcome and latency.
func (s *annotationService) begin(dbc dbctx.Context, op string) (dbctx.Context, func(error)) {
	if dbc.Ctx == nil {
		dbc.Ctx = context.Background()
	}
	start := time.Now()
	ctx, span := observability.Tracer().Start(dbc.Ctx, "annotation."+op, trace.WithAttributes(attribute.String("annotation.op", op)))
	dbc.Ctx = ctx
	return dbc, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.ObserveMutation(op, outcomeOf(err), time.Since(start))
	}
}
