package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/powerlens-backend/internal/data/repos"
	types "github.com/yungbote/powerlens-backend/internal/domain"
	"github.com/yungbote/powerlens-backend/internal/observability"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
)

// EditingSessionService owns the lifecycle of per-user editing sessions.
// At most one unfinished MANUAL_EDITING session exists per (inspection, user).
type EditingSessionService interface {
	// ResolveAnchor maps any session id to the AI session of its inspection,
	// falling back to the referenced session when the inspection has no AI run.
	ResolveAnchor(dbc dbctx.Context, sessionID uuid.UUID) (*types.Session, error)
	GetOrCreate(dbc dbctx.Context, originalSessionID, userID uuid.UUID) (*types.Session, error)
	GetActive(dbc dbctx.Context, originalSessionID, userID uuid.UUID) (*types.Session, error)
	Finish(dbc dbctx.Context, sessionID uuid.UUID) error
	FinishEditing(dbc dbctx.Context, originalSessionID, userID uuid.UUID) error
}

type editingSessionService struct {
	log            *logger.Logger
	runner         *txRunner
	metrics        *observability.Metrics
	sessionRepo    repos.SessionRepo
	inspectionRepo repos.InspectionRepo
}

func NewEditingSessionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sessionRepo repos.SessionRepo,
	inspectionRepo repos.InspectionRepo,
	locker KeyLocker,
	metrics *observability.Metrics,
	cfg MutationConfig,
) EditingSessionService {
	log := baseLog.With("service", "EditingSessionService")
	return &editingSessionService{
		log:            log,
		runner:         newTxRunner(db, log, locker, metrics, cfg),
		metrics:        metrics,
		sessionRepo:    sessionRepo,
		inspectionRepo: inspectionRepo,
	}
}

func (s *editingSessionService) ResolveAnchor(dbc dbctx.Context, sessionID uuid.UUID) (*types.Session, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("%w: session id required", ErrInvalidArgument)
	}
	ref, err := s.sessionRepo.GetByID(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if ref.InspectionID == uuid.Nil {
		return nil, fmt.Errorf("%w: session %s has no inspection", ErrNotFound, sessionID)
	}
	exists, err := s.inspectionRepo.Exists(dbc, ref.InspectionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: inspection %s", ErrNotFound, ref.InspectionID)
	}
	if ref.Kind == types.SessionKindAIAnalysis {
		return ref, nil
	}
	ai, err := s.sessionRepo.FindLatestAIAnalysis(dbc, ref.InspectionID)
	if err != nil {
		return nil, err
	}
	if ai == nil {
		return ref, nil
	}
	return ai, nil
}

func (s *editingSessionService) GetOrCreate(dbc dbctx.Context, originalSessionID, userID uuid.UUID) (*types.Session, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidArgument)
	}
	anchor, err := s.ResolveAnchor(dbc, originalSessionID)
	if err != nil {
		return nil, err
	}

	var out *types.Session
	err = s.runner.Run(dbc, "get_or_create_session", sessionLockKey(anchor.InspectionID, userID), func(inner dbctx.Context) error {
		session, err := s.getOrCreate(inner, anchor.InspectionID, userID)
		if err != nil {
			return err
		}
		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// getOrCreate must run inside a transaction. A concurrent creator that committed first
// makes the insert fail on the active-editor unique index, and the retried transaction
// then finds that session.
func (s *editingSessionService) getOrCreate(inner dbctx.Context, inspectionID, userID uuid.UUID) (*types.Session, error) {
	ctx, span := observability.Tracer().Start(inner.Ctx, "annotation.session.get_or_create")
	defer span.End()
	inner.Ctx = ctx

	active, err := s.sessionRepo.FindActiveEditing(inner, inspectionID, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		span.SetAttributes(attribute.Bool("session.created", false))
		return active, nil
	}

	created, err := s.sessionRepo.Create(inner, []*types.Session{{
		InspectionID:   inspectionID,
		UserID:         userID,
		Kind:           types.SessionKindManualEditing,
		Label:          types.LabelEditingSession,
		DetectionCount: 0,
		CreatedAt:      time.Now().UTC(),
	}})
	if err != nil {
		return nil, err
	}
	session := created[0]
	span.SetAttributes(attribute.Bool("session.created", true), attribute.String("session.id", session.ID.String()))
	s.metrics.IncSessionCreated()
	s.log.Info("editing session opened", "session_id", session.ID, "inspection_id", inspectionID, "user_id", userID)
	return session, nil
}

func (s *editingSessionService) GetActive(dbc dbctx.Context, originalSessionID, userID uuid.UUID) (*types.Session, error) {
	anchor, err := s.ResolveAnchor(dbc, originalSessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionRepo.FindActiveEditing(dbc, anchor.InspectionID, userID)
}

func (s *editingSessionService) Finish(dbc dbctx.Context, sessionID uuid.UUID) error {
	session, err := s.sessionRepo.GetByID(dbc, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if !session.IsEditing() {
		return fmt.Errorf("%w: session %s is not an editing session", ErrInvalidState, sessionID)
	}
	if session.IsFinished() {
		return nil
	}
	return s.runner.Run(dbc, "finish_session", sessionLockKey(session.InspectionID, session.UserID), func(inner dbctx.Context) error {
		return s.finish(inner, session)
	})
}

// FinishEditing closes the caller's active session for the inspection, if any.
func (s *editingSessionService) FinishEditing(dbc dbctx.Context, originalSessionID, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: user id required", ErrInvalidArgument)
	}
	anchor, err := s.ResolveAnchor(dbc, originalSessionID)
	if err != nil {
		return err
	}
	return s.runner.Run(dbc, "finish_session", sessionLockKey(anchor.InspectionID, userID), func(inner dbctx.Context) error {
		active, err := s.sessionRepo.FindActiveEditing(inner, anchor.InspectionID, userID)
		if err != nil {
			return err
		}
		if active == nil {
			s.log.Debug("finish editing: no active session", "inspection_id", anchor.InspectionID, "user_id", userID)
			return nil
		}
		return s.finish(inner, active)
	})
}

func (s *editingSessionService) finish(inner dbctx.Context, session *types.Session) error {
	if err := s.sessionRepo.SetLabel(inner, session.ID, types.LabelCompletedEditing); err != nil {
		return err
	}
	session.Label = types.LabelCompletedEditing
	s.metrics.IncSessionFinished()
	s.log.Info("editing session finished", "session_id", session.ID, "inspection_id", session.InspectionID, "user_id", session.UserID)
	return nil
}
