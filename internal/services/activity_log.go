package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/powerlens-backend/internal/data/repos"
	types "github.com/yungbote/powerlens-backend/internal/domain"
	"github.com/yungbote/powerlens-backend/internal/observability"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
	"github.com/yungbote/powerlens-backend/internal/taxonomy"
)

type RecordView struct {
	DetectionID      uuid.UUID             `json:"detection_id"`
	OriginalRecordID *uuid.UUID            `json:"original_record_id"`
	LogEntryID       int64                 `json:"log_entry_id"`
	Source           types.DetectionSource `json:"source"`
	ActionType       types.ActionType      `json:"action_type"`
	ClassID          int                   `json:"class_id"`
	ClassName        string                `json:"class_name"`
	Reason           string                `json:"reason"`
	Comments         string                `json:"comments"`
	BBox             types.BBox            `json:"bbox"`
	Confidence       float64               `json:"confidence"`
	CreatedAt        time.Time             `json:"created_at"`
	OwnerUserID      uuid.UUID             `json:"owner_user_id"`
	OwnerName        string                `json:"owner_name"`
}

type SessionView struct {
	SessionID      uuid.UUID         `json:"session_id"`
	Kind           types.SessionKind `json:"kind"`
	Label          string            `json:"label"`
	OwnerUserID    uuid.UUID         `json:"owner_user_id"`
	OwnerName      string            `json:"owner_name"`
	CreatedAt      time.Time         `json:"created_at"`
	DetectionCount int               `json:"detection_count"`
	Records        []RecordView      `json:"records"`
}

// ActivityLogService renders an inspection's raw audit trail: sessions oldest first,
// each with its actions newest first. Nothing is deduplicated across edit chains.
type ActivityLogService interface {
	Build(dbc dbctx.Context, inspectionID uuid.UUID) ([]SessionView, error)
	BuildForSession(dbc dbctx.Context, sessionID uuid.UUID) ([]SessionView, error)
}

type activityLogService struct {
	log            *logger.Logger
	metrics        *observability.Metrics
	tax            *taxonomy.Taxonomy
	sessionRepo    repos.SessionRepo
	recordRepo     repos.DetectionRecordRepo
	inspectionRepo repos.InspectionRepo
	userRepo       repos.UserRepo
	group          singleflight.Group
}

func NewActivityLogService(
	baseLog *logger.Logger,
	sessionRepo repos.SessionRepo,
	recordRepo repos.DetectionRecordRepo,
	inspectionRepo repos.InspectionRepo,
	userRepo repos.UserRepo,
	tax *taxonomy.Taxonomy,
	metrics *observability.Metrics,
) ActivityLogService {
	if tax == nil {
		tax = taxonomy.Default()
	}
	return &activityLogService{
		log:            baseLog.With("service", "ActivityLogService"),
		metrics:        metrics,
		tax:            tax,
		sessionRepo:    sessionRepo,
		recordRepo:     recordRepo,
		inspectionRepo: inspectionRepo,
		userRepo:       userRepo,
	}
}

// Build coalesces concurrent non-transactional builds of the same inspection.
// The shared build ignores cancellation of whichever caller started it; each
// caller stops waiting when its own context is done.
func (s *activityLogService) Build(dbc dbctx.Context, inspectionID uuid.UUID) ([]SessionView, error) {
	if dbc.Tx != nil {
		return s.build(dbc, inspectionID)
	}
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	shared := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
	ch := s.group.DoChan(inspectionID.String(), func() (any, error) {
		return s.build(shared, inspectionID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		s.metrics.IncActivityBuild(res.Shared)
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]SessionView), nil
	}
}

func (s *activityLogService) BuildForSession(dbc dbctx.Context, sessionID uuid.UUID) ([]SessionView, error) {
	session, err := s.sessionRepo.GetByID(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	return s.Build(dbc, session.InspectionID)
}

func (s *activityLogService) build(dbc dbctx.Context, inspectionID uuid.UUID) ([]SessionView, error) {
	ctx, span := observability.Tracer().Start(dbc.Ctx, "annotation.activity_log")
	defer span.End()
	span.SetAttributes(attribute.String("inspection.id", inspectionID.String()))
	dbc.Ctx = ctx

	exists, err := s.inspectionRepo.Exists(dbc, inspectionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: inspection %s", ErrNotFound, inspectionID)
	}
	sessions, err := s.sessionRepo.ListByInspection(dbc, inspectionID)
	if err != nil {
		return nil, err
	}
	records, err := s.recordRepo.ListByInspection(dbc, inspectionID)
	if err != nil {
		return nil, err
	}

	ownerIDs := make([]uuid.UUID, 0, len(sessions))
	seen := map[uuid.UUID]bool{}
	for _, sess := range sessions {
		if !seen[sess.UserID] {
			seen[sess.UserID] = true
			ownerIDs = append(ownerIDs, sess.UserID)
		}
	}
	users, err := s.userRepo.GetByIDs(dbc, ownerIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	bySession := make(map[uuid.UUID][]*types.DetectionRecord, len(sessions))
	for _, r := range records {
		bySession[r.SessionID] = append(bySession[r.SessionID], r)
	}

	out := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		recs := bySession[sess.ID]
		sort.SliceStable(recs, func(i, j int) bool {
			if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
				return recs[i].CreatedAt.After(recs[j].CreatedAt)
			}
			return recs[i].LogEntryID > recs[j].LogEntryID
		})
		view := SessionView{
			SessionID:      sess.ID,
			Kind:           sess.Kind,
			Label:          sess.Label,
			OwnerUserID:    sess.UserID,
			OwnerName:      names[sess.UserID],
			CreatedAt:      sess.CreatedAt,
			DetectionCount: sess.DetectionCount,
			Records:        make([]RecordView, 0, len(recs)),
		}
		for _, r := range recs {
			view.Records = append(view.Records, s.recordView(r, sess.UserID, names[sess.UserID]))
		}
		out = append(out, view)
	}
	span.SetAttributes(attribute.Int("activity.sessions", len(out)), attribute.Int("activity.records", len(records)))
	return out, nil
}

func (s *activityLogService) recordView(r *types.DetectionRecord, ownerID uuid.UUID, ownerName string) RecordView {
	v := RecordView{
		DetectionID:      r.ID,
		OriginalRecordID: r.OriginalRecordID,
		LogEntryID:       r.LogEntryID,
		Source:           r.Source,
		ActionType:       r.ActionType,
		ClassID:          r.ClassID,
		Comments:         r.Comments,
		BBox:             r.BBox,
		Confidence:       r.Confidence,
		CreatedAt:        r.CreatedAt,
		OwnerUserID:      ownerID,
		OwnerName:        ownerName,
	}
	if c, ok := s.tax.Lookup(r.ClassID); ok {
		v.ClassName = c.Name
		v.Reason = c.Reason
	}
	return v
}
