package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/yungbote/powerlens-backend/internal/data/repos"
	"github.com/yungbote/powerlens-backend/internal/data/repos/testutil"
	types "github.com/yungbote/powerlens-backend/internal/domain"
	"github.com/yungbote/powerlens-backend/internal/observability"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/taxonomy"
)

type testEnv struct {
	db       *gorm.DB
	metrics  *observability.Metrics
	sessions repos.SessionRepo
	records  repos.DetectionRecordRepo
	users    repos.UserRepo

	editing     EditingSessionService
	annotations AnnotationService
	activity    ActivityLogService
	predictions PredictionService
}

func newTestEnv(t *testing.T, cfg MutationConfig, locker KeyLocker, predictor Predictor) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	metrics, err := observability.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if cfg.SystemUserID == uuid.Nil {
		cfg.SystemUserID = testutil.SystemUserID
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = time.Millisecond
	}

	userRepo := repos.NewUserRepo(db, log)
	inspectionRepo := repos.NewInspectionRepo(db, log)
	sessionRepo := repos.NewSessionRepo(db, log)
	recordRepo := repos.NewDetectionRecordRepo(db, log)
	counterRepo := repos.NewLogCounterRepo(db, log)
	tax := taxonomy.Default()

	editing := NewEditingSessionService(db, log, sessionRepo, inspectionRepo, locker, metrics, cfg)
	return &testEnv{
		db:          db,
		metrics:     metrics,
		sessions:    sessionRepo,
		records:     recordRepo,
		users:       userRepo,
		editing:     editing,
		annotations: NewAnnotationService(db, log, editing, sessionRepo, recordRepo, counterRepo, inspectionRepo, tax, locker, metrics, cfg),
		activity:    NewActivityLogService(log, sessionRepo, recordRepo, inspectionRepo, userRepo, tax, metrics),
		predictions: NewPredictionService(db, log, sessionRepo, recordRepo, counterRepo, inspectionRepo, tax, predictor, metrics, cfg),
	}
}

func bg() dbctx.Context {
	return dbctx.Context{Ctx: context.Background()}
}

// seedAI creates an inspection whose AI session holds a single detection.
func (e *testEnv) seedAI(t *testing.T, classID int, bbox types.BBox) (*types.Inspection, *types.Session, *types.DetectionRecord) {
	t.Helper()
	ctx := context.Background()
	insp := testutil.SeedInspection(t, ctx, e.db, "TX-"+uuid.NewString()[:8])
	ai := testutil.SeedSession(t, ctx, e.db, insp.ID, testutil.SystemUserID, types.SessionKindAIAnalysis, taxonomy.LabelPotentiallyFaulty)
	rec := testutil.SeedAIRecord(t, ctx, e.db, ai, classID, bbox)
	return insp, ai, rec
}

func (e *testEnv) activeSessions(t *testing.T, inspectionID, userID uuid.UUID) []*types.Session {
	t.Helper()
	var out []*types.Session
	if err := e.db.Where("inspection_id = ? AND user_id = ? AND kind = ? AND label <> ?",
		inspectionID, userID, types.SessionKindManualEditing, types.LabelCompletedEditing).
		Find(&out).Error; err != nil {
		t.Fatalf("query active sessions: %v", err)
	}
	return out
}
