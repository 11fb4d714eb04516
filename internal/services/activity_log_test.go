package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/powerlens-backend/internal/data/repos"
	"github.com/yungbote/powerlens-backend/internal/data/repos/testutil"
	types "github.com/yungbote/powerlens-backend/internal/domain"
	"github.com/yungbote/powerlens-backend/internal/inference/client"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
)

func TestActivityLogGroupsSessionsAndOrdersActions(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	ctx := context.Background()
	insp := testutil.SeedInspection(t, ctx, env.db, "TX-LOG")
	u1 := testutil.SeedUser(t, ctx, env.db, "u1@example.com")

	ingested, err := env.predictions.Ingest(bg(), insp.ID, &client.Prediction{
		Label: "Faulty",
		Detections: []client.Detection{
			{ClassID: 1, Confidence: 0.9, BBox: &client.Box{X: 10, Y: 10, W: 20, H: 20}},
			{ClassID: 4, Confidence: 0.4, BBox: &client.Box{X: 50, Y: 50, W: 5, H: 5}},
		},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	target := ingested.Records[0]

	edited, err := env.annotations.EditDetection(bg(), EditDetectionInput{
		DetectionID: target.ID, UserID: u1.ID, ClassID: 1, Confidence: 0.95, X1: 11, Y1: 11, X2: 31, Y2: 31, Comments: "snug",
	})
	if err != nil {
		t.Fatalf("EditDetection: %v", err)
	}
	deleted, err := env.annotations.DeleteDetection(bg(), edited.ID, u1.ID, "duplicate")
	if err != nil {
		t.Fatalf("DeleteDetection: %v", err)
	}

	views, err := env.activity.Build(bg(), insp.ID)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("Build: want 2 sessions got %d", len(views))
	}
	aiView, editView := views[0], views[1]
	if aiView.Kind != types.SessionKindAIAnalysis || aiView.SessionID != ingested.Session.ID {
		t.Fatalf("Build: first session should be the AI run, got %+v", aiView)
	}
	if aiView.OwnerName != "AI System" || aiView.DetectionCount != 2 || len(aiView.Records) != 2 {
		t.Fatalf("Build: AI view %+v", aiView)
	}
	if editView.OwnerUserID != u1.ID || editView.OwnerName != u1.Name || editView.Label != types.LabelEditingSession {
		t.Fatalf("Build: editing view %+v", editView)
	}
	if len(editView.Records) != 2 {
		t.Fatalf("Build: editing records want=2 got=%d", len(editView.Records))
	}
	newest, older := editView.Records[0], editView.Records[1]
	if newest.DetectionID != deleted.ID || older.DetectionID != edited.ID {
		t.Fatalf("Build: want newest-first [%s %s] got [%s %s]", deleted.ID, edited.ID, newest.DetectionID, older.DetectionID)
	}
	if newest.ActionType != types.ActionDeleted || newest.Comments != "duplicate" || *newest.OriginalRecordID != edited.ID {
		t.Fatalf("Build: deleted entry %+v", newest)
	}
	if older.Source != types.SourceAIGenerated || older.ClassName != "loose_joint_red" || older.Reason != "Loose Joint (Faulty)" {
		t.Fatalf("Build: edited entry %+v", older)
	}
	if older.OwnerName != u1.Name {
		t.Fatalf("Build: record owner want=%q got=%q", u1.Name, older.OwnerName)
	}

	bySession, err := env.activity.BuildForSession(bg(), editView.SessionID)
	if err != nil || len(bySession) != 2 {
		t.Fatalf("BuildForSession: got=%d err=%v", len(bySession), err)
	}
}

func TestActivityLogNotFound(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	if _, err := env.activity.Build(bg(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Build(missing): want ErrNotFound got %v", err)
	}
	if _, err := env.activity.BuildForSession(bg(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("BuildForSession(missing): want ErrNotFound got %v", err)
	}
}

func TestActivityLogEmptyInspection(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	insp := testutil.SeedInspection(t, context.Background(), env.db, "TX-EMPTY")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			views, err := env.activity.Build(bg(), insp.ID)
			if err != nil || len(views) != 0 {
				t.Errorf("Build: want empty got=%d err=%v", len(views), err)
			}
		}()
	}
	wg.Wait()
}

// gatedInspections blocks Exists until release is closed or the query context ends.
type gatedInspections struct {
	repos.InspectionRepo
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedInspections) Exists(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-dbc.Ctx.Done():
		return false, dbc.Ctx.Err()
	}
	return g.InspectionRepo.Exists(dbc, id)
}

func TestActivityLogCancelledCallerDoesNotFailOthers(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	insp, _, _ := env.seedAI(t, 1, types.BBox{X: 1, Y: 1, W: 4, H: 4})
	log := testutil.Logger(t)
	gate := &gatedInspections{
		InspectionRepo: repos.NewInspectionRepo(env.db, log),
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	svc := NewActivityLogService(log, env.sessions, env.records, gate, env.users, nil, env.metrics)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Build(dbctx.Context{Ctx: leaderCtx}, insp.ID)
		leaderErr <- err
	}()
	<-gate.entered

	type result struct {
		views []SessionView
		err   error
	}
	follower := make(chan result, 1)
	go func() {
		views, err := svc.Build(bg(), insp.ID)
		follower <- result{views, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-leaderErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled caller: want context.Canceled got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(gate.release)
	select {
	case res := <-follower:
		if res.err != nil {
			t.Fatalf("live caller: %v", res.err)
		}
		if len(res.views) != 1 || len(res.views[0].Records) != 1 {
			t.Fatalf("live caller: unexpected views %+v", res.views)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("live caller did not return")
	}
}
