package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/powerlens-backend/internal/data/repos/testutil"
	types "github.com/yungbote/powerlens-backend/internal/domain"
	"github.com/yungbote/powerlens-backend/internal/inference/client"
	"github.com/yungbote/powerlens-backend/internal/taxonomy"
)

const predictionLine = `{"image":"/data/T7_001.jpg","pred_image_label":"","detections":[` +
	`{"class_id":2,"class_name":"loose_joint_yellow","confidence":0.61,"polygon_xy":[[10.004,20],[30,20],[30,45.5],[10,45]]},` +
	`{"class_id":4,"confidence":0.33,"polygon_xy":[[100,100],[110,100],[110,104]]}],"timestamp":"2025-09-01T10:00:00Z"}`

type fakePredictor struct {
	pred  *client.Prediction
	err   error
	image string
}

func (f *fakePredictor) Predict(ctx context.Context, image string) (*client.Prediction, error) {
	f.image = image
	return f.pred, f.err
}

func TestIngestSeedsAISession(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	insp := testutil.SeedInspection(t, context.Background(), env.db, "TX-INGEST")

	pred, err := client.ParsePrediction([]byte(predictionLine))
	if err != nil {
		t.Fatalf("ParsePrediction: %v", err)
	}
	res, err := env.predictions.Ingest(bg(), insp.ID, pred)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	s := res.Session
	if s.Kind != types.SessionKindAIAnalysis || s.UserID != testutil.SystemUserID {
		t.Fatalf("Ingest: session %+v", s)
	}
	if s.Label != taxonomy.LabelPotentiallyFaulty || s.DetectionCount != 2 {
		t.Fatalf("Ingest: label=%q count=%d", s.Label, s.DetectionCount)
	}
	if len(res.Records) != 2 {
		t.Fatalf("Ingest: want 2 records got %d", len(res.Records))
	}
	for i, r := range res.Records {
		if r.LogEntryID != int64(i+1) || r.ActionType != types.ActionAdded || r.Source != types.SourceAIGenerated {
			t.Fatalf("Ingest record %d: %+v", i, r)
		}
	}
	if want := (types.BBox{X: 10, Y: 20, W: 20, H: 25.5}); res.Records[0].BBox != want {
		t.Fatalf("Ingest bbox: want=%+v got=%+v", want, res.Records[0].BBox)
	}
	var poly [][]float64
	if err := json.Unmarshal(res.Records[0].Polygon, &poly); err != nil || len(poly) != 4 || poly[0][0] != 10 {
		t.Fatalf("Ingest polygon: got=%v err=%v", poly, err)
	}

	added, err := env.annotations.AddDetection(bg(), AddDetectionInput{
		OriginalSessionID: s.ID, UserID: testutil.SeedUser(t, context.Background(), env.db, "u1@example.com").ID,
		ClassID: 0, Confidence: 0.5, X2: 1, Y2: 1,
	})
	if err != nil {
		t.Fatalf("AddDetection: %v", err)
	}
	if added.LogEntryID != 3 {
		t.Fatalf("AddDetection after ingest: log entry id want=3 got=%d", added.LogEntryID)
	}
}

func TestIngestRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	insp := testutil.SeedInspection(t, context.Background(), env.db, "TX-BAD")

	if _, err := env.predictions.Ingest(bg(), uuid.New(), &client.Prediction{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Ingest(missing inspection): want ErrNotFound got %v", err)
	}
	bad := &client.Prediction{Detections: []client.Detection{{ClassID: 42, Confidence: 0.5, BBox: &client.Box{W: 1, H: 1}}}}
	if _, err := env.predictions.Ingest(bg(), insp.ID, bad); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Ingest(unknown class): want ErrInvalidArgument got %v", err)
	}
	noGeom := &client.Prediction{Detections: []client.Detection{{ClassID: 1, Confidence: 0.5}}}
	if _, err := env.predictions.Ingest(bg(), insp.ID, noGeom); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Ingest(no geometry): want ErrInvalidArgument got %v", err)
	}
	var n int64
	env.db.Model(&types.Session{}).Count(&n)
	if n != 0 {
		t.Fatalf("rejected ingests left %d sessions", n)
	}
}

func TestIngestEmptyPredictionIsNormal(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	insp := testutil.SeedInspection(t, context.Background(), env.db, "TX-NORMAL")

	res, err := env.predictions.Ingest(bg(), insp.ID, &client.Prediction{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Session.Label != taxonomy.LabelNormal || len(res.Records) != 0 {
		t.Fatalf("Ingest: label=%q records=%d", res.Session.Label, len(res.Records))
	}
}

func TestRunCallsPredictor(t *testing.T) {
	pred, err := client.ParsePrediction([]byte(predictionLine))
	if err != nil {
		t.Fatalf("ParsePrediction: %v", err)
	}
	fake := &fakePredictor{pred: pred}
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), fake)
	insp := testutil.SeedInspection(t, context.Background(), env.db, "TX-RUN")

	res, err := env.predictions.Run(bg(), insp.ID, "https://images.example/t7.jpg")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fake.image != "https://images.example/t7.jpg" || len(res.Records) != 2 {
		t.Fatalf("Run: image=%q records=%d", fake.image, len(res.Records))
	}

	fake.err = errors.New("provider down")
	if _, err := env.predictions.Run(bg(), insp.ID, "x"); err == nil {
		t.Fatalf("Run: expected provider error")
	}
}

func TestRunWithoutPredictor(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	if _, err := env.predictions.Run(bg(), uuid.New(), "x"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Run: want ErrInvalidState got %v", err)
	}
}
