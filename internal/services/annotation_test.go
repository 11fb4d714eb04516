package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/powerlens-backend/internal/data/repos/testutil"
	types "github.com/yungbote/powerlens-backend/internal/domain"
)

func TestEditCreatesEditingSessionAndPreservesSource(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	insp, ai, original := env.seedAI(t, 2, types.BBox{X: 10, Y: 10, W: 50, H: 50})
	u1 := testutil.SeedUser(t, context.Background(), env.db, "u1@example.com")

	edited, err := env.annotations.EditDetection(bg(), EditDetectionInput{
		DetectionID: original.ID,
		UserID:      u1.ID,
		ClassID:     2,
		Confidence:  0.9,
		X1:          12, Y1: 12, X2: 64, Y2: 64,
		Comments: "tightened box",
	})
	if err != nil {
		t.Fatalf("EditDetection: %v", err)
	}
	if edited.ActionType != types.ActionEdited || edited.Source != types.SourceAIGenerated {
		t.Fatalf("EditDetection: want EDITED/AI_GENERATED got %s/%s", edited.ActionType, edited.Source)
	}
	if edited.OriginalRecordID == nil || *edited.OriginalRecordID != original.ID {
		t.Fatalf("EditDetection: original record id: want=%s got=%v", original.ID, edited.OriginalRecordID)
	}
	if want := (types.BBox{X: 12, Y: 12, W: 52, H: 52}); edited.BBox != want {
		t.Fatalf("EditDetection: bbox: want=%+v got=%+v", want, edited.BBox)
	}
	if edited.Comments != "tightened box" || edited.InspectionID != insp.ID {
		t.Fatalf("EditDetection: unexpected record %+v", edited)
	}
	if edited.LogEntryID <= original.LogEntryID {
		t.Fatalf("EditDetection: log entry id %d not after %d", edited.LogEntryID, original.LogEntryID)
	}

	session, err := env.sessions.GetByID(bg(), edited.SessionID)
	if err != nil || session == nil {
		t.Fatalf("GetByID: got=%v err=%v", session, err)
	}
	if session.ID == ai.ID || session.Kind != types.SessionKindManualEditing || session.UserID != u1.ID {
		t.Fatalf("editing session: unexpected %+v", session)
	}
	if session.Label != types.LabelEditingSession || session.DetectionCount != 1 {
		t.Fatalf("editing session: want label=%q count=1 got %q/%d", types.LabelEditingSession, session.Label, session.DetectionCount)
	}

	stored, err := env.records.GetByID(bg(), original.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID(original): got=%v err=%v", stored, err)
	}
	if stored.BBox != original.BBox || stored.ActionType != types.ActionAdded || stored.SessionID != ai.ID {
		t.Fatalf("original record changed: before=%+v after=%+v", original, stored)
	}
}

func TestConsecutiveAddsShareSession(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	_, ai, _ := env.seedAI(t, 1, types.BBox{X: 1, Y: 1, W: 5, H: 5})
	u1 := testutil.SeedUser(t, context.Background(), env.db, "u1@example.com")

	in := AddDetectionInput{OriginalSessionID: ai.ID, UserID: u1.ID, ClassID: 3, Confidence: 0.7, X1: 0, Y1: 0, X2: 10, Y2: 10}
	first, err := env.annotations.AddDetection(bg(), in)
	if err != nil {
		t.Fatalf("AddDetection #1: %v", err)
	}
	second, err := env.annotations.AddDetection(bg(), in)
	if err != nil {
		t.Fatalf("AddDetection #2: %v", err)
	}
	if first.SessionID != second.SessionID {
		t.Fatalf("AddDetection: want same session, got %s and %s", first.SessionID, second.SessionID)
	}
	if first.Source != types.SourceManuallyAdded || first.ActionType != types.ActionAdded || first.OriginalRecordID != nil {
		t.Fatalf("AddDetection: unexpected record %+v", first)
	}
	if second.LogEntryID != first.LogEntryID+1 {
		t.Fatalf("AddDetection: log entry ids want consecutive got %d, %d", first.LogEntryID, second.LogEntryID)
	}
	if got := len(env.activeSessions(t, ai.InspectionID, u1.ID)); got != 1 {
		t.Fatalf("active sessions: want=1 got=%d", got)
	}
	session, _ := env.sessions.GetByID(bg(), first.SessionID)
	if session.DetectionCount != 2 {
		t.Fatalf("detection count: want=2 got=%d", session.DetectionCount)
	}
}

func TestFinishThenAddOpensNewSession(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	_, ai, _ := env.seedAI(t, 0, types.BBox{X: 1, Y: 1, W: 5, H: 5})
	u1 := testutil.SeedUser(t, context.Background(), env.db, "u1@example.com")

	in := AddDetectionInput{OriginalSessionID: ai.ID, UserID: u1.ID, ClassID: 0, Confidence: 0.5, X1: 1, Y1: 1, X2: 2, Y2: 2}
	first, err := env.annotations.AddDetection(bg(), in)
	if err != nil {
		t.Fatalf("AddDetection: %v", err)
	}
	if err := env.editing.FinishEditing(bg(), ai.ID, u1.ID); err != nil {
		t.Fatalf("FinishEditing: %v", err)
	}
	finished, _ := env.sessions.GetByID(bg(), first.SessionID)
	if finished.Label != types.LabelCompletedEditing {
		t.Fatalf("FinishEditing: label want=%q got=%q", types.LabelCompletedEditing, finished.Label)
	}
	active, err := env.editing.GetActive(bg(), ai.ID, u1.ID)
	if err != nil || active != nil {
		t.Fatalf("GetActive after finish: want=nil got=%v err=%v", active, err)
	}

	second, err := env.annotations.AddDetection(bg(), in)
	if err != nil {
		t.Fatalf("AddDetection after finish: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Fatalf("AddDetection after finish reused finished session %s", first.SessionID)
	}
	if got := len(env.activeSessions(t, ai.InspectionID, u1.ID)); got != 1 {
		t.Fatalf("active sessions: want=1 got=%d", got)
	}
}

func TestDeleteManualDetection(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	_, ai, _ := env.seedAI(t, 4, types.BBox{X: 1, Y: 1, W: 5, H: 5})
	u1 := testutil.SeedUser(t, context.Background(), env.db, "u1@example.com")

	added, err := env.annotations.AddDetection(bg(), AddDetectionInput{
		OriginalSessionID: ai.ID, UserID: u1.ID, ClassID: 4, Confidence: 0.6, X1: 5, Y1: 6, X2: 25, Y2: 36,
	})
	if err != nil {
		t.Fatalf("AddDetection: %v", err)
	}
	deleted, err := env.annotations.DeleteDetection(bg(), added.ID, u1.ID, "false positive")
	if err != nil {
		t.Fatalf("DeleteDetection: %v", err)
	}
	if deleted.ActionType != types.ActionDeleted || deleted.Source != types.SourceManuallyAdded {
		t.Fatalf("DeleteDetection: want DELETED/MANUALLY_ADDED got %s/%s", deleted.ActionType, deleted.Source)
	}
	if deleted.BBox != added.BBox || deleted.ClassID != added.ClassID || deleted.Confidence != added.Confidence {
		t.Fatalf("DeleteDetection: geometry changed: added=%+v deleted=%+v", added, deleted)
	}
	if deleted.Comments != "false positive" || deleted.OriginalRecordID == nil || *deleted.OriginalRecordID != added.ID {
		t.Fatalf("DeleteDetection: unexpected record %+v", deleted)
	}
	if deleted.SessionID != added.SessionID {
		t.Fatalf("DeleteDetection: want same editing session")
	}
	session, _ := env.sessions.GetByID(bg(), deleted.SessionID)
	if session.DetectionCount != 1 {
		t.Fatalf("detection count: want=1 got=%d", session.DetectionCount)
	}
}

// The SQLite test handle has one connection, so these transactions are serialized by
// the store. The lost insert race is covered by TestGetOrCreateRetriesAfterLosingInsertRace.
func TestConcurrentAddsShareOneSession(t *testing.T) {
	cases := []struct {
		name   string
		locker KeyLocker
	}{
		{name: "local_lock", locker: NewLocalLocker()},
		{name: "store_serialized", locker: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, MutationConfig{MaxAttempts: 10}, tc.locker, nil)
			_, ai, _ := env.seedAI(t, 1, types.BBox{X: 1, Y: 1, W: 5, H: 5})
			u1 := testutil.SeedUser(t, context.Background(), env.db, "u1@example.com")

			const n = 50
			results := make([]*types.DetectionRecord, n)
			var g errgroup.Group
			for i := 0; i < n; i++ {
				g.Go(func() error {
					rec, err := env.annotations.AddDetection(bg(), AddDetectionInput{
						OriginalSessionID: ai.ID,
						UserID:            u1.ID,
						ClassID:           1,
						Confidence:        0.5,
						X1:                float64(i), Y1: 0, X2: float64(i) + 1, Y2: 1,
					})
					results[i] = rec
					return err
				})
			}
			if err := g.Wait(); err != nil {
				t.Fatalf("concurrent AddDetection: %v", err)
			}

			active := env.activeSessions(t, ai.InspectionID, u1.ID)
			if len(active) != 1 {
				t.Fatalf("active sessions: want=1 got=%d", len(active))
			}
			seen := map[int64]bool{}
			for _, rec := range results {
				if rec.SessionID != active[0].ID {
					t.Fatalf("record %s in session %s, want %s", rec.ID, rec.SessionID, active[0].ID)
				}
				if seen[rec.LogEntryID] {
					t.Fatalf("duplicate log entry id %d", rec.LogEntryID)
				}
				seen[rec.LogEntryID] = true
			}
			session, _ := env.sessions.GetByID(bg(), active[0].ID)
			if session.DetectionCount != n {
				t.Fatalf("detection count: want=%d got=%d", n, session.DetectionCount)
			}
		})
	}
}

func TestEditChainKeepsProvenance(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	_, _, original := env.seedAI(t, 2, types.BBox{X: 10, Y: 10, W: 50, H: 50})
	u1 := testutil.SeedUser(t, context.Background(), env.db, "u1@example.com")
	u2 := testutil.SeedUser(t, context.Background(), env.db, "u2@example.com")

	e1, err := env.annotations.EditDetection(bg(), EditDetectionInput{
		DetectionID: original.ID, UserID: u1.ID, ClassID: 2, Confidence: 0.8, X1: 10, Y1: 10, X2: 20, Y2: 20,
	})
	if err != nil {
		t.Fatalf("EditDetection #1: %v", err)
	}
	e2, err := env.annotations.EditDetection(bg(), EditDetectionInput{
		DetectionID: e1.ID, UserID: u2.ID, ClassID: 3, Confidence: 0.95, X1: 11, Y1: 11, X2: 21, Y2: 21,
	})
	if err != nil {
		t.Fatalf("EditDetection #2: %v", err)
	}
	if e2.Source != types.SourceAIGenerated || *e2.OriginalRecordID != e1.ID {
		t.Fatalf("EditDetection #2: unexpected record %+v", e2)
	}
	if e1.SessionID == e2.SessionID {
		t.Fatalf("EditDetection: different users must not share a session")
	}
	owner, _ := env.sessions.GetByID(bg(), e2.SessionID)
	if owner.UserID != u2.ID || owner.InspectionID != original.InspectionID {
		t.Fatalf("EditDetection #2: session %+v", owner)
	}
}

func TestAddReferencingEditingSessionResolvesInspection(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	_, ai, _ := env.seedAI(t, 1, types.BBox{X: 1, Y: 1, W: 5, H: 5})
	u1 := testutil.SeedUser(t, context.Background(), env.db, "u1@example.com")

	first, err := env.annotations.AddDetection(bg(), AddDetectionInput{
		OriginalSessionID: ai.ID, UserID: u1.ID, ClassID: 1, Confidence: 0.5, X2: 1, Y2: 1,
	})
	if err != nil {
		t.Fatalf("AddDetection: %v", err)
	}
	second, err := env.annotations.AddDetection(bg(), AddDetectionInput{
		OriginalSessionID: first.SessionID, UserID: u1.ID, ClassID: 1, Confidence: 0.5, X2: 1, Y2: 1,
	})
	if err != nil {
		t.Fatalf("AddDetection via editing session: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("AddDetection via editing session: want session %s got %s", first.SessionID, second.SessionID)
	}
	anchor, err := env.editing.ResolveAnchor(bg(), first.SessionID)
	if err != nil || anchor.ID != ai.ID {
		t.Fatalf("ResolveAnchor: want=%s got=%v err=%v", ai.ID, anchor, err)
	}
}

func TestMutationErrors(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	_, ai, rec := env.seedAI(t, 1, types.BBox{X: 1, Y: 1, W: 5, H: 5})
	u1 := testutil.SeedUser(t, context.Background(), env.db, "u1@example.com")

	valid := AddDetectionInput{OriginalSessionID: ai.ID, UserID: u1.ID, ClassID: 1, Confidence: 0.5, X1: 0, Y1: 0, X2: 1, Y2: 1}
	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{"unknown session", func() error {
			in := valid
			in.OriginalSessionID = uuid.New()
			_, err := env.annotations.AddDetection(bg(), in)
			return err
		}, ErrNotFound},
		{"unknown detection edit", func() error {
			_, err := env.annotations.EditDetection(bg(), EditDetectionInput{DetectionID: uuid.New(), UserID: u1.ID, ClassID: 1, Confidence: 0.5, X2: 1, Y2: 1})
			return err
		}, ErrNotFound},
		{"unknown detection delete", func() error {
			_, err := env.annotations.DeleteDetection(bg(), uuid.New(), u1.ID, "x")
			return err
		}, ErrNotFound},
		{"unknown class", func() error {
			in := valid
			in.ClassID = 99
			_, err := env.annotations.AddDetection(bg(), in)
			return err
		}, ErrInvalidArgument},
		{"confidence above one", func() error {
			in := valid
			in.Confidence = 1.5
			_, err := env.annotations.AddDetection(bg(), in)
			return err
		}, ErrInvalidArgument},
		{"inverted corners", func() error {
			_, err := env.annotations.EditDetection(bg(), EditDetectionInput{DetectionID: rec.ID, UserID: u1.ID, ClassID: 1, Confidence: 0.5, X1: 5, Y1: 0, X2: 1, Y2: 1})
			return err
		}, ErrInvalidArgument},
		{"missing user", func() error {
			in := valid
			in.UserID = uuid.Nil
			_, err := env.annotations.AddDetection(bg(), in)
			return err
		}, ErrInvalidArgument},
		{"list unknown session", func() error {
			_, err := env.annotations.ListDetections(bg(), uuid.New())
			return err
		}, ErrNotFound},
		{"current state unknown inspection", func() error {
			_, err := env.annotations.CurrentDetections(bg(), uuid.New())
			return err
		}, ErrNotFound},
	}
	for _, tc := range cases {
		if err := tc.run(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: want %v got %v", tc.name, tc.want, err)
		}
	}

	var n int64
	if err := env.db.Model(&types.DetectionRecord{}).Count(&n).Error; err != nil {
		t.Fatalf("count records: %v", err)
	}
	if n != 1 {
		t.Fatalf("failed mutations left records behind: want=1 got=%d", n)
	}
	if got := len(env.activeSessions(t, ai.InspectionID, u1.ID)); got != 0 {
		t.Fatalf("failed mutations left sessions behind: got=%d", got)
	}
}

func TestFinishedSessionEditsAllowedByDefault(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	_, ai, _ := env.seedAI(t, 1, types.BBox{X: 1, Y: 1, W: 5, H: 5})
	u1 := testutil.SeedUser(t, context.Background(), env.db, "u1@example.com")

	added, err := env.annotations.AddDetection(bg(), AddDetectionInput{OriginalSessionID: ai.ID, UserID: u1.ID, ClassID: 1, Confidence: 0.5, X2: 1, Y2: 1})
	if err != nil {
		t.Fatalf("AddDetection: %v", err)
	}
	if err := env.editing.Finish(bg(), added.SessionID); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	edited, err := env.annotations.EditDetection(bg(), EditDetectionInput{DetectionID: added.ID, UserID: u1.ID, ClassID: 1, Confidence: 0.6, X2: 2, Y2: 2})
	if err != nil {
		t.Fatalf("EditDetection on finished session: %v", err)
	}
	if edited.SessionID == added.SessionID {
		t.Fatalf("EditDetection landed in the finished session")
	}
}

func TestFinishedSessionEditsRejectedWhenLocked(t *testing.T) {
	env := newTestEnv(t, MutationConfig{LockFinishedSessions: true}, NewLocalLocker(), nil)
	_, ai, _ := env.seedAI(t, 1, types.BBox{X: 1, Y: 1, W: 5, H: 5})
	u1 := testutil.SeedUser(t, context.Background(), env.db, "u1@example.com")

	added, err := env.annotations.AddDetection(bg(), AddDetectionInput{OriginalSessionID: ai.ID, UserID: u1.ID, ClassID: 1, Confidence: 0.5, X2: 1, Y2: 1})
	if err != nil {
		t.Fatalf("AddDetection: %v", err)
	}
	if err := env.editing.FinishEditing(bg(), ai.ID, u1.ID); err != nil {
		t.Fatalf("FinishEditing: %v", err)
	}
	_, err = env.annotations.DeleteDetection(bg(), added.ID, u1.ID, "late change")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("DeleteDetection on finished session: want ErrInvalidState got %v", err)
	}
	if got := len(env.activeSessions(t, ai.InspectionID, u1.ID)); got != 0 {
		t.Fatalf("rejected mutation opened a session")
	}
}

func TestCurrentDetections(t *testing.T) {
	env := newTestEnv(t, MutationConfig{}, NewLocalLocker(), nil)
	insp, ai, r1 := env.seedAI(t, 1, types.BBox{X: 1, Y: 1, W: 5, H: 5})
	r2 := testutil.SeedAIRecord(t, context.Background(), env.db, ai, 3, types.BBox{X: 20, Y: 20, W: 5, H: 5})
	u1 := testutil.SeedUser(t, context.Background(), env.db, "u1@example.com")

	e1, err := env.annotations.EditDetection(bg(), EditDetectionInput{DetectionID: r1.ID, UserID: u1.ID, ClassID: 1, Confidence: 0.7, X1: 2, Y1: 2, X2: 7, Y2: 7})
	if err != nil {
		t.Fatalf("EditDetection #1: %v", err)
	}
	e2, err := env.annotations.EditDetection(bg(), EditDetectionInput{DetectionID: e1.ID, UserID: u1.ID, ClassID: 1, Confidence: 0.75, X1: 3, Y1: 3, X2: 8, Y2: 8})
	if err != nil {
		t.Fatalf("EditDetection #2: %v", err)
	}
	if _, err := env.annotations.DeleteDetection(bg(), r2.ID, u1.ID, "glare"); err != nil {
		t.Fatalf("DeleteDetection: %v", err)
	}
	manual, err := env.annotations.AddDetection(bg(), AddDetectionInput{OriginalSessionID: ai.ID, UserID: u1.ID, ClassID: 0, Confidence: 0.4, X1: 40, Y1: 40, X2: 50, Y2: 50})
	if err != nil {
		t.Fatalf("AddDetection: %v", err)
	}

	current, err := env.annotations.CurrentDetections(bg(), insp.ID)
	if err != nil {
		t.Fatalf("CurrentDetections: %v", err)
	}
	if len(current) != 2 || current[0].ID != e2.ID || current[1].ID != manual.ID {
		ids := make([]uuid.UUID, 0, len(current))
		for _, c := range current {
			ids = append(ids, c.ID)
		}
		t.Fatalf("CurrentDetections: want=[%s %s] got=%v", e2.ID, manual.ID, ids)
	}

	// The session count is per action row, not per logical detection.
	session, _ := env.sessions.GetByID(bg(), manual.SessionID)
	if session.DetectionCount != 3 {
		t.Fatalf("detection count: want=3 got=%d", session.DetectionCount)
	}
}
