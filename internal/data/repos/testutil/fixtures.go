package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/powerlens-backend/internal/domain"
)

func newID(tb testing.TB) uuid.UUID {
	tb.Helper()
	id, err := uuid.NewV7()
	if err != nil {
		tb.Fatalf("uuid: %v", err)
	}
	return id
}

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:    newID(tb),
		Email: email,
		Name:  "Reviewer " + email,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedInspection(tb testing.TB, ctx context.Context, tx *gorm.DB, transformerNo string) *types.Inspection {
	tb.Helper()
	in := &types.Inspection{
		ID:            newID(tb),
		TransformerNo: transformerNo,
	}
	if err := tx.WithContext(ctx).Create(in).Error; err != nil {
		tb.Fatalf("seed inspection: %v", err)
	}
	return in
}

func SeedSession(tb testing.TB, ctx context.Context, tx *gorm.DB, inspectionID, userID uuid.UUID, kind types.SessionKind, label string) *types.Session {
	tb.Helper()
	s := &types.Session{
		ID:           newID(tb),
		InspectionID: inspectionID,
		UserID:       userID,
		Kind:         kind,
		Label:        label,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return s
}

// SeedAIRecord appends an ADDED/AI_GENERATED record to session and bumps the
// inspection's log counter so later allocations stay above it.
func SeedAIRecord(tb testing.TB, ctx context.Context, tx *gorm.DB, s *types.Session, classID int, bbox types.BBox) *types.DetectionRecord {
	tb.Helper()
	return seedRecord(tb, ctx, tx, s, classID, bbox, types.SourceAIGenerated)
}

func SeedManualRecord(tb testing.TB, ctx context.Context, tx *gorm.DB, s *types.Session, classID int, bbox types.BBox) *types.DetectionRecord {
	tb.Helper()
	return seedRecord(tb, ctx, tx, s, classID, bbox, types.SourceManuallyAdded)
}

func seedRecord(tb testing.TB, ctx context.Context, tx *gorm.DB, s *types.Session, classID int, bbox types.BBox, source types.DetectionSource) *types.DetectionRecord {
	tb.Helper()
	t := tx.WithContext(ctx)
	var counter types.LogCounter
	res := t.Where("inspection_id = ?", s.InspectionID).Limit(1).Find(&counter)
	if res.Error != nil {
		tb.Fatalf("seed record counter: %v", res.Error)
	}
	next := counter.LastValue + 1
	if res.RowsAffected == 0 {
		if err := t.Create(&types.LogCounter{InspectionID: s.InspectionID, LastValue: next}).Error; err != nil {
			tb.Fatalf("seed record counter insert: %v", err)
		}
	} else if err := t.Model(&types.LogCounter{}).Where("inspection_id = ?", s.InspectionID).Update("last_value", next).Error; err != nil {
		tb.Fatalf("seed record counter update: %v", err)
	}

	rec := &types.DetectionRecord{
		ID:           newID(tb),
		SessionID:    s.ID,
		InspectionID: s.InspectionID,
		LogEntryID:   next,
		ClassID:      classID,
		Confidence:   0.8,
		BBox:         bbox,
		Source:       source,
		ActionType:   types.ActionAdded,
	}
	if err := t.Create(rec).Error; err != nil {
		tb.Fatalf("seed record: %v", err)
	}
	if err := t.Model(&types.Session{}).Where("id = ?", s.ID).
		Update("detection_count", gorm.Expr("detection_count + 1")).Error; err != nil {
		tb.Fatalf("seed record count: %v", err)
	}
	s.DetectionCount++
	return rec
}
