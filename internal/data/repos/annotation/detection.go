package annotation

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/powerlens-backend/internal/domain"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
)

// DetectionRecordRepo is insert-and-read only; records are never updated or deleted.
type DetectionRecordRepo interface {
	Create(dbc dbctx.Context, records []*types.DetectionRecord) ([]*types.DetectionRecord, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DetectionRecord, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.DetectionRecord, error)
	ListByInspection(dbc dbctx.Context, inspectionID uuid.UUID) ([]*types.DetectionRecord, error)
	CountNotDeletedInSession(dbc dbctx.Context, sessionID uuid.UUID) (int64, error)
}

type detectionRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDetectionRecordRepo(db *gorm.DB, baseLog *logger.Logger) DetectionRecordRepo {
	return &detectionRecordRepo{
		db:  db,
		log: baseLog.With("repo", "DetectionRecordRepo"),
	}
}

func (r *detectionRecordRepo) Create(dbc dbctx.Context, records []*types.DetectionRecord) ([]*types.DetectionRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(records) == 0 {
		return []*types.DetectionRecord{}, nil
	}
	for _, rec := range records {
		if rec.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return nil, err
			}
			rec.ID = id
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *detectionRecordRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DetectionRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.DetectionRecord
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// ListBySession returns the session's actions in log order.
func (r *detectionRecordRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.DetectionRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DetectionRecord
	if sessionID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Order("log_entry_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *detectionRecordRepo) ListByInspection(dbc dbctx.Context, inspectionID uuid.UUID) ([]*types.DetectionRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DetectionRecord
	if inspectionID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("inspection_id = ?", inspectionID).
		Order("log_entry_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *detectionRecordRepo) CountNotDeletedInSession(dbc dbctx.Context, sessionID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.DetectionRecord{}).
		Where("session_id = ? AND action_type <> ?", sessionID, types.ActionDeleted).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
