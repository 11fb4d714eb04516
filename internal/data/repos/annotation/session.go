package annotation

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/powerlens-backend/internal/domain"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, sessions []*types.Session) ([]*types.Session, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error)
	ListByInspection(dbc dbctx.Context, inspectionID uuid.UUID) ([]*types.Session, error)
	FindActiveEditing(dbc dbctx.Context, inspectionID, userID uuid.UUID) (*types.Session, error)
	FindLatestAIAnalysis(dbc dbctx.Context, inspectionID uuid.UUID) (*types.Session, error)
	SetLabel(dbc dbctx.Context, id uuid.UUID, label string) error
	SetDetectionCount(dbc dbctx.Context, id uuid.UUID, n int) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{
		db:  db,
		log: baseLog.With("repo", "SessionRepo"),
	}
}

func (r *sessionRepo) Create(dbc dbctx.Context, sessions []*types.Session) ([]*types.Session, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sessions) == 0 {
		return []*types.Session{}, nil
	}
	for _, s := range sessions {
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return nil, err
			}
			s.ID = id
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.Session
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

func (r *sessionRepo) ListByInspection(dbc dbctx.Context, inspectionID uuid.UUID) ([]*types.Session, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Session
	if inspectionID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("inspection_id = ?", inspectionID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) FindActiveEditing(dbc dbctx.Context, inspectionID, userID uuid.UUID) (*types.Session, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if inspectionID == uuid.Nil || userID == uuid.Nil {
		return nil, nil
	}
	var out []*types.Session
	if err := transaction.WithContext(dbc.Ctx).
		Where("inspection_id = ? AND user_id = ? AND kind = ? AND label <> ?",
			inspectionID, userID, types.SessionKindManualEditing, types.LabelCompletedEditing).
		Order("created_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *sessionRepo) FindLatestAIAnalysis(dbc dbctx.Context, inspectionID uuid.UUID) (*types.Session, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if inspectionID == uuid.Nil {
		return nil, nil
	}
	var out []*types.Session
	if err := transaction.WithContext(dbc.Ctx).
		Where("inspection_id = ? AND kind = ?", inspectionID, types.SessionKindAIAnalysis).
		Order("created_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *sessionRepo) SetLabel(dbc dbctx.Context, id uuid.UUID, label string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Session{}).
		Where("id = ?", id).
		Update("label", label).Error
}

func (r *sessionRepo) SetDetectionCount(dbc dbctx.Context, id uuid.UUID, n int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Session{}).
		Where("id = ?", id).
		Update("detection_count", n).Error
}
