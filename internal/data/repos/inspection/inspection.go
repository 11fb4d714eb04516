package inspection

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/powerlens-backend/internal/domain"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
)

type InspectionRepo interface {
	Create(dbc dbctx.Context, inspections []*types.Inspection) ([]*types.Inspection, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Inspection, error)
	Exists(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type inspectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInspectionRepo(db *gorm.DB, baseLog *logger.Logger) InspectionRepo {
	return &inspectionRepo{
		db:  db,
		log: baseLog.With("repo", "InspectionRepo"),
	}
}

func (r *inspectionRepo) Create(dbc dbctx.Context, inspections []*types.Inspection) ([]*types.Inspection, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(inspections) == 0 {
		return []*types.Inspection{}, nil
	}
	for _, in := range inspections {
		if in.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return nil, err
			}
			in.ID = id
		}
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&inspections).Error; err != nil {
		return nil, err
	}
	return inspections, nil
}

func (r *inspectionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Inspection, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.Inspection
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

func (r *inspectionRepo) Exists(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Inspection{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
