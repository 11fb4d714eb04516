package annotation

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/powerlens-backend/internal/domain"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
)

// LogCounterRepo allocates per-inspection log entry ids. The counter row is bumped
// with a single UPDATE so the row lock is held until the enclosing transaction ends;
// a concurrent first allocation that loses the insert race surfaces a unique violation.
type LogCounterRepo interface {
	Next(dbc dbctx.Context, inspectionID uuid.UUID) (int64, error)
	Reserve(dbc dbctx.Context, inspectionID uuid.UUID, n int) (int64, error)
}

type logCounterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLogCounterRepo(db *gorm.DB, baseLog *logger.Logger) LogCounterRepo {
	return &logCounterRepo{
		db:  db,
		log: baseLog.With("repo", "LogCounterRepo"),
	}
}

func (r *logCounterRepo) Next(dbc dbctx.Context, inspectionID uuid.UUID) (int64, error) {
	return r.Reserve(dbc, inspectionID, 1)
}

// Reserve claims n consecutive ids and returns the first one.
func (r *logCounterRepo) Reserve(dbc dbctx.Context, inspectionID uuid.UUID, n int) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if inspectionID == uuid.Nil {
		return 0, fmt.Errorf("inspection id required")
	}
	if n <= 0 {
		return 0, fmt.Errorf("reserve count must be positive, got %d", n)
	}
	t := transaction.WithContext(dbc.Ctx)

	res := t.Model(&types.LogCounter{}).
		Where("inspection_id = ?", inspectionID).
		Update("last_value", gorm.Expr("last_value + ?", n))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		if err := t.Create(&types.LogCounter{InspectionID: inspectionID, LastValue: int64(n)}).Error; err != nil {
			return 0, err
		}
		return 1, nil
	}

	var row types.LogCounter
	if err := t.Where("inspection_id = ?", inspectionID).Take(&row).Error; err != nil {
		return 0, err
	}
	return row.LastValue - int64(n) + 1, nil
}
