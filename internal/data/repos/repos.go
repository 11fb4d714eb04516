package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/powerlens-backend/internal/data/repos/annotation"
	"github.com/yungbote/powerlens-backend/internal/data/repos/inspection"
	"github.com/yungbote/powerlens-backend/internal/data/repos/user"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo
type InspectionRepo = inspection.InspectionRepo

type SessionRepo = annotation.SessionRepo
type DetectionRecordRepo = annotation.DetectionRecordRepo
type LogCounterRepo = annotation.LogCounterRepo

func NewUserRepo(db *gorm.DB, log *logger.Logger) UserRepo {
	return user.NewUserRepo(db, log)
}

func NewInspectionRepo(db *gorm.DB, log *logger.Logger) InspectionRepo {
	return inspection.NewInspectionRepo(db, log)
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return annotation.NewSessionRepo(db, log)
}

func NewDetectionRecordRepo(db *gorm.DB, log *logger.Logger) DetectionRecordRepo {
	return annotation.NewDetectionRecordRepo(db, log)
}

func NewLogCounterRepo(db *gorm.DB, log *logger.Logger) LogCounterRepo {
	return annotation.NewLogCounterRepo(db, log)
}
