package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/powerlens-backend/internal/data/repos"
	"github.com/yungbote/powerlens-backend/internal/platform/logger"
)

type Repos struct {
	User       repos.UserRepo
	Inspection repos.InspectionRepo
	Session    repos.SessionRepo
	Detection  repos.DetectionRecordRepo
	LogCounter repos.LogCounterRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:       repos.NewUserRepo(db, log),
		Inspection: repos.NewInspectionRepo(db, log),
		Session:    repos.NewSessionRepo(db, log),
		Detection:  repos.NewDetectionRecordRepo(db, log),
		LogCounter: repos.NewLogCounterRepo(db, log),
	}
}
