package db

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/powerlens-backend/internal/domain"
)

// SystemIdentity is the well-known owner of AI_ANALYSIS sessions.
type SystemIdentity struct {
	ID    uuid.UUID
	Email string
	Name  string
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.User{},
		&types.Inspection{},

		&types.Session{},
		&types.DetectionRecord{},
		&types.LogCounter{},
	)
}

// EnsureAnnotationIndexes creates the indexes gorm tags cannot express.
// The partial unique index admits at most one unfinished editing session per
// (inspection, user); both Postgres and SQLite support the WHERE clause.
func EnsureAnnotationIndexes(db *gorm.DB) error {
	if err := db.Exec(fmt.Sprintf(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_annotation_session_active_editor
		ON annotation_session(inspection_id, user_id)
		WHERE kind = '%s' AND label <> '%s';
	`, types.SessionKindManualEditing, types.LabelCompletedEditing)).Error; err != nil {
		return fmt.Errorf("create idx_annotation_session_active_editor: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_detection_record_session_created
		ON detection_record(session_id, created_at DESC, log_entry_id DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_detection_record_session_created: %w", err)
	}
	return nil
}

// EnsureSystemUser provisions the AI identity once, at migration time.
func EnsureSystemUser(db *gorm.DB, sys SystemIdentity) error {
	if sys.ID == uuid.Nil {
		return fmt.Errorf("system user id required")
	}
	u := &types.User{
		ID:       sys.ID,
		Email:    sys.Email,
		Name:     sys.Name,
		IsSystem: true,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(u).Error; err != nil {
		return fmt.Errorf("provision system user: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll(sys SystemIdentity) error {
	s.log.Info("Auto migrating tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureAnnotationIndexes(s.db); err != nil {
		s.log.Error("Annotation index migration failed", "error", err)
		return err
	}
	if err := EnsureSystemUser(s.db, sys); err != nil {
		s.log.Error("System user provisioning failed", "error", err)
		return err
	}
	return nil
}
