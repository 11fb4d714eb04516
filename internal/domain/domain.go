package domain

import (
	"github.com/yungbote/powerlens-backend/internal/domain/annotation"
	"github.com/yungbote/powerlens-backend/internal/domain/inspection"
	"github.com/yungbote/powerlens-backend/internal/domain/user"
)

const (
	SessionKindAIAnalysis    = annotation.SessionKindAIAnalysis
	SessionKindManualEditing = annotation.SessionKindManualEditing

	LabelEditingSession   = annotation.LabelEditingSession
	LabelCompletedEditing = annotation.LabelCompletedEditing

	SourceAIGenerated   = annotation.SourceAIGenerated
	SourceManuallyAdded = annotation.SourceManuallyAdded

	ActionAdded   = annotation.ActionAdded
	ActionEdited  = annotation.ActionEdited
	ActionDeleted = annotation.ActionDeleted
)

type SessionKind = annotation.SessionKind
type DetectionSource = annotation.DetectionSource
type ActionType = annotation.ActionType

type Session = annotation.Session
type DetectionRecord = annotation.DetectionRecord
type BBox = annotation.BBox
type LogCounter = annotation.LogCounter

type Inspection = inspection.Inspection
type User = user.User

var BBoxFromCorners = annotation.BBoxFromCorners
