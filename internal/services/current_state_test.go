package services

import (
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/powerlens-backend/internal/domain"
)

func rec(logID int64, action types.ActionType, original *types.DetectionRecord) *types.DetectionRecord {
	r := &types.DetectionRecord{ID: uuid.New(), LogEntryID: logID, ActionType: action}
	if original != nil {
		id := original.ID
		r.OriginalRecordID = &id
	}
	return r
}

func TestCurrentState(t *testing.T) {
	a := rec(1, types.ActionAdded, nil)
	b := rec(2, types.ActionAdded, nil)
	c := rec(3, types.ActionAdded, nil)
	a1 := rec(4, types.ActionEdited, a)
	a2 := rec(5, types.ActionEdited, a1)
	bDel := rec(6, types.ActionDeleted, b)
	c1 := rec(7, types.ActionEdited, c)
	// A second edit of the same record: the later branch wins.
	c2 := rec(8, types.ActionEdited, c)

	got := CurrentState([]*types.DetectionRecord{c2, bDel, a, a2, b, c1, nil, c, a1})
	want := []*types.DetectionRecord{a2, c2}
	if len(got) != len(want) {
		t.Fatalf("CurrentState: want=%d records got=%d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Fatalf("CurrentState[%d]: want log=%d got log=%d", i, want[i].LogEntryID, got[i].LogEntryID)
		}
	}
}

func TestCurrentStateDeletedThenNothing(t *testing.T) {
	a := rec(1, types.ActionAdded, nil)
	got := CurrentState([]*types.DetectionRecord{a, rec(2, types.ActionDeleted, a)})
	if len(got) != 0 {
		t.Fatalf("CurrentState: want empty got %d", len(got))
	}
	if out := CurrentState(nil); len(out) != 0 {
		t.Fatalf("CurrentState(nil): want empty")
	}
}
