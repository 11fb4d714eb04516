package services

import (
	"sort"

	"github.com/google/uuid"

	types "github.com/yungbote/powerlens-backend/internal/domain"
)

// CurrentState collapses an inspection's action log into one record per logical
// detection: the chain head with the highest log entry id. Chains whose head is a
// DELETED record are omitted. The result is ordered by log entry id.
func CurrentState(records []*types.DetectionRecord) []*types.DetectionRecord {
	ordered := make([]*types.DetectionRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].LogEntryID < ordered[j].LogEntryID
	})

	root := make(map[uuid.UUID]uuid.UUID, len(ordered))
	head := map[uuid.UUID]*types.DetectionRecord{}
	var roots []uuid.UUID
	for _, r := range ordered {
		chain := r.ID
		if r.OriginalRecordID != nil {
			if parentRoot, ok := root[*r.OriginalRecordID]; ok {
				chain = parentRoot
			} else {
				chain = *r.OriginalRecordID
			}
		}
		root[r.ID] = chain
		if _, seen := head[chain]; !seen {
			roots = append(roots, chain)
		}
		head[chain] = r
	}

	out := make([]*types.DetectionRecord, 0, len(roots))
	for _, chain := range roots {
		h := head[chain]
		if h.ActionType == types.ActionDeleted {
			continue
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LogEntryID < out[j].LogEntryID
	})
	return out
}
