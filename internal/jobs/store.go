package jobs

import (
	"sync/atomic"

	"tigrinya.news/pipeline/internal/model"
)

// StatusStore holds the latest record per job kind. Each slot is a single
// atomic pointer, so readers see either the old or the new record, never a mix.
type StatusStore struct {
	slots map[model.JobKind]*atomic.Pointer[model.JobRecord]
}

func NewStatusStore() *StatusStore {
	slots := make(map[model.JobKind]*atomic.Pointer[model.JobRecord], len(model.AllJobKinds))
	for _, kind := range model.AllJobKinds {
		slots[kind] = &atomic.Pointer[model.JobRecord]{}
	}
	return &StatusStore{slots: slots}
}

// Get returns a copy of the latest record, or false when the kind never ran.
func (s *StatusStore) Get(kind model.JobKind) (model.JobRecord, bool) {
	slot, ok := s.slots[kind]
	if !ok {
		return model.JobRecord{}, false
	}
	rec := slot.Load()
	if rec == nil {
		return model.JobRecord{}, false
	}
	return *rec, true
}

// Set replaces the record for its kind. Unknown kinds are ignored.
func (s *StatusStore) Set(kind model.JobKind, rec model.JobRecord) {
	slot, ok := s.slots[kind]
	if !ok {
		return
	}
	slot.Store(&rec)
}
