package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the engine, workflow, and pipeline
// tests. It mirrors the database guarantees: one record per (person, date)
// and a guarded time-out update.
type memStore struct {
	mu       sync.Mutex
	people   map[int64]Person
	records  map[string]*Record
	pending  map[int64]Pending
	nextRec  int64
	nextPend int64
}

func newMemStore(people ...Person) *memStore {
	s := &memStore{
		people:  make(map[int64]Person),
		records: make(map[string]*Record),
		pending: make(map[int64]Pending),
	}
	for _, p := range people {
		s.people[p.ID] = p
	}
	return s
}

func recKey(personID int64, date string) string {
	return fmt.Sprintf("%d|%s", personID, date)
}

func (s *memStore) FindPerson(_ context.Context, id int64) (*Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.people[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *memStore) GetRecord(_ context.Context, personID int64, date string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[recKey(personID, date)]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) InsertTimeIn(_ context.Context, rec Record) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recKey(rec.PersonID, rec.Date)
	if _, exists := s.records[key]; exists {
		return nil, nil
	}
	s.nextRec++
	rec.ID = s.nextRec
	rec.CreatedAt = time.Now()
	stored := rec
	s.records[key] = &stored
	cp := rec
	return &cp, nil
}

func (s *memStore) SetTimeOut(_ context.Context, recordID int64, at time.Time, image *string, mode CaptureMode, confidence *float64, approver *int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.ID != recordID {
			continue
		}
		if rec.TimeIn == nil || rec.TimeOut != nil {
			return false, nil
		}
		rec.TimeOut = &at
		rec.TimeOutImage = image
		if mode == Manual {
			rec.AutoCaptured = false
		}
		if confidence != nil {
			rec.Confidence = confidence
		}
		if approver != nil {
			rec.ApprovedBy = approver
		}
		return true, nil
	}
	return false, nil
}

func (s *memStore) LastEventAt(_ context.Context, personID int64) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *time.Time
	for _, rec := range s.records {
		if rec.PersonID != personID {
			continue
		}
		for _, t := range []*time.Time{rec.TimeIn, rec.TimeOut} {
			if t != nil && (last == nil || t.After(*last)) {
				cp := *t
				last = &cp
			}
		}
	}
	return last, nil
}

func (s *memStore) ListRecords(_ context.Context, personID int64, dateFrom, dateTo string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []Record
	for _, rec := range s.records {
		if personID != 0 && rec.PersonID != personID {
			continue
		}
		if dateFrom != "" && rec.Date < dateFrom {
			continue
		}
		if dateTo != "" && rec.Date > dateTo {
			continue
		}
		res = append(res, *rec)
	}
	return res, nil
}

func (s *memStore) CreatePending(_ context.Context, p Pending) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPend++
	p.ID = s.nextPend
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.pending[p.ID] = p
	return p, nil
}

func (s *memStore) GetPending(_ context.Context, id int64) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *memStore) DeletePending(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	return nil
}

func (s *memStore) ListPending(_ context.Context, stationID int64) ([]Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []Pending
	for _, p := range s.pending {
		if stationID != 0 {
			if person, ok := s.people[p.PersonID]; !ok || person.StationID != stationID {
				continue
			}
		}
		res = append(res, p)
	}
	return res, nil
}
