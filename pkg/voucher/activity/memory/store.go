package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gideon-vouchers/voucher-server/pkg/database/query"
	"github.com/gideon-vouchers/voucher-server/pkg/voucher/activity"
)

type store struct {
	mu      sync.Mutex
	last    uint64
	records []*activity.Record
}

// New returns a new in memory activity.Store
func New() activity.Store {
	return &store{}
}

// Put implements activity.Store.Put
func (s *store) Put(_ context.Context, data *activity.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last++
	if item := s.find(data); item != nil {
		return activity.ErrAlreadyExists
	}

	if data.Id == 0 {
		data.Id = s.last
	}
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	cloned := data.Clone()
	s.records = append(s.records, &cloned)
	return nil
}

// Update implements activity.Store.Update
func (s *store) Update(_ context.Context, data *activity.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByActivityId(data.ActivityId)
	if item == nil {
		return activity.ErrNotFound
	}

	item.State = data.State
	item.ErrorMessage = data.ErrorMessage
	item.CopyTo(data)

	return nil
}

// Get implements activity.Store.Get
func (s *store) Get(_ context.Context, activityId string) (*activity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByActivityId(activityId)
	if item == nil {
		return nil, activity.ErrNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// GetBySignature implements activity.Store.GetBySignature
func (s *store) GetBySignature(_ context.Context, signature string) (*activity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findBySignature(signature)
	if item == nil {
		return nil, activity.ErrNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// GetAllByWallet implements activity.Store.GetAllByWallet
func (s *store) GetAllByWallet(_ context.Context, wallet string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*activity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.filter(func(r *activity.Record) bool { return r.Wallet == wallet })
	items = paginate(items, cursor, limit, direction)
	if len(items) == 0 {
		return nil, activity.ErrNotFound
	}

	return cloneSlice(items), nil
}

// GetAllByMint implements activity.Store.GetAllByMint
func (s *store) GetAllByMint(_ context.Context, mint string) ([]*activity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.filter(func(r *activity.Record) bool { return r.Mint == mint })
	if len(items) == 0 {
		return nil, activity.ErrNotFound
	}

	return cloneSlice(items), nil
}

func (s *store) find(data *activity.Record) *activity.Record {
	for _, item := range s.records {
		if item.Id == data.Id {
			return item
		}
		if item.ActivityId == data.ActivityId {
			return item
		}
		if item.Signature == data.Signature {
			return item
		}
	}
	return nil
}

func (s *store) findByActivityId(activityId string) *activity.Record {
	for _, item := range s.records {
		if item.ActivityId == activityId {
			return item
		}
	}
	return nil
}

func (s *store) findBySignature(signature string) *activity.Record {
	for _, item := range s.records {
		if item.Signature == signature {
			return item
		}
	}
	return nil
}

func (s *store) filter(predicate func(*activity.Record) bool) []*activity.Record {
	var res []*activity.Record
	for _, item := range s.records {
		if predicate(item) {
			res = append(res, item)
		}
	}
	return res
}

func paginate(items []*activity.Record, cursor query.Cursor, limit uint64, direction query.Ordering) []*activity.Record {
	sorted := make([]*activity.Record, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if direction == query.Descending {
			return sorted[i].Id > sorted[j].Id
		}
		return sorted[i].Id < sorted[j].Id
	})

	var res []*activity.Record
	for _, item := range sorted {
		if len(cursor) > 0 {
			start := cursor.ToUint64()
			if direction == query.Ascending && item.Id <= start {
				continue
			}
			if direction == query.Descending && item.Id >= start {
				continue
			}
		}

		res = append(res, item)
		if limit > 0 && uint64(len(res)) >= limit {
			break
		}
	}
	return res
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = 0
	s.records = nil
}

func cloneSlice(items []*activity.Record) []*activity.Record {
	res := make([]*activity.Record, len(items))
	for i, item := range items {
		cloned := item.Clone()
		res[i] = &cloned
	}
	return res
}
