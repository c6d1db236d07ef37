package reconcile

import (
	"context"
	"sort"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/model"
	"github.com/ledgermesh/ledgermesh/internal/service"
)

var _ service.Storage = (*fakeStorage)(nil)

// fakeStorage is a minimal in-memory implementation of service.Storage
// sufficient to exercise the reconciliation engine, grounded on the
// an in-memory fixtures pattern mirrored in the other package test suites.
type fakeStorage struct {
	observations map[string]model.Observation
	aggregates   map[string]model.Aggregate
	links        map[string]map[string]bool // aggregateID -> observationID -> true
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		observations: map[string]model.Observation{},
		aggregates:   map[string]model.Aggregate{},
		links:        map[string]map[string]bool{},
	}
}

func (f *fakeStorage) seed(obs ...model.Observation) {
	for _, o := range obs {
		f.observations[o.ID] = o
	}
}

func (f *fakeStorage) Insert(_ context.Context, obs model.Observation) (bool, error) {
	for _, existing := range f.observations {
		if existing.ContentHash == obs.ContentHash {
			return false, nil
		}
	}
	f.observations[obs.ID] = obs
	return true, nil
}

func (f *fakeStorage) InsertBatch(ctx context.Context, obs []model.Observation) (int, int, error) {
	var inserted, skipped int
	for _, o := range obs {
		ok, _ := f.Insert(ctx, o)
		if ok {
			inserted++
		} else {
			skipped++
		}
	}
	return inserted, skipped, nil
}

func (f *fakeStorage) GetByContentHash(_ context.Context, hash string) (*model.Observation, error) {
	for _, o := range f.observations {
		if o.ContentHash == hash {
			return &o, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeStorage) GetObservationByID(_ context.Context, id string) (*model.Observation, error) {
	o, ok := f.observations[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &o, nil
}

func (f *fakeStorage) findByFp(get func(model.Observation) *string, fp string) []model.Observation {
	var result []model.Observation
	for _, o := range f.observations {
		if v := get(o); v != nil && *v == fp {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (f *fakeStorage) FindByFpRef(_ context.Context, fp string) ([]model.Observation, error) {
	return f.findByFp(func(o model.Observation) *string { return o.FpRef }, fp), nil
}

func (f *fakeStorage) FindByFpAmtDay(_ context.Context, fp string) ([]model.Observation, error) {
	return f.findByFp(func(o model.Observation) *string { return o.FpAmtDay }, fp), nil
}

func (f *fakeStorage) FindByFpAmtTime(_ context.Context, fp string) ([]model.Observation, error) {
	return f.findByFp(func(o model.Observation) *string { return o.FpAmtTime }, fp), nil
}

func (f *fakeStorage) FindByFpSenderAmt(_ context.Context, fp string) ([]model.Observation, error) {
	return f.findByFp(func(o model.Observation) *string { return o.FpSenderAmt }, fp), nil
}

func (f *fakeStorage) GetUnlinked(_ context.Context) ([]model.Observation, error) {
	var result []model.Observation
	for id, o := range f.observations {
		linked := false
		for _, obsSet := range f.links {
			if obsSet[id] {
				linked = true
				break
			}
		}
		if !linked {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeStorage) GetForAggregate(_ context.Context, aggregateID string) ([]model.Observation, error) {
	var result []model.Observation
	for obsID := range f.links[aggregateID] {
		result = append(result, f.observations[obsID])
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeStorage) Count(_ context.Context) (int, error) {
	return len(f.observations), nil
}

func (f *fakeStorage) GetAggregateByID(_ context.Context, aggregateID string) (*model.Aggregate, error) {
	a, ok := f.aggregates[aggregateID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &a, nil
}

func (f *fakeStorage) GetAll(_ context.Context) ([]model.Aggregate, error) {
	var result []model.Aggregate
	for _, a := range f.aggregates {
		result = append(result, a)
	}
	return result, nil
}

func (f *fakeStorage) GetForReview(_ context.Context, threshold int) ([]model.Aggregate, error) {
	var result []model.Aggregate
	for _, a := range f.aggregates {
		if a.ConfidenceScore < threshold {
			result = append(result, a)
		}
	}
	return result, nil
}

func (f *fakeStorage) AggregatesForObservationFp(_ context.Context, fpColumn, fp string) ([]string, error) {
	var getFp func(model.Observation) *string
	switch fpColumn {
	case "fp_ref":
		getFp = func(o model.Observation) *string { return o.FpRef }
	case "fp_amt_time":
		getFp = func(o model.Observation) *string { return o.FpAmtTime }
	case "fp_amt_day":
		getFp = func(o model.Observation) *string { return o.FpAmtDay }
	case "fp_sender_amt":
		getFp = func(o model.Observation) *string { return o.FpSenderAmt }
	}

	seen := map[string]bool{}
	var ids []string
	for aggID, obsSet := range f.links {
		for obsID := range obsSet {
			o := f.observations[obsID]
			if v := getFp(o); v != nil && *v == fp && !seen[aggID] {
				seen[aggID] = true
				ids = append(ids, aggID)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStorage) CreateAndLink(_ context.Context, agg model.Aggregate, observationID string) error {
	f.aggregates[agg.ID] = agg
	if f.links[agg.ID] == nil {
		f.links[agg.ID] = map[string]bool{}
	}
	f.links[agg.ID][observationID] = true
	return nil
}

func (f *fakeStorage) UpdateAndLink(_ context.Context, agg model.Aggregate, observationID string) error {
	f.aggregates[agg.ID] = agg
	if f.links[agg.ID] == nil {
		f.links[agg.ID] = map[string]bool{}
	}
	f.links[agg.ID][observationID] = true
	return nil
}

func (f *fakeStorage) ForceMerge(_ context.Context, target model.Aggregate, sourceID string, entry model.OpsLogEntry) error {
	if f.links[target.ID] == nil {
		f.links[target.ID] = map[string]bool{}
	}
	for obsID := range f.links[sourceID] {
		f.links[target.ID][obsID] = true
	}
	delete(f.links, sourceID)
	delete(f.aggregates, sourceID)
	f.aggregates[target.ID] = target
	return nil
}

func (f *fakeStorage) Split(_ context.Context, source model.Aggregate, newAgg model.Aggregate, movedObservationIDs []string, entry model.OpsLogEntry) error {
	if f.links[newAgg.ID] == nil {
		f.links[newAgg.ID] = map[string]bool{}
	}
	for _, obsID := range movedObservationIDs {
		delete(f.links[source.ID], obsID)
		f.links[newAgg.ID][obsID] = true
	}
	f.aggregates[newAgg.ID] = newAgg
	f.aggregates[source.ID] = source
	return nil
}

func (f *fakeStorage) EditField(_ context.Context, agg model.Aggregate, entry model.OpsLogEntry) error {
	f.aggregates[agg.ID] = agg
	return nil
}

func (f *fakeStorage) Create(_ context.Context, session model.ImportSession) error { return nil }
func (f *fakeStorage) Update(_ context.Context, session model.ImportSession) error { return nil }
func (f *fakeStorage) GetSessionByID(_ context.Context, id string) (*model.ImportSession, error) {
	return nil, common.ErrNotFound
}

func (f *fakeStorage) Append(_ context.Context, entry model.OpsLogEntry) error { return nil }
func (f *fakeStorage) GetOpsLogForAggregate(_ context.Context, aggregateID string) ([]model.OpsLogEntry, error) {
	return nil, nil
}
func (f *fakeStorage) GetRecent(_ context.Context, n int) ([]model.OpsLogEntry, error) {
	return nil, nil
}

func (f *fakeStorage) CreateCategory(_ context.Context, name string) (*model.Category, error) {
	return nil, nil
}
func (f *fakeStorage) GetCategoryByID(_ context.Context, id int64) (*model.Category, error) {
	return nil, common.ErrNotFound
}
func (f *fakeStorage) GetCategoryByName(_ context.Context, name string) (*model.Category, error) {
	return nil, common.ErrNotFound
}
func (f *fakeStorage) GetAllCategories(_ context.Context) ([]model.Category, error) {
	return nil, nil
}

func (f *fakeStorage) Migrate(_ context.Context) error { return nil }
func (f *fakeStorage) Close() error                    { return nil }
