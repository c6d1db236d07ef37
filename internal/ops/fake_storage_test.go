package ops

import (
	"context"
	"sort"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/model"
	"github.com/ledgermesh/ledgermesh/internal/service"
)

var _ service.Storage = (*fakeOpsStorage)(nil)

// fakeOpsStorage is a minimal in-memory service.Storage sufficient to
// exercise the ops layer in isolation from the real SQLite implementation.
type fakeOpsStorage struct {
	observations map[string]model.Observation
	aggregates   map[string]model.Aggregate
	links        map[string]map[string]bool
	opsLog       []model.OpsLogEntry
}

func newFakeOpsStorage() *fakeOpsStorage {
	return &fakeOpsStorage{
		observations: map[string]model.Observation{},
		aggregates:   map[string]model.Aggregate{},
		links:        map[string]map[string]bool{},
	}
}

func (f *fakeOpsStorage) seedObservations(obs ...model.Observation) {
	for _, o := range obs {
		f.observations[o.ID] = o
	}
}

func (f *fakeOpsStorage) Insert(_ context.Context, obs model.Observation) (bool, error) {
	f.observations[obs.ID] = obs
	return true, nil
}

func (f *fakeOpsStorage) InsertBatch(ctx context.Context, obs []model.Observation) (int, int, error) {
	for _, o := range obs {
		_, _ = f.Insert(ctx, o)
	}
	return len(obs), 0, nil
}

func (f *fakeOpsStorage) GetByContentHash(_ context.Context, hash string) (*model.Observation, error) {
	for _, o := range f.observations {
		if o.ContentHash == hash {
			return &o, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeOpsStorage) GetObservationByID(_ context.Context, id string) (*model.Observation, error) {
	o, ok := f.observations[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &o, nil
}

func (f *fakeOpsStorage) FindByFpRef(_ context.Context, fp string) ([]model.Observation, error) {
	return nil, nil
}
func (f *fakeOpsStorage) FindByFpAmtDay(_ context.Context, fp string) ([]model.Observation, error) {
	return nil, nil
}
func (f *fakeOpsStorage) FindByFpAmtTime(_ context.Context, fp string) ([]model.Observation, error) {
	return nil, nil
}
func (f *fakeOpsStorage) FindByFpSenderAmt(_ context.Context, fp string) ([]model.Observation, error) {
	return nil, nil
}

func (f *fakeOpsStorage) GetUnlinked(_ context.Context) ([]model.Observation, error) {
	return nil, nil
}

func (f *fakeOpsStorage) GetForAggregate(_ context.Context, aggregateID string) ([]model.Observation, error) {
	var result []model.Observation
	for obsID := range f.links[aggregateID] {
		result = append(result, f.observations[obsID])
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeOpsStorage) Count(_ context.Context) (int, error) { return len(f.observations), nil }

func (f *fakeOpsStorage) GetAggregateByID(_ context.Context, aggregateID string) (*model.Aggregate, error) {
	a, ok := f.aggregates[aggregateID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &a, nil
}

func (f *fakeOpsStorage) GetAll(_ context.Context) ([]model.Aggregate, error) {
	var result []model.Aggregate
	for _, a := range f.aggregates {
		result = append(result, a)
	}
	return result, nil
}

func (f *fakeOpsStorage) GetForReview(_ context.Context, threshold int) ([]model.Aggregate, error) {
	var result []model.Aggregate
	for _, a := range f.aggregates {
		if a.ConfidenceScore < threshold {
			result = append(result, a)
		}
	}
	return result, nil
}

func (f *fakeOpsStorage) AggregatesForObservationFp(_ context.Context, fpColumn, fp string) ([]string, error) {
	return nil, nil
}

func (f *fakeOpsStorage) CreateAndLink(_ context.Context, agg model.Aggregate, observationID string) error {
	f.aggregates[agg.ID] = agg
	if f.links[agg.ID] == nil {
		f.links[agg.ID] = map[string]bool{}
	}
	f.links[agg.ID][observationID] = true
	return nil
}

func (f *fakeOpsStorage) UpdateAndLink(_ context.Context, agg model.Aggregate, observationID string) error {
	f.aggregates[agg.ID] = agg
	if f.links[agg.ID] == nil {
		f.links[agg.ID] = map[string]bool{}
	}
	f.links[agg.ID][observationID] = true
	return nil
}

func (f *fakeOpsStorage) ForceMerge(_ context.Context, target model.Aggregate, sourceID string, entry model.OpsLogEntry) error {
	if f.links[target.ID] == nil {
		f.links[target.ID] = map[string]bool{}
	}
	for obsID := range f.links[sourceID] {
		f.links[target.ID][obsID] = true
	}
	delete(f.links, sourceID)
	delete(f.aggregates, sourceID)
	f.aggregates[target.ID] = target
	f.opsLog = append(f.opsLog, entry)
	return nil
}

func (f *fakeOpsStorage) Split(_ context.Context, source model.Aggregate, newAgg model.Aggregate, movedObservationIDs []string, entry model.OpsLogEntry) error {
	if f.links[newAgg.ID] == nil {
		f.links[newAgg.ID] = map[string]bool{}
	}
	for _, obsID := range movedObservationIDs {
		delete(f.links[source.ID], obsID)
		f.links[newAgg.ID][obsID] = true
	}
	f.aggregates[newAgg.ID] = newAgg
	f.aggregates[source.ID] = source
	f.opsLog = append(f.opsLog, entry)
	return nil
}

func (f *fakeOpsStorage) EditField(_ context.Context, agg model.Aggregate, entry model.OpsLogEntry) error {
	f.aggregates[agg.ID] = agg
	f.opsLog = append(f.opsLog, entry)
	return nil
}

func (f *fakeOpsStorage) Create(_ context.Context, session model.ImportSession) error { return nil }
func (f *fakeOpsStorage) Update(_ context.Context, session model.ImportSession) error { return nil }
func (f *fakeOpsStorage) GetSessionByID(_ context.Context, id string) (*model.ImportSession, error) {
	return nil, common.ErrNotFound
}

func (f *fakeOpsStorage) Append(_ context.Context, entry model.OpsLogEntry) error {
	f.opsLog = append(f.opsLog, entry)
	return nil
}

func (f *fakeOpsStorage) GetOpsLogForAggregate(_ context.Context, aggregateID string) ([]model.OpsLogEntry, error) {
	var result []model.OpsLogEntry
	for _, e := range f.opsLog {
		if e.TargetAggregateID == aggregateID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (f *fakeOpsStorage) GetRecent(_ context.Context, n int) ([]model.OpsLogEntry, error) {
	return f.opsLog, nil
}

func (f *fakeOpsStorage) CreateCategory(_ context.Context, name string) (*model.Category, error) {
	return nil, nil
}
func (f *fakeOpsStorage) GetCategoryByID(_ context.Context, id int64) (*model.Category, error) {
	return nil, common.ErrNotFound
}
func (f *fakeOpsStorage) GetCategoryByName(_ context.Context, name string) (*model.Category, error) {
	return nil, common.ErrNotFound
}
func (f *fakeOpsStorage) GetAllCategories(_ context.Context) ([]model.Category, error) {
	return nil, nil
}

func (f *fakeOpsStorage) Migrate(_ context.Context) error { return nil }
func (f *fakeOpsStorage) Close() error                    { return nil }
