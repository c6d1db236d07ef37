package orchestrator

import (
	"context"
	"sort"

	"github.com/ledgermesh/ledgermesh/internal/common"
	"github.com/ledgermesh/ledgermesh/internal/model"
	"github.com/ledgermesh/ledgermesh/internal/service"
)

var _ service.Storage = (*fakeStorage)(nil)

// fakeStorage is a minimal in-memory service.Storage, grounded on the
// reconcile and ops packages' own test doubles, extended here with a real
// session map since orchestrator tests assert on session lifecycle state.
type fakeStorage struct {
	observations map[string]model.Observation
	aggregates   map[string]model.Aggregate
	links        map[string]map[string]bool
	sessions     map[string]model.ImportSession
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		observations: map[string]model.Observation{},
		aggregates:   map[string]model.Aggregate{},
		links:        map[string]map[string]bool{},
		sessions:     map[string]model.ImportSession{},
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

func (f *fakeStorage) FindByFpRef(_ context.Context, fp string) ([]model.Observation, error) {
	return nil, nil
}
func (f *fakeStorage) FindByFpAmtDay(_ context.Context, fp string) ([]model.Observation, error) {
	return nil, nil
}
func (f *fakeStorage) FindByFpAmtTime(_ context.Context, fp string) ([]model.Observation, error) {
	return nil, nil
}
func (f *fakeStorage) FindByFpSenderAmt(_ context.Context, fp string) ([]model.Observation, error) {
	return nil, nil
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

func (f *fakeStorage) Count(_ context.Context) (int, error) { return len(f.observations), nil }

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
	return nil, nil
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

func (f *fakeStorage) Create(_ context.Context, session model.ImportSession) error {
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeStorage) Update(_ context.Context, session model.ImportSession) error {
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeStorage) GetSessionByID(_ context.Context, id string) (*model.ImportSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &s, nil
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

// fakeSMSSource returns a fixed message list regardless of the range
// requested, sufficient to exercise import_sms_all/since wiring.
type fakeSMSSource struct {
	messages []service.SMSMessage
}

func (f *fakeSMSSource) All(_ context.Context) ([]service.SMSMessage, error) {
	return f.messages, nil
}

func (f *fakeSMSSource) Since(_ context.Context, afterMillis int64) ([]service.SMSMessage, error) {
	var out []service.SMSMessage
	for _, m := range f.messages {
		if m.DateMillis > afterMillis {
			out = append(out, m)
		}
	}
	return out, nil
}
