package loader

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/gazetteer/internal/model"
	"github.com/sells-group/gazetteer/internal/wof"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) TruncateLocalities(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) InsertLocality(ctx context.Context, loc *model.Locality) error {
	return m.Called(ctx, loc).Error(0)
}

func (m *mockStore) RegionIDs(ctx context.Context) (map[int64]struct{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]struct{}), args.Error(1)
}

func (m *mockStore) UpsertRegion(ctx context.Context, r *model.Region) error {
	return m.Called(ctx, r).Error(0)
}

// --- Source Fake ---

type sliceSource []wof.Parsed

func (s sliceSource) Each(ctx context.Context, fn func(wof.Parsed) error) error {
	for _, p := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}
