package audit

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := Open(filepath.Join(t.TempDir(), "audit.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun(kind, channel string) Run {
	return Run{
		Kind:       kind,
		Station:    "BRASILIA",
		RangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 1, 7, 23, 59, 59, 0, time.UTC),
		Channel:    channel,
		StartedAt:  time.Date(2024, 1, 8, 3, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 1, 8, 3, 42, 0, 0, time.UTC),
		Rows:       984,

		DroppedOutOfBounds: 2,
		Failures:           1,
		OutputPath:         "data/raw/goes/goes_C01_st_2024-01-01_et_2024-01-07_BRASILIA.csv",
	}
}

func TestRecordAndListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.RecordRun(ctx, sampleRun(KindSatellite, "C01"))
	require.NoError(t, err)
	assert.Positive(t, id)

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, KindSatellite, got.Kind)
	assert.Equal(t, "BRASILIA", got.Station)
	assert.Equal(t, "C01", got.Channel)
	assert.True(t, got.RangeStart.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, got.RangeEnd.Equal(time.Date(2024, 1, 7, 23, 59, 59, 0, time.UTC)))
	assert.True(t, got.FinishedAt.Equal(time.Date(2024, 1, 8, 3, 42, 0, 0, time.UTC)))
	assert.Equal(t, int64(984), got.Rows)
	assert.Equal(t, int64(2), got.DroppedOutOfBounds)
	assert.Equal(t, int64(1), got.Failures)
	assert.Equal(t, "data/raw/goes/goes_C01_st_2024-01-01_et_2024-01-07_BRASILIA.csv", got.OutputPath)
}

func TestListRuns_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.RecordRun(ctx, sampleRun(KindSatellite, "C01"))
	require.NoError(t, err)
	second, err := store.RecordRun(ctx, sampleRun(KindGround, ""))
	require.NoError(t, err)

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)
}

func TestListRuns_Limit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.RecordRun(ctx, sampleRun(KindSatellite, "C01"))
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestRunHistory_FiltersKindAndStation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.RecordRun(ctx, sampleRun(KindSatellite, "C01"))
	require.NoError(t, err)

	ground := sampleRun(KindGround, "")
	ground.Duplicates = 12
	ground.OffGrid = 3
	ground.OutOfRange = 40
	_, err = store.RecordRun(ctx, ground)
	require.NoError(t, err)

	other := sampleRun(KindGround, "")
	other.Station = "PETROLINA"
	_, err = store.RecordRun(ctx, other)
	require.NoError(t, err)

	runs, err := store.RunHistory(ctx, KindGround, "BRASILIA", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(12), runs[0].Duplicates)
	assert.Equal(t, int64(3), runs[0].OffGrid)
	assert.Equal(t, int64(40), runs[0].OutOfRange)
}

func TestRunHistory_DeltaBetweenRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := sampleRun(KindFeatures, "")
	old.Rows = 900
	old.DroppedMissingChannel = 50
	_, err := store.RecordRun(ctx, old)
	require.NoError(t, err)

	latest := sampleRun(KindFeatures, "")
	latest.Rows = 960
	latest.DroppedMissingChannel = 8
	_, err = store.RecordRun(ctx, latest)
	require.NoError(t, err)

	runs, err := store.RunHistory(ctx, KindFeatures, "BRASILIA", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(60), runs[0].Rows-runs[1].Rows)
	assert.Equal(t, int64(-42), runs[0].DroppedMissingChannel-runs[1].DroppedMissingChannel)
}

func TestListRuns_EmptyStore(t *testing.T) {
	store := newTestStore(t)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestClose_Idempotent(t *testing.T) {
	store := newTestStore(t)

	_, err := store.RecordRun(context.Background(), sampleRun(KindSatellite, "C01"))
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
