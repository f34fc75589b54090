package provider

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sushant-115/infinitygrid/core/datasource"
	"github.com/sushant-115/infinitygrid/core/span"
)

// --- Test Helpers ---

func demoRows(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = DemoRow(i)
	}
	return out
}

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "rows.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- Slice ---

func TestSlice_Fetch(t *testing.T) {
	p := NewSlice(demoRows(100), 0)

	page, err := p.Fetch(context.Background(), span.New(10, 19))
	require.NoError(t, err)
	require.Equal(t, 100, page.TotalLength)
	require.Equal(t, 10, page.Start)
	require.Equal(t, demoRows(20)[10:], page.Data)
}

func TestSlice_FetchClipsToLength(t *testing.T) {
	p := NewSlice(demoRows(15), 0)

	page, err := p.Fetch(context.Background(), span.New(10, 49))
	require.NoError(t, err)
	require.Equal(t, 15, page.TotalLength)
	require.Len(t, page.Data, 5)

	page, err = p.Fetch(context.Background(), span.New(40, 49))
	require.NoError(t, err)
	require.Empty(t, page.Data)
	require.Equal(t, 15, page.Start)
}

func TestSlice_GrowAndShrink(t *testing.T) {
	p := NewSlice(demoRows(10), 0)
	p.Append("extra")
	require.Equal(t, 11, p.Len())

	p.Set(demoRows(3))
	page, err := p.Fetch(context.Background(), span.New(0, 9))
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalLength)
	require.Len(t, page.Data, 3)
}

func TestSlice_LatencyHonorsContext(t *testing.T) {
	p := NewSlice(demoRows(10), time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Fetch(ctx, span.New(0, 9))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// --- Generated ---

func TestGenerated_Fetch(t *testing.T) {
	p := NewGenerated(1_000_000, DemoRow, 0)

	page, err := p.Fetch(context.Background(), span.New(999_998, 1_000_010))
	require.NoError(t, err)
	require.Equal(t, 1_000_000, page.TotalLength)
	require.Equal(t, []string{"test-999998", "test-999999"}, page.Data)
}

// --- SQLite ---

func TestSQLite_AppendAndFetch(t *testing.T) {
	db := openTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, db.Append(ctx, demoRows(50)...))
	n, err := db.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 50, n)

	page, err := db.Fetch(ctx, span.New(45, 60))
	require.NoError(t, err)
	require.Equal(t, 50, page.TotalLength)
	require.Equal(t, 45, page.Start)
	require.Equal(t, demoRows(50)[45:], page.Data)
}

func TestSQLite_EmptyTable(t *testing.T) {
	db := openTestSQLite(t)

	page, err := db.Fetch(context.Background(), span.New(0, 49))
	require.NoError(t, err)
	require.Zero(t, page.TotalLength)
	require.Empty(t, page.Data)
}

func TestSQLite_Truncate(t *testing.T) {
	db := openTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.Append(ctx, demoRows(20)...))

	require.NoError(t, db.Truncate(ctx, 5))
	page, err := db.Fetch(ctx, span.New(0, 19))
	require.NoError(t, err)
	require.Equal(t, 5, page.TotalLength)
	require.Equal(t, demoRows(5), page.Data)

	// Appends continue after the surviving rows.
	require.NoError(t, db.Append(ctx, "next"))
	page, err = db.Fetch(ctx, span.New(5, 5))
	require.NoError(t, err)
	require.Equal(t, []string{"next"}, page.Data)
}

func TestSQLite_Closed(t *testing.T) {
	db := openTestSQLite(t)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err := db.Fetch(context.Background(), span.New(0, 1))
	require.ErrorIs(t, err, ErrClosed)
}

// TestSQLite_FeedsCoordinator drives a coordinator from the table end to end.
func TestSQLite_FeedsCoordinator(t *testing.T) {
	db := openTestSQLite(t)
	require.NoError(t, db.Append(context.Background(), demoRows(100)...))

	src, err := datasource.New[string](db, datasource.Config{PageSize: 16})
	require.NoError(t, err)

	src.RequestRange(span.New(0, 49))
	require.Eventually(t, src.Ready, 2*time.Second, 5*time.Millisecond)
	require.True(t, src.IsFetched(span.New(0, 49)))
	require.False(t, src.IsFetched(span.New(50, 99)))
	require.Equal(t, 100, src.TotalLength())
}

// --- Throttled ---

func TestThrottled_LimitsCalls(t *testing.T) {
	inner := NewSlice(demoRows(10), 0)
	p := NewThrottled[string](inner, 1, 1)
	ctx := context.Background()

	_, err := p.Fetch(ctx, span.New(0, 1))
	require.NoError(t, err, "the burst admits the first call")

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = p.Fetch(short, span.New(0, 1))
	require.Error(t, err, "the second call must wait about a second")
}

func TestThrottled_Unlimited(t *testing.T) {
	calls := 0
	inner := datasource.ProviderFunc[int](func(ctx context.Context, r span.Range) (datasource.Page[int], error) {
		calls++
		return datasource.NewPage(10, r, []int{1}), nil
	})
	p := NewThrottled[int](inner, 0, 0)
	for range 100 {
		_, err := p.Fetch(context.Background(), span.New(0, 0))
		require.NoError(t, err)
	}
	require.Equal(t, 100, calls)
}

func TestThrottled_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	inner := datasource.ProviderFunc[int](func(context.Context, span.Range) (datasource.Page[int], error) {
		return datasource.Page[int]{}, boom
	})
	_, err := NewThrottled[int](inner, 0, 0).Fetch(context.Background(), span.New(0, 0))
	require.ErrorIs(t, err, boom)
}
