package host

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sushant-115/infinitygrid/config"
	"github.com/sushant-115/infinitygrid/core/span"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Logger.OutputFile = filepath.Join(t.TempDir(), "host.log")
	cfg.Provider.Latency = 0
	return cfg
}

func TestHost_GeneratedProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider.Rows = 500

	h, err := Setup(cfg)
	require.NoError(t, err)
	defer h.Close(context.Background())

	p, err := h.Provider(context.Background())
	require.NoError(t, err)
	src, err := h.DataSource(p, nil)
	require.NoError(t, err)

	src.RequestRange(span.New(0, 49))
	require.Eventually(t, src.Ready, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 500, src.TotalLength())
}

func TestHost_SQLiteProviderSeedsOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider.Kind = config.ProviderSQLite
	cfg.Provider.SQLitePath = filepath.Join(t.TempDir(), "rows.db")
	cfg.Provider.Rows = 25_000
	cfg.Provider.RateLimit = 1000

	h, err := Setup(cfg)
	require.NoError(t, err)
	p, err := h.Provider(context.Background())
	require.NoError(t, err)

	page, err := p.Fetch(context.Background(), span.New(24_990, 25_010))
	require.NoError(t, err)
	require.Equal(t, 25_000, page.TotalLength)
	require.Equal(t, "test-24999", page.Data[len(page.Data)-1])
	require.NoError(t, h.Close(context.Background()))

	// Reopening must not append a second copy.
	h, err = Setup(cfg)
	require.NoError(t, err)
	defer h.Close(context.Background())
	p, err = h.Provider(context.Background())
	require.NoError(t, err)
	page, err = p.Fetch(context.Background(), span.New(0, 0))
	require.NoError(t, err)
	require.Equal(t, 25_000, page.TotalLength)
}

func TestHost_RemoteProviderIsLazy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider.Kind = config.ProviderRemote
	cfg.Provider.RemoteAddress = "localhost:1"

	h, err := Setup(cfg)
	require.NoError(t, err)
	_, err = h.Provider(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.Close(context.Background()))
}

func TestHost_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Provider.Kind = "tape"

	h, err := Setup(cfg)
	require.NoError(t, err)
	defer h.Close(context.Background())
	_, err = h.Provider(context.Background())
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
