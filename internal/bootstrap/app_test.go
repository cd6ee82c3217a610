package bootstrap

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/punchamoorthee/shelfledger/internal/config"
	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/punchamoorthee/shelfledger/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:               "8080",
		Env:                "development",
		LogLevel:           "info",
		StoreDriver:        config.DriverMemory,
		SQLitePath:         filepath.Join(t.TempDir(), "library.db"),
		NotificationBuffer: 5,
		ExportTarget:       config.ExportFS,
		ExportDir:          filepath.Join(t.TempDir(), "exports"),
	}
}

func Test_New_Memory(t *testing.T) {
	var logs bytes.Buffer
	app, err := New(context.Background(), testConfig(t), &logs)
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Ledger.AddBook(context.Background(), domain.BookInput{Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)

	assert.IsType(t, &store.Memory{}, app.Store)
	assert.Len(t, app.Feed.Recent(), 1)
	assert.Contains(t, logs.String(), "ledger ready")
}

func Test_New_SQLitePersists(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.StoreDriver = config.DriverSQLite

	app, err := New(ctx, cfg, &bytes.Buffer{})
	require.NoError(t, err)
	_, err = app.Ledger.AddMember(ctx, domain.MemberInput{Name: "Alice", Email: "alice@email.com"})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	reopened, err := New(ctx, cfg, &bytes.Buffer{})
	require.NoError(t, err)
	defer reopened.Close()
	members, err := reopened.Ledger.ListMembers(ctx, domain.MemberFilter{})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "alice@email.com", members[0].Email)
}

func Test_New_ExportWritesToDir(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	app, err := New(ctx, cfg, &bytes.Buffer{})
	require.NoError(t, err)
	defer app.Close()

	res, err := app.Exporter.Export(ctx)

	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(cfg.ExportDir, res.Key))
}

func Test_NewLogger_ProductionIsJSON(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "production"
	var buf bytes.Buffer

	logger, err := NewLogger(cfg, &buf)
	require.NoError(t, err)
	logger.Info("hello", "k", "v")

	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func Test_NewLogger_RespectsLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogLevel = "warn"
	var buf bytes.Buffer

	logger, err := NewLogger(cfg, &buf)
	require.NoError(t, err)
	logger.Info("quiet")

	assert.Empty(t, buf.String())
}

func Test_OpenStore_Unknown(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "mongo"

	_, err := OpenStore(context.Background(), cfg)

	assert.ErrorContains(t, err, "unknown store driver")
}
