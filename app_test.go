package main

import (
	"context"
	"path/filepath"
	"testing"

	"WarrenBot/config"
	"WarrenBot/internal/logger"
	"WarrenBot/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDatabaseSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "candles.db")
	db, err := setupDatabase(config.DatabaseConfig{Driver: "sqlite", SQLitePath: path})
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable("candles"))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestSetupBlobStoresFile(t *testing.T) {
	dir := t.TempDir()
	a := &app{log: logger.Discard()}

	backtests, risk, err := a.setupBlobStores(config.StorageConfig{
		Backend:      "file",
		BacktestsDir: filepath.Join(dir, "backtests"),
		RiskDir:      filepath.Join(dir, "risk"),
	})
	require.NoError(t, err)
	assert.Empty(t, a.closers)

	ctx := context.Background()
	key := repositories.SnapshotKey("BTCUSDT", "1d")
	require.NoError(t, backtests.Put(ctx, key, []byte(`{}`)))

	ok, err := risk.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "backtest and risk snapshots live apart")
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "refresh", "backtest", "recommend"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	for _, flag := range []string{"config", "symbol", "interval"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
	}
}
