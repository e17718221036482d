package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/recurring-ledger/internal/config"
	"github.com/Leganyst/recurring-ledger/internal/model"
)

func TestNewGormDB_SQLite(t *testing.T) {
	cfg := &config.DBConfig{
		Driver:       config.DriverSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 10,
	}

	gormDB, err := NewGormDB(cfg)
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, model.AutoMigrate(gormDB))
	assert.True(t, gormDB.Migrator().HasTable(&model.RecurringTemplate{}))
	assert.True(t, gormDB.Migrator().HasIndex(&model.UpcomingInstance{}, "idx_instance_template_date"))
}
