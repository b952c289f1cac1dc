package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/recipebook/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMigrateCreatesRecipeTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db))

	for _, model := range []interface{}{
		&models.Recipe{}, &models.RecipeIngredient{}, &models.Instruction{},
		&models.Rating{}, &models.Comment{}, &models.SearchEvent{}, &models.User{},
	} {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.NoError(t, Health(db))
	assert.NoError(t, Close(db))
}

func TestNilHandle(t *testing.T) {
	assert.Error(t, Migrate(nil))
	assert.Error(t, Health(nil))
	assert.NoError(t, Close(nil))
}
