package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openModelTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Skipf("Skipping test: could not connect to test database: %v", err)
		return nil
	}
	require.NoError(t, db.AutoMigrate(&Branch{}))
	return db
}

func TestBaseModel_BeforeCreate(t *testing.T) {
	db := openModelTestDB(t)
	if db == nil {
		return
	}

	branch := Branch{BranchID: "br-create", Name: "North"}
	require.NoError(t, db.Create(&branch).Error)

	assert.False(t, branch.CreatedAt.IsZero())
	assert.False(t, branch.UpdatedAt.IsZero())
	assert.WithinDuration(t, time.Now(), branch.CreatedAt, 5*time.Second)
	assert.WithinDuration(t, time.Now(), branch.UpdatedAt, 5*time.Second)
}

func TestBaseModel_BeforeUpdate(t *testing.T) {
	db := openModelTestDB(t)
	if db == nil {
		return
	}

	branch := Branch{BranchID: "br-update", Name: "South"}
	require.NoError(t, db.Create(&branch).Error)
	createdAt := branch.UpdatedAt

	time.Sleep(10 * time.Millisecond)
	branch.Name = "South Annex"
	require.NoError(t, db.Save(&branch).Error)

	var reloaded Branch
	require.NoError(t, db.First(&reloaded, "branch_id = ?", branch.BranchID).Error)
	assert.Equal(t, "South Annex", reloaded.Name)
	assert.True(t, reloaded.UpdatedAt.After(createdAt))
}
