package database

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/ragflow-setup/internal/models"
)

func TestSetupCreatesTables(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "ledger.db")
	original := DB
	defer func() { DB = original }()

	err := Setup(&Config{Type: "sqlite", DSN: dsn}, logrus.New())
	require.NoError(t, err)
	defer Close()

	db := MustDB()
	assert.True(t, db.Migrator().HasTable(&models.SetupRun{}))
	assert.True(t, db.Migrator().HasTable(&models.SetupFile{}))
}

func TestOpenUnsupportedType(t *testing.T) {
	_, err := Open(&Config{Type: "postgres", DSN: "x"}, logrus.New())
	assert.Error(t, err)
}

func TestMustDBPanicsWithoutSetup(t *testing.T) {
	original := DB
	DB = nil
	defer func() { DB = original }()

	assert.Panics(t, func() { MustDB() })
}
