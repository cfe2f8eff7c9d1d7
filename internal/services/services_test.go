package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sleepstop/sleepstop-backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory SQLite database migrated with the service
// models. TranslateError is on so uniqueness violations surface as
// gorm.ErrDuplicatedKey, same as the Postgres setup.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Alarm{}))
	return db
}

// fakeVerifier stands in for the Google verifier so federated flows can be
// driven without real ID tokens.
type fakeVerifier struct {
	claims *GoogleClaims
	err    error
}

func (f *fakeVerifier) Verify(string) (*GoogleClaims, error) {
	return f.claims, f.err
}
