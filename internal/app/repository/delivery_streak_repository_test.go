package repository

import (
	"testing"

	"github.com/smartshop/smartshop-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryStreakRepository(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)

	repo := NewDeliveryStreakRepository(testDB)
	const recipient = "finance@acme.example.com"

	streak, err := repo.Get(recipient)
	require.NoError(t, err)
	assert.Zero(t, streak)

	for want := 1; want <= 3; want++ {
		streak, err = repo.RecordFailure(recipient)
		require.NoError(t, err)
		assert.Equal(t, want, streak)
	}

	require.NoError(t, repo.Reset(recipient))
	streak, err = repo.Get(recipient)
	require.NoError(t, err)
	assert.Zero(t, streak)

	streak, err = repo.RecordFailure(recipient)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)
}
