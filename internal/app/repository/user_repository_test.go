package repository

import (
	"testing"
	"time"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupUserTest(t *testing.T) (*gorm.DB, UserRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)

	repo := NewUserRepository(testDB)
	return testDB, repo
}

func TestUserRepository_Create(t *testing.T) {
	testDB, repo := setupUserTest(t)
	defer db.CleanupTestDB(testDB)

	tests := []struct {
		name    string
		user    *model.User
		wantErr bool
	}{
		{
			name: "Valid admin",
			user: &model.User{
				Email:        "ops@example.com",
				PasswordHash: "hashedpassword",
				Name:         "Ops",
				Role:         model.RoleAdmin,
			},
			wantErr: false,
		},
		{
			name: "Duplicate email",
			user: &model.User{
				Email:        "ops@example.com",
				PasswordHash: "hashedpassword",
				Name:         "Other",
				Role:         model.RoleAdmin,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(tt.user)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.NotZero(t, tt.user.ID)
			}
		})
	}
}

func TestUserRepository_FindByEmail(t *testing.T) {
	testDB, repo := setupUserTest(t)
	defer db.CleanupTestDB(testDB)

	user := &model.User{Email: "ops@example.com", PasswordHash: "x", Name: "Ops", Role: model.RoleAdmin}
	require.NoError(t, repo.Create(user))

	found, err := repo.FindByEmail("ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByEmail("missing@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_UpdateLastLogin(t *testing.T) {
	testDB, repo := setupUserTest(t)
	defer db.CleanupTestDB(testDB)

	user := &model.User{Email: "ops@example.com", PasswordHash: "x", Name: "Ops", Role: model.RoleAdmin}
	require.NoError(t, repo.Create(user))

	at := time.Now().Truncate(time.Second)
	require.NoError(t, repo.UpdateLastLogin(user.ID, at))

	found, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, found.LastLoginAt)
	assert.WithinDuration(t, at, *found.LastLoginAt, time.Second)
}

func TestUserRepository_FindByEmailIgnoresCase(t *testing.T) {
	testDB, repo := setupUserTest(t)
	defer db.CleanupTestDB(testDB)

	require.NoError(t, repo.Create(&model.User{Email: " Ops@Example.com", PasswordHash: "hash", Name: "Ops"}))

	user, err := repo.FindByEmail("OPS@example.COM")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", user.Email)
	assert.Equal(t, model.RoleAdmin, user.Role)
}
