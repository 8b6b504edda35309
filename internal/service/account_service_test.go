package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathdrill/internal/models"
	"mathdrill/internal/validation"
)

func (e *testEnv) accountService() *AccountService {
	return NewAccountService(e.db, e.userRepo, e.progressRepo, e.activityRepo)
}

func TestDashboardShowsFiveRecentActivities(t *testing.T) {
	env := newTestEnv(t)
	svc := env.accountService()
	user := env.newUser(t, "busy")

	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		_, err := env.activityRepo.Log(user.ID, models.ActivityLogin, fmt.Sprintf("login %d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	dashboard, err := svc.Dashboard(user)
	require.NoError(t, err)
	require.Len(t, dashboard.RecentActivity, DashboardRecentActivities)
	assert.Equal(t, "login 6", dashboard.RecentActivity[0].Description)
	assert.Equal(t, models.MinGradeLevel, dashboard.Profile.GradeLevel)
	assert.NotNil(t, dashboard.Progress)

	all, err := svc.Activity(user.ID)
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestProgressDefaultsWhenMissing(t *testing.T) {
	env := newTestEnv(t)
	svc := env.accountService()
	user, err := env.userRepo.CreateUser("legacy", "legacy@example.com", "", "", "hash")
	require.NoError(t, err)

	progress, err := svc.Progress(user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, progress.UserID)
	assert.True(t, progress.Accuracy().IsZero())

	profile, err := svc.Profile(user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MinGradeLevel, profile.GradeLevel)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	svc := env.accountService()
	ctx := context.Background()
	user := env.newUser(t, "ada")
	_, err := env.userRepo.CreateProfile(user.ID)
	require.NoError(t, err)
	env.newUser(t, "grace")

	birth := time.Date(2016, 5, 4, 0, 0, 0, 0, time.UTC)
	err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{
		Email:      " ada.l@example.com ",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		GradeLevel: 3,
		BirthDate:  &birth,
	})
	require.NoError(t, err)

	updated, err := env.userRepo.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada.l@example.com", updated.Email)
	assert.Equal(t, "Ada Lovelace", updated.DisplayName())

	profile, err := env.userRepo.GetProfile(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, profile.GradeLevel)
	require.NotNil(t, profile.BirthDate)
	assert.True(t, birth.Equal(*profile.BirthDate))

	logs, err := env.activityRepo.ListRecent(user.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityProfileUpdate, logs[0].ActivityType)

	err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Email: "grace@example.com", GradeLevel: 1})
	assert.ErrorIs(t, err, ErrEmailTaken)

	future := time.Now().Add(48 * time.Hour)
	tests := []struct {
		name   string
		update ProfileUpdate
		field  string
	}{
		{"grade too high", ProfileUpdate{Email: "ada@example.com", GradeLevel: 4}, "grade_level"},
		{"grade too low", ProfileUpdate{Email: "ada@example.com", GradeLevel: 0}, "grade_level"},
		{"future birth date", ProfileUpdate{Email: "ada@example.com", GradeLevel: 1, BirthDate: &future}, "birth_date"},
		{"bad email", ProfileUpdate{Email: "nope", GradeLevel: 1}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr validation.ValidationError
			err := svc.UpdateProfile(ctx, user.ID, tt.update)
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
