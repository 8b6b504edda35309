package service

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathdrill/internal/models"
)

// seedPractice registers a user and plays one complete session
func seedPractice(t *testing.T, env *testEnv) *models.User {
	t.Helper()
	ctx := context.Background()
	user, err := env.authService().Register(ctx, registerInput("ada"))
	require.NoError(t, err)

	svc := env.practiceService()
	pc, _, err := svc.Start(ctx, user.ID, StartRequest{
		DifficultyID: env.difficultyID(t, 2),
		Operation:    models.OperationDivision,
		Count:        2,
	})
	require.NoError(t, err)
	for {
		var step *Step
		pc, step, err = svc.NextQuestion(ctx, user.ID, pc)
		require.NoError(t, err)
		if step.Completed {
			break
		}
		pc, _, err = svc.SubmitAnswer(ctx, user.ID, pc, step.Exercise.Answer)
		require.NoError(t, err)
	}
	return user
}

func TestBackupRoundTrip(t *testing.T) {
	src := newTestEnv(t)
	user := seedPractice(t, src)

	var buf bytes.Buffer
	exported, err := NewBackupService(src.db).ExportToWriter(&buf)
	require.NoError(t, err)
	assert.Len(t, exported.Users, 1)
	assert.Len(t, exported.Exercises, 2)
	assert.Len(t, exported.Attempts, 2)
	assert.Len(t, exported.Difficulties, 3)

	dst := newTestEnv(t)
	require.NoError(t, NewBackupService(dst.db).ImportFromReader(context.Background(), &buf, false))

	restored, err := dst.userRepo.GetUserByUsername("ada")
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, user.ID, restored.ID)
	assert.Equal(t, user.PasswordHash, restored.PasswordHash)

	progress, err := dst.progressRepo.GetProgress(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.Division.Correct)

	history, err := dst.practiceService().History(user.ID)
	require.NoError(t, err)
	require.Len(t, history.Sessions, 1)
	assert.False(t, history.Sessions[0].IsActive())

	attempts, err := dst.practiceRepo.GetSessionAttempts(history.Sessions[0].ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.True(t, attempts[0].UserAnswer.Equal(attempts[0].Answer))

	// New rows continue after the imported ids.
	next, err := dst.userRepo.CreateUser("grace", "grace@example.com", "", "", "hash")
	require.NoError(t, err)
	assert.Greater(t, next.ID, user.ID)
}

func TestBackupImportWithClear(t *testing.T) {
	env := newTestEnv(t)
	seedPractice(t, env)
	backups := NewBackupService(env.db)

	path := filepath.Join(t.TempDir(), "backup.json")
	_, err := backups.Export(path)
	require.NoError(t, err)

	err = backups.Import(context.Background(), path, false)
	assert.Error(t, err, "importing over existing rows without clearing conflicts")

	require.NoError(t, backups.Import(context.Background(), path, true))
	users, err := env.userRepo.GetAllUsers()
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestBackupRejectsUnknownVersion(t *testing.T) {
	env := newTestEnv(t)
	err := NewBackupService(env.db).ImportFromReader(context.Background(), strings.NewReader(`{"version":"9.9"}`), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported backup version")
}
